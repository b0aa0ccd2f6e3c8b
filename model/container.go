package model

import "time"

type ContainerStatus string

const (
	ContainerPending   ContainerStatus = "pending"
	ContainerApproved  ContainerStatus = "approved"
	ContainerDelivered ContainerStatus = "delivered"
	ContainerRejected  ContainerStatus = "rejected"
)

// containerEdges maps a target status to the only status it may be
// reached from.
var containerEdges = map[ContainerStatus]ContainerStatus{
	ContainerApproved:  ContainerPending,
	ContainerRejected:  ContainerPending,
	ContainerDelivered: ContainerApproved,
}

// ContainerSource returns the status a request must be in to move to
// target. ok is false when no edge leads to target.
func ContainerSource(target ContainerStatus) (from ContainerStatus, ok bool) {
	from, ok = containerEdges[target]
	return from, ok
}

func (s ContainerStatus) Known() bool {
	switch s {
	case ContainerPending, ContainerApproved, ContainerDelivered, ContainerRejected:
		return true
	}
	return false
}

type ContainerRequest struct {
	ID            string          `json:"id"`
	RequesterID   *string         `json:"requester_id,omitempty"` // Nullable
	ContactName   string          `json:"contact_name"`
	ContactEmail  string          `json:"contact_email"`
	ContactPhone  string          `json:"contact_phone"`
	Address       string          `json:"address"`
	ContainerType string          `json:"container_type"`
	Quantity      int             `json:"quantity"`
	Status        ContainerStatus `json:"status"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ContainerRequestInput struct {
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`
	Address       string `json:"address"`
	ContainerType string `json:"container_type"`
	Quantity      int    `json:"quantity"`
	Notes         string `json:"notes"`
}
