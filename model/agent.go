package model

import "time"

type Agent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentLoad is an agent together with its number of active assignments.
type AgentLoad struct {
	Agent
	ActiveAssignments int `json:"active_assignments"`
}

type AssignmentType string

const (
	AssignmentSell AssignmentType = "sell"
	AssignmentBuy  AssignmentType = "buy"
)

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

type AgentAssignment struct {
	ID          string           `json:"id"`
	AgentID     string           `json:"agent_id"`
	ClientID    string           `json:"client_id"`
	ListingID   string           `json:"listing_id"`
	Type        AssignmentType   `json:"assignment_type"`
	Status      AssignmentStatus `json:"status"`
	AssignedAt  time.Time        `json:"assigned_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Notes       string           `json:"notes"`
}

// AssignmentSummary is an assignment as seen by one of its parties.
type AssignmentSummary struct {
	AgentAssignment
	AgentUserID string `json:"agent_user_id"`
	UnreadCount int    `json:"unread_count"`
}

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageEmail   MessageType = "email"
	MessageCallLog MessageType = "call_log"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageEmail, MessageCallLog:
		return true
	}
	return false
}

type AgentCommunication struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	FromAgent    bool        `json:"from_agent"`
	Body         string      `json:"body"`
	Type         MessageType `json:"message_type"`
	CreatedAt    time.Time   `json:"created_at"`
	ReadAt       *time.Time  `json:"read_at,omitempty"`
}
