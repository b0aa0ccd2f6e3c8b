package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

type Bid struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Message   *string         `json:"message,omitempty"` // Nullable
	Status    BidStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
}
