package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records the settlement of an accepted bid. It never feeds back
// into the bid or listing status.
type Payment struct {
	ID             string          `json:"id"`
	BidID          string          `json:"bid_id"`
	ListingID      string          `json:"listing_id"`
	BuyerID        string          `json:"buyer_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	Status         PaymentStatus   `json:"status"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	IdempotencyKey string          `json:"-"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CaptureResult is the processor's verdict on one capture attempt.
type CaptureResult struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"reference_id"`
	Reason      string `json:"reason"`
}

// MinorUnits rounds a major-unit amount to whole minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
