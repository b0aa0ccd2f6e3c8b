package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-market/model"
)

const paymentColumns = `id, bid_id, listing_id, buyer_id, amount, amount_minor, currency, status, reference_id, failure_reason, idempotency_key, attempts, created_at, updated_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// InsertIfAbsent stores p unless the bid already has a payment. It
// reports whether p was stored.
func (r *PaymentRepository) InsertIfAbsent(ctx context.Context, p *model.Payment) (bool, error) {
	query := `INSERT INTO payments (` + paymentColumns + `)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? FROM bids
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM payments WHERE bid_id = ?)`
	res, err := r.db.ExecContext(ctx, query, p.ID, p.BidID, p.ListingID, p.BuyerID, p.Amount, p.AmountMinor, p.Currency,
		p.Status, p.ReferenceID, p.FailureReason, p.IdempotencyKey, p.Attempts, p.CreatedAt, p.UpdatedAt,
		p.BidID, p.BidID)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// GetByBidID returns nil, nil when the bid has no payment.
func (r *PaymentRepository) GetByBidID(ctx context.Context, bidID string) (*model.Payment, error) {
	var p model.Payment
	err := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bid_id = ?`, bidID).Scan(
		&p.ID, &p.BidID, &p.ListingID, &p.BuyerID, &p.Amount, &p.AmountMinor, &p.Currency, &p.Status,
		&p.ReferenceID, &p.FailureReason, &p.IdempotencyKey, &p.Attempts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// BeginAttempt counts a capture attempt on a payment that has not yet
// succeeded.
func (r *PaymentRepository) BeginAttempt(ctx context.Context, bidID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, attempts = attempts + 1, updated_at = ? WHERE bid_id = ? AND status <> ?`,
		model.PaymentPending, now, bidID, model.PaymentSucceeded)
	if err != nil {
		return false, fmt.Errorf("begin capture attempt: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// MarkSucceeded records a successful capture. A payment that already
// succeeded is left untouched.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, bidID, referenceID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, reference_id = ?, failure_reason = '', updated_at = ? WHERE bid_id = ? AND status <> ?`,
		model.PaymentSucceeded, referenceID, now, bidID, model.PaymentSucceeded)
	if err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// MarkFailed records a failed capture unless the payment already
// succeeded.
func (r *PaymentRepository) MarkFailed(ctx context.Context, bidID, reason string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, failure_reason = ?, updated_at = ? WHERE bid_id = ? AND status <> ?`,
		model.PaymentFailed, reason, now, bidID, model.PaymentSucceeded)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}
