package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-market/model"
)

const bidColumns = `id, listing_id, bidder_id, amount, message, status, created_at, decided_at`

type BidRepository struct {
	db DBTX
}

func NewBidRepository(db DBTX) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) WithTx(tx *sql.Tx) *BidRepository {
	return &BidRepository{db: tx}
}

func scanBid(s scanner) (*model.Bid, error) {
	var b model.Bid
	var message sql.NullString
	var decidedAt sql.NullTime
	if err := s.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &message, &b.Status, &b.CreatedAt, &decidedAt); err != nil {
		return nil, err
	}
	if message.Valid {
		b.Message = &message.String
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.DecidedAt = nullTime(decidedAt)
	return &b, nil
}

// InsertIfOpen inserts a pending bid only while its listing is active,
// unexpired at now, not owned by the bidder, and priced at or below the
// bid amount. It reports whether the bid was stored.
func (r *BidRepository) InsertIfOpen(ctx context.Context, b *model.Bid, now time.Time) (bool, error) {
	query := `INSERT INTO bids (` + bidColumns + `)
		SELECT ?, id, ?, ?, ?, ?, ?, NULL FROM listings
		WHERE id = ? AND status = ? AND expires_at > ? AND owner_id <> ? AND price <= ?`
	res, err := r.db.ExecContext(ctx, query,
		b.ID, b.BidderID, b.Amount, b.Message, b.Status, b.CreatedAt,
		b.ListingID, model.ListingActive, now, b.BidderID, b.Amount)
	if err != nil {
		return false, fmt.Errorf("insert bid: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// GetByID returns nil, nil when the bid does not exist.
func (r *BidRepository) GetByID(ctx context.Context, id string) (*model.Bid, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = ?`, id)
	b, err := scanBid(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get bid: %w", err)
	}
	return b, nil
}

func (r *BidRepository) ListByListing(ctx context.Context, listingID string) ([]model.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE listing_id = ? ORDER BY created_at ASC, id ASC`, listingID)
}

func (r *BidRepository) ListByListingAndBidder(ctx context.Context, listingID, bidderID string) ([]model.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE listing_id = ? AND bidder_id = ? ORDER BY created_at ASC, id ASC`,
		listingID, bidderID)
}

func (r *BidRepository) list(ctx context.Context, query string, args ...any) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}

// Accept is the compare-and-set pending -> accepted.
func (r *BidRepository) Accept(ctx context.Context, id, listingID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bids SET status = ?, decided_at = ? WHERE id = ? AND listing_id = ? AND status = ?`,
		model.BidAccepted, now, id, listingID, model.BidPending)
	if err != nil {
		return false, fmt.Errorf("accept bid: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// RejectSiblings rejects every other pending bid on the listing.
func (r *BidRepository) RejectSiblings(ctx context.Context, listingID, acceptedID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bids SET status = ?, decided_at = ? WHERE listing_id = ? AND status = ? AND id <> ?`,
		model.BidRejected, now, listingID, model.BidPending, acceptedID)
	if err != nil {
		return 0, fmt.Errorf("reject sibling bids: %w", err)
	}
	return affected(res)
}

// Reject is the compare-and-set pending -> rejected.
func (r *BidRepository) Reject(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bids SET status = ?, decided_at = ? WHERE id = ? AND status = ?`,
		model.BidRejected, now, id, model.BidPending)
	if err != nil {
		return false, fmt.Errorf("reject bid: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}
