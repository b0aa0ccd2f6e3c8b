package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salvage-market/model"
)

const listingColumns = `id, owner_id, title, description, kind, category, price, location, image_refs, status, duration_days, created_at, expires_at, updated_at`

type ListingRepository struct {
	db DBTX
}

func NewListingRepository(db DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ListingRepository) WithTx(tx *sql.Tx) *ListingRepository {
	return &ListingRepository{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*model.Listing, error) {
	var l model.Listing
	var images string
	if err := s.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Kind, &l.Category, &l.Price, &l.Location,
		&images, &l.Status, &l.DurationDays, &l.CreatedAt, &l.ExpiresAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &l.ImageRefs); err != nil {
		return nil, fmt.Errorf("listing %s image_refs: %w", l.ID, err)
	}
	if l.ImageRefs == nil {
		l.ImageRefs = []string{}
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.ExpiresAt = l.ExpiresAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func encodeImages(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *ListingRepository) Insert(ctx context.Context, l *model.Listing) error {
	images, err := encodeImages(l.ImageRefs)
	if err != nil {
		return err
	}
	query := `INSERT INTO listings (` + listingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, l.ID, l.OwnerID, l.Title, l.Description, l.Kind, l.Category, l.Price, l.Location,
		images, l.Status, l.DurationDays, l.CreatedAt, l.ExpiresAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the listing does not exist.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// ListActive returns the listings buyers may see at now. The expiry
// check does not depend on the sweep having run.
func (r *ListingRepository) ListActive(ctx context.Context, now time.Time, filter model.ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = ? AND expires_at > ?`
	args := []any{model.ListingActive, now}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, args...)
}

// ListWithoutSellAgent returns the open listings that never received a
// sell assignment, oldest first.
func (r *ListingRepository) ListWithoutSellAgent(ctx context.Context, now time.Time) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE status = ? AND expires_at > ? AND NOT EXISTS (
			SELECT 1 FROM agent_assignments aa
			WHERE aa.listing_id = listings.id AND aa.client_id = listings.owner_id AND aa.assignment_type = ?)
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, model.ListingActive, now, model.AssignmentSell)
}

func (r *ListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Listing, error) {
	return r.list(ctx, `SELECT `+listingColumns+` FROM listings WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *ListingRepository) list(ctx context.Context, query string, args ...any) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpdateMetadata rewrites the editable fields of an active listing owned
// by l.OwnerID. It reports whether a row matched.
func (r *ListingRepository) UpdateMetadata(ctx context.Context, l *model.Listing) (bool, error) {
	images, err := encodeImages(l.ImageRefs)
	if err != nil {
		return false, err
	}
	query := `UPDATE listings SET title = ?, description = ?, price = ?, location = ?, image_refs = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, l.Title, l.Description, l.Price, l.Location, images, l.UpdatedAt,
		l.ID, l.OwnerID, model.ListingActive)
	if err != nil {
		return false, fmt.Errorf("update listing: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// Cancel moves an active listing owned by ownerID to cancelled.
func (r *ListingRepository) Cancel(ctx context.Context, id, ownerID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ? AND status = ?`,
		model.ListingCancelled, now, id, ownerID, model.ListingActive)
	if err != nil {
		return false, fmt.Errorf("cancel listing: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// MarkSold is the compare-and-set active -> sold. Exactly one concurrent
// caller can observe true for a given listing.
func (r *ListingRepository) MarkSold(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ? AND status = ? AND expires_at > ?`,
		model.ListingSold, now, id, model.ListingActive, now)
	if err != nil {
		return false, fmt.Errorf("mark listing sold: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// ExpireDue moves every active listing whose expiry has been reached to
// expired and returns how many moved.
func (r *ListingRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE status = ? AND expires_at <= ?`,
		model.ListingExpired, now, model.ListingActive, now)
	if err != nil {
		return 0, fmt.Errorf("expire listings: %w", err)
	}
	return affected(res)
}

// Lock takes the row lock on a listing for the rest of the transaction.
func (r *ListingRepository) Lock(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE listings SET id = id WHERE id = ?`, id); err != nil {
		return fmt.Errorf("lock listing: %w", err)
	}
	return nil
}
