package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-market/model"
)

const assignmentColumns = `aa.id, aa.agent_id, aa.client_id, aa.listing_id, aa.assignment_type, aa.status, aa.assigned_at, aa.completed_at, aa.notes`

type AssignmentRepository struct {
	db DBTX
}

func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) WithTx(tx *sql.Tx) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

func scanAssignment(s scanner, extra ...any) (*model.AgentAssignment, error) {
	var a model.AgentAssignment
	var completedAt sql.NullTime
	dest := append([]any{&a.ID, &a.AgentID, &a.ClientID, &a.ListingID, &a.Type, &a.Status, &a.AssignedAt, &completedAt, &a.Notes}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	a.AssignedAt = a.AssignedAt.UTC()
	a.CompletedAt = nullTime(completedAt)
	return &a, nil
}

func (r *AssignmentRepository) Insert(ctx context.Context, a *model.AgentAssignment) error {
	query := `INSERT INTO agent_assignments (id, agent_id, client_id, listing_id, assignment_type, status, assigned_at, completed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.AgentID, a.ClientID, a.ListingID, a.Type, a.Status, a.AssignedAt, a.CompletedAt, a.Notes)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*model.AgentAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM agent_assignments aa WHERE aa.id = ?`, id)
}

// GetActiveForPair returns the active assignment of a (client, listing)
// pair, or nil.
func (r *AssignmentRepository) GetActiveForPair(ctx context.Context, clientID, listingID string) (*model.AgentAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM agent_assignments aa
		WHERE aa.client_id = ? AND aa.listing_id = ? AND aa.status = ?
		ORDER BY aa.assigned_at ASC, aa.id ASC LIMIT 1`,
		clientID, listingID, model.AssignmentActive)
}

func (r *AssignmentRepository) get(ctx context.Context, query string, args ...any) (*model.AgentAssignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListForUser returns the assignments where userID is the client or the
// agent. UnreadCount counts unread messages addressed to userID.
func (r *AssignmentRepository) ListForUser(ctx context.Context, userID string) ([]model.AssignmentSummary, error) {
	query := `SELECT ` + assignmentColumns + `, ag.user_id,
			(SELECT COUNT(*) FROM agent_communications c WHERE c.assignment_id = aa.id AND c.from_agent = ? AND c.read_at IS NULL),
			(SELECT COUNT(*) FROM agent_communications c WHERE c.assignment_id = aa.id AND c.from_agent = ? AND c.read_at IS NULL)
		FROM agent_assignments aa
		JOIN agents ag ON ag.id = aa.agent_id
		WHERE aa.client_id = ? OR ag.user_id = ?
		ORDER BY aa.assigned_at DESC, aa.id DESC`
	rows, err := r.db.QueryContext(ctx, query, true, false, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for user: %w", err)
	}
	defer rows.Close()

	summaries := []model.AssignmentSummary{}
	for rows.Next() {
		var agentUserID string
		var fromAgent, fromClient int
		a, err := scanAssignment(rows, &agentUserID, &fromAgent, &fromClient)
		if err != nil {
			return nil, err
		}
		s := model.AssignmentSummary{AgentAssignment: *a, AgentUserID: agentUserID, UnreadCount: fromAgent}
		if a.ClientID != userID {
			s.UnreadCount = fromClient
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close moves an active assignment to a terminal status.
func (r *AssignmentRepository) Close(ctx context.Context, id string, status model.AssignmentStatus, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_assignments SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		status, now, id, model.AssignmentActive)
	if err != nil {
		return false, fmt.Errorf("close assignment: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

// CloseForListing moves every active assignment of a listing to status.
func (r *AssignmentRepository) CloseForListing(ctx context.Context, listingID string, status model.AssignmentStatus, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_assignments SET status = ?, completed_at = ? WHERE listing_id = ? AND status = ?`,
		status, now, listingID, model.AssignmentActive)
	if err != nil {
		return 0, fmt.Errorf("close listing assignments: %w", err)
	}
	return affected(res)
}

// CompleteBuy completes the client's active buy assignment on a listing.
func (r *AssignmentRepository) CompleteBuy(ctx context.Context, listingID, clientID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_assignments SET status = ?, completed_at = ?
		WHERE listing_id = ? AND client_id = ? AND assignment_type = ? AND status = ?`,
		model.AssignmentCompleted, now, listingID, clientID, model.AssignmentBuy, model.AssignmentActive)
	if err != nil {
		return 0, fmt.Errorf("complete buy assignment: %w", err)
	}
	return affected(res)
}

// CancelForClosedListings cancels active assignments whose listing ended
// without a sale.
func (r *AssignmentRepository) CancelForClosedListings(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_assignments SET status = ?, completed_at = ?
		WHERE status = ? AND listing_id IN (SELECT id FROM listings WHERE status IN (?, ?))`,
		model.AssignmentCancelled, now, model.AssignmentActive, model.ListingExpired, model.ListingCancelled)
	if err != nil {
		return 0, fmt.Errorf("cancel closed listing assignments: %w", err)
	}
	return affected(res)
}
