package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-market/model"
)

const containerColumns = `id, requester_id, contact_name, contact_email, contact_phone, address, container_type, quantity, status, notes, created_at, updated_at`

type ContainerRepository struct {
	db DBTX
}

func NewContainerRepository(db DBTX) *ContainerRepository {
	return &ContainerRepository{db: db}
}

func scanContainer(s scanner) (*model.ContainerRequest, error) {
	var c model.ContainerRequest
	var requesterID sql.NullString
	if err := s.Scan(&c.ID, &requesterID, &c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.Address,
		&c.ContainerType, &c.Quantity, &c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if requesterID.Valid {
		c.RequesterID = &requesterID.String
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (r *ContainerRepository) Insert(ctx context.Context, c *model.ContainerRequest) error {
	query := `INSERT INTO container_requests (` + containerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.RequesterID, c.ContactName, c.ContactEmail, c.ContactPhone, c.Address,
		c.ContainerType, c.Quantity, c.Status, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert container request: %w", err)
	}
	return nil
}

func (r *ContainerRepository) GetByID(ctx context.Context, id string) (*model.ContainerRequest, error) {
	c, err := scanContainer(r.db.QueryRowContext(ctx, `SELECT `+containerColumns+` FROM container_requests WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get container request: %w", err)
	}
	return c, nil
}

// List returns requests newest first. An empty requesterID lists all.
func (r *ContainerRepository) List(ctx context.Context, requesterID string, status model.ContainerStatus) ([]model.ContainerRequest, error) {
	query := `SELECT ` + containerColumns + ` FROM container_requests WHERE 1 = 1`
	var args []any
	if requesterID != "" {
		query += ` AND requester_id = ?`
		args = append(args, requesterID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list container requests: %w", err)
	}
	defer rows.Close()

	requests := []model.ContainerRequest{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *c)
	}
	return requests, rows.Err()
}

// Transition is the compare-and-set from -> to.
func (r *ContainerRepository) Transition(ctx context.Context, id string, from, to model.ContainerStatus, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE container_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from)
	if err != nil {
		return false, fmt.Errorf("transition container request: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}
