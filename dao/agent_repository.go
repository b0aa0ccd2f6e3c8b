package dao

import (
	"context"
	"database/sql"
	"fmt"

	"salvage-market/model"
)

const agentColumns = `id, user_id, name, email, available, created_at`

type AgentRepository struct {
	db DBTX
}

func NewAgentRepository(db DBTX) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) WithTx(tx *sql.Tx) *AgentRepository {
	return &AgentRepository{db: tx}
}

func scanAgent(s scanner, extra ...any) (*model.Agent, error) {
	var a model.Agent
	dest := append([]any{&a.ID, &a.UserID, &a.Name, &a.Email, &a.Available, &a.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *AgentRepository) Insert(ctx context.Context, a *model.Agent) error {
	query := `INSERT INTO agents (` + agentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.UserID, a.Name, a.Email, a.Available, a.CreatedAt); err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	return r.get(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
}

func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*model.Agent, error) {
	return r.get(ctx, `SELECT `+agentColumns+` FROM agents WHERE email = ?`, email)
}

func (r *AgentRepository) get(ctx context.Context, query string, args ...any) (*model.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]model.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := []model.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// ListLoads returns every available agent except the one acting as
// excludeUserID, with its count of active assignments, ordered by id.
func (r *AgentRepository) ListLoads(ctx context.Context, excludeUserID string) ([]model.AgentLoad, error) {
	query := `SELECT a.id, a.user_id, a.name, a.email, a.available, a.created_at, COUNT(aa.id)
		FROM agents a
		LEFT JOIN agent_assignments aa ON aa.agent_id = a.id AND aa.status = ?
		WHERE a.available = ? AND a.user_id <> ?
		GROUP BY a.id, a.user_id, a.name, a.email, a.available, a.created_at
		ORDER BY a.id ASC`
	rows, err := r.db.QueryContext(ctx, query, model.AssignmentActive, true, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list agent loads: %w", err)
	}
	defer rows.Close()

	var loads []model.AgentLoad
	for rows.Next() {
		var count int
		a, err := scanAgent(rows, &count)
		if err != nil {
			return nil, err
		}
		loads = append(loads, model.AgentLoad{Agent: *a, ActiveAssignments: count})
	}
	return loads, rows.Err()
}
