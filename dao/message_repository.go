package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-market/model"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage appends msg only while its assignment is active. It
// reports whether the message was stored.
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *model.AgentCommunication) (bool, error) {
	query := `INSERT INTO agent_communications (id, assignment_id, from_agent, body, message_type, created_at, read_at)
		SELECT ?, id, ?, ?, ?, ?, NULL FROM agent_assignments WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, msg.ID, msg.FromAgent, msg.Body, msg.Type, msg.CreatedAt,
		msg.AssignmentID, model.AssignmentActive)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := affected(res)
	return n == 1, err
}

func (r *MessageRepository) GetMessagesByAssignmentID(ctx context.Context, assignmentID string) ([]model.AgentCommunication, error) {
	query := `SELECT id, assignment_id, from_agent, body, message_type, created_at, read_at
		FROM agent_communications
		WHERE assignment_id = ?
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.AgentCommunication{}
	for rows.Next() {
		var msg model.AgentCommunication
		var readAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.AssignmentID, &msg.FromAgent, &msg.Body, &msg.Type, &msg.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		msg.ReadAt = nullTime(readAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkRead stamps read_at on every unread message of the assignment sent
// by the other party. fromAgent selects which side's messages are read.
func (r *MessageRepository) MarkRead(ctx context.Context, assignmentID string, fromAgent bool, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_communications SET read_at = ? WHERE assignment_id = ? AND from_agent = ? AND read_at IS NULL`,
		now, assignmentID, fromAgent)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return affected(res)
}
