package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
)

// Column types are chosen so the same DDL runs on MySQL and SQLite.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id CHAR(26) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id CHAR(26) PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		kind VARCHAR(16) NOT NULL,
		category VARCHAR(64) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		location VARCHAR(255) NOT NULL,
		image_refs TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		duration_days INT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id CHAR(26) PRIMARY KEY,
		listing_id CHAR(26) NOT NULL,
		bidder_id VARCHAR(64) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		message TEXT,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL,
		decided_at DATETIME NULL,
		FOREIGN KEY (listing_id) REFERENCES listings(id)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_assignments (
		id CHAR(26) PRIMARY KEY,
		agent_id CHAR(26) NOT NULL,
		client_id VARCHAR(64) NOT NULL,
		listing_id CHAR(26) NOT NULL,
		assignment_type VARCHAR(8) NOT NULL,
		status VARCHAR(16) NOT NULL,
		assigned_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		notes TEXT NOT NULL,
		FOREIGN KEY (agent_id) REFERENCES agents(id),
		FOREIGN KEY (listing_id) REFERENCES listings(id)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_communications (
		id CHAR(26) PRIMARY KEY,
		assignment_id CHAR(26) NOT NULL,
		from_agent BOOLEAN NOT NULL,
		body TEXT NOT NULL,
		message_type VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL,
		read_at DATETIME NULL,
		FOREIGN KEY (assignment_id) REFERENCES agent_assignments(id)
	)`,
	`CREATE TABLE IF NOT EXISTS container_requests (
		id CHAR(26) PRIMARY KEY,
		requester_id VARCHAR(64) NULL,
		contact_name VARCHAR(255) NOT NULL,
		contact_email VARCHAR(255) NOT NULL,
		contact_phone VARCHAR(64) NOT NULL,
		address TEXT NOT NULL,
		container_type VARCHAR(128) NOT NULL,
		quantity INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		notes TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id CHAR(26) PRIMARY KEY,
		bid_id CHAR(26) NOT NULL UNIQUE,
		listing_id CHAR(26) NOT NULL,
		buyer_id VARCHAR(64) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		amount_minor BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL,
		reference_id VARCHAR(255) NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL,
		idempotency_key CHAR(36) NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (bid_id) REFERENCES bids(id)
	)`,
}

type index struct {
	name    string
	table   string
	columns string
}

var indexes = []index{
	{"idx_listings_status_expires", "listings", "status, expires_at"},
	{"idx_listings_owner", "listings", "owner_id"},
	{"idx_bids_listing_status", "bids", "listing_id, status"},
	{"idx_bids_bidder", "bids", "bidder_id"},
	{"idx_assignments_pair", "agent_assignments", "client_id, listing_id, status"},
	{"idx_assignments_listing", "agent_assignments", "listing_id, status"},
	{"idx_assignments_agent", "agent_assignments", "agent_id, status"},
	{"idx_communications_assignment", "agent_communications", "assignment_id, created_at"},
	{"idx_container_requests_status", "container_requests", "status"},
}

// Migrate creates the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	for _, q := range tables {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	for _, idx := range indexes {
		q := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if driver == "sqlite3" {
			q = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.columns)
		}
		_, err := db.ExecContext(ctx, q)
		if isDuplicateKeyName(err) {
			// MySQL has no IF NOT EXISTS for indexes.
			logger.Debug("index already exists", "index", idx.name)
			continue
		}
		if err != nil {
			return fmt.Errorf("migrate index %s: %w", idx.name, err)
		}
	}

	logger.Info("migration completed", "tables", len(tables), "indexes", len(indexes))
	return nil
}

func isDuplicateKeyName(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}
