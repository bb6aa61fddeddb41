package storage

import (
	"context"
	"fmt"
	"strings"

	"pagecraft/internal/domain"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id {id} PRIMARY KEY,
		name {str} NOT NULL,
		created_at {time} NOT NULL,
		updated_at {time} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS compositions (
		page_id {id} PRIMARY KEY,
		version BIGINT NOT NULL,
		doc_json {json} NOT NULL,
		updated_at {time} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id {id} PRIMARY KEY,
		owner_user_id {id} NOT NULL,
		purpose {id} NOT NULL,
		page_id {id} NOT NULL,
		created_at {time} NOT NULL
	)`,
	`CREATE UNIQUE INDEX {ifne} idx_threads_owner ON threads(owner_user_id, page_id, purpose)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id {id} PRIMARY KEY,
		thread_id {id} NOT NULL,
		seq BIGINT NOT NULL,
		role {id} NOT NULL,
		content {json} NOT NULL,
		tool_calls_json {json} NOT NULL,
		created_at {time} NOT NULL
	)`,
	`CREATE UNIQUE INDEX {ifne} idx_messages_thread_seq ON messages(thread_id, seq)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {id} PRIMARY KEY,
		page_id {id} NOT NULL,
		block_id {id} NOT NULL,
		user_id {id} NOT NULL,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		text {json} NOT NULL,
		media_json {json} NOT NULL,
		status {id} NOT NULL,
		thread_id {id} NOT NULL,
		previous_json {json} NOT NULL,
		patch_json {json} NOT NULL,
		ai_response {json} NOT NULL,
		failure {json} NOT NULL,
		created_at {time} NOT NULL,
		updated_at {time} NOT NULL
	)`,
	`CREATE INDEX {ifne} idx_comments_page ON comments(page_id, status)`,
	`CREATE TABLE IF NOT EXISTS undo_nodes (
		id {id} PRIMARY KEY,
		page_id {id} NOT NULL,
		parent_id {id},
		label {str} NOT NULL,
		snapshot_json {json} NOT NULL,
		seq BIGINT NOT NULL,
		created_at {time} NOT NULL
	)`,
	`CREATE INDEX {ifne} idx_undo_nodes_page ON undo_nodes(page_id, seq)`,
	`CREATE TABLE IF NOT EXISTS undo_state (
		page_id {id} PRIMARY KEY,
		current_node_id {id} NOT NULL
	)`,
}

// dialectTypes fills the column type placeholders of migrations.
func dialectTypes(d domain.DatabaseDriver) *strings.Replacer {
	switch d {
	case domain.DatabaseDriverPostgres:
		return strings.NewReplacer("{id}", "VARCHAR(64)", "{str}", "VARCHAR(255)", "{json}", "TEXT", "{time}", "TIMESTAMPTZ", "{ifne}", "IF NOT EXISTS")
	case domain.DatabaseDriverMySQL:
		// MySQL has no CREATE INDEX IF NOT EXISTS; duplicates are skipped in migrate.
		return strings.NewReplacer("{id}", "VARCHAR(64)", "{str}", "VARCHAR(255)", "{json}", "LONGTEXT", "{time}", "DATETIME(6)", "{ifne}", "")
	default:
		return strings.NewReplacer("{id}", "TEXT", "{str}", "TEXT", "{json}", "TEXT", "{time}", "DATETIME", "{ifne}", "IF NOT EXISTS")
	}
}

func (db *DB) migrate(ctx context.Context) error {
	r := dialectTypes(db.driver)
	for _, m := range migrations {
		stmt := r.Replace(m)
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			// Error 1061: duplicate key name
			if db.driver == domain.DatabaseDriverMySQL && strings.Contains(err.Error(), "1061") {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
