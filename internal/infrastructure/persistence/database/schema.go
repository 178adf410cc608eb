package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS user_role_preferences (
		user_id TEXT PRIMARY KEY,
		preferred_role TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		detection_method TEXT NOT NULL,
		behavioral_data TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		expires_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_session_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id TEXT,
		cache_key TEXT NOT NULL,
		cache_value TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, cache_key)
	)`,
	`CREATE TABLE IF NOT EXISTS user_behavioral_tracking (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		session_id TEXT,
		behavior_type TEXT NOT NULL,
		behavior_data TEXT,
		weight REAL NOT NULL DEFAULT 1.0,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_role_preferences_expires ON user_role_preferences(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_session_cache_session ON user_session_cache(session_id, cache_key)`,
	`CREATE INDEX IF NOT EXISTS idx_session_cache_expires ON user_session_cache(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_behavioral_user ON user_behavioral_tracking(user_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_behavioral_session ON user_behavioral_tracking(session_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_behavioral_timestamp ON user_behavioral_tracking(timestamp)`,
}
