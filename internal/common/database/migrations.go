// internal/common/database/migrations.go
// Idempotent schema bootstrap for the tables the recommendation core reads and writes

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		email VARCHAR(255) UNIQUE,
		username VARCHAR(100),
		display_name VARCHAR(100),
		photos TEXT[] NOT NULL DEFAULT '{}',
		latitude DECIMAL(10, 7),
		longitude DECIMAL(10, 7),
		onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS connections (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		connected_user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'connected', 'active', 'ended', 'blocked')),
		connection_type VARCHAR(20) NOT NULL DEFAULT 'standard'
			CHECK (connection_type IN ('standard', 'super')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS connections_user_status_idx ON connections (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS connections_connected_status_idx ON connections (connected_user_id, status)`,

	`CREATE TABLE IF NOT EXISTS user_interactions (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		target_user_id VARCHAR(64) REFERENCES users(id) ON DELETE SET NULL,
		location_id VARCHAR(64),
		interaction_type VARCHAR(20) NOT NULL,
		duration INTEGER,
		context VARCHAR(50),
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS user_interactions_user_type_idx ON user_interactions (user_id, interaction_type, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS user_interactions_target_idx ON user_interactions (target_user_id, user_id)`,

	`CREATE TABLE IF NOT EXISTS recommendations (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recommended_user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		confidence_score INTEGER NOT NULL DEFAULT 0,
		reason_codes TEXT[] NOT NULL DEFAULT '{}',
		category VARCHAR(20) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_viewed BOOLEAN NOT NULL DEFAULT FALSE,
		is_acted_on BOOLEAN NOT NULL DEFAULT FALSE,
		action_taken VARCHAR(20) CHECK (action_taken IN ('liked', 'passed', 'super_liked')),
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	// At most one active row per pair; inserts race into ON CONFLICT updates
	`CREATE UNIQUE INDEX IF NOT EXISTS recommendations_active_pair_idx
		ON recommendations (user_id, recommended_user_id) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS recommendations_user_active_idx ON recommendations (user_id, is_active, confidence_score DESC)`,

	`CREATE TABLE IF NOT EXISTS training_signals (
		id BIGSERIAL PRIMARY KEY,
		signal_type VARCHAR(50) NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS training_signals_type_idx ON training_signals (signal_type, processed)`,
}

// RunMigrations creates any missing tables and indexes
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
