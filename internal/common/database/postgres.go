// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"investlink-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Schema creates the profile and match tables used by the matching workers.
// Profiles are stored as sparse JSON and normalized when read.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS investors (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		profile    JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS startups (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		profile    JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_matches (
		id                      UUID PRIMARY KEY,
		investor_id             TEXT NOT NULL,
		startup_id              TEXT NOT NULL,
		compatibility_score     DOUBLE PRECISION NOT NULL,
		traction_score          DOUBLE PRECISION NOT NULL,
		sector_similarity       DOUBLE PRECISION NOT NULL,
		confidence_score        DOUBLE PRECISION NOT NULL,
		recommendation_strength TEXT NOT NULL,
		suggestion_type         TEXT NOT NULL,
		ai_analysis             TEXT NOT NULL,
		match_explanation       TEXT NOT NULL,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (investor_id, startup_id)
	)`,
}

// Migrate applies Schema. Every statement is idempotent.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for i, stmt := range Schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
