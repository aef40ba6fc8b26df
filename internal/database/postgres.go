package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDB holds organizations and staff accounts. Reports live in Mongo.
var PostgresDB *sql.DB

var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(120) NOT NULL,
		slug VARCHAR(60) NOT NULL UNIQUE,
		center_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		center_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		focus_area VARCHAR(120) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS staff_accounts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_staff_accounts_email_lower ON staff_accounts(LOWER(email))`,
	`CREATE INDEX IF NOT EXISTS idx_staff_accounts_org ON staff_accounts(organization_id)`,
}

// ConnectPostgres opens the pool, verifies it and applies the schema.
func ConnectPostgres(postgresURI string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(15)
	db.SetMaxIdleConns(3)
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := InitPostgresTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	PostgresDB = db
	logger.Info("connected to PostgreSQL", zap.Int("schema_statements", len(schema)))
	return nil
}

// InitPostgresTables is idempotent; statements run in order and the first
// failure aborts.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func DisconnectPostgres() error {
	if PostgresDB == nil {
		return nil
	}
	err := PostgresDB.Close()
	PostgresDB = nil
	return err
}
