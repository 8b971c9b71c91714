package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL and creates the audit tables.
func ConnectPostgres(ctx context.Context, postgresURI string, log *zap.Logger) error {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return err
	}
	log.Info("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(ctx, db); err != nil {
		db.Close()
		return err
	}
	log.Info("✅ PostgreSQL tables initialized")

	PostgresDB = db
	return nil
}

// schema creates the auth event log. user_id is the Mongo ObjectID hex.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS auth_events (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		action VARCHAR(64) NOT NULL,
		user_id VARCHAR(24),
		email VARCHAR(255),
		outcome VARCHAR(16) NOT NULL,
		detail TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_events_user_id ON auth_events(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_events_created_at ON auth_events(created_at)`,
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
