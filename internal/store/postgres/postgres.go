package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS preferences (
			user_id        TEXT NOT NULL,
			channel        TEXT NOT NULL CHECK (channel IN ('email', 'sms', 'push')),
			event_category TEXT NOT NULL CHECK (event_category IN ('booking', 'wallet', 'expense', 'rewards')),
			enabled        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at     TIMESTAMPTZ DEFAULT NOW(),
			updated_at     TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (user_id, channel, event_category)
		);

		CREATE TABLE IF NOT EXISTS delivery_attempts (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			channel         TEXT NOT NULL,
			status          TEXT NOT NULL CHECK (status IN ('sent', 'failed')),
			message_id      TEXT NOT NULL,
			delivery_id     TEXT,
			payload_preview TEXT,
			error           TEXT,
			retry_count     INT DEFAULT 0,
			created_at      TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_delivery_attempts_user_created ON delivery_attempts(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_delivery_attempts_message_id ON delivery_attempts(message_id);
	`

	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
