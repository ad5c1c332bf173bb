// Package sqlite is the single-file store used for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
    user_id        TEXT NOT NULL,
    channel        TEXT NOT NULL CHECK (channel IN ('email', 'sms', 'push')),
    event_category TEXT NOT NULL CHECK (event_category IN ('booking', 'wallet', 'expense', 'rewards')),
    enabled        INTEGER NOT NULL DEFAULT 1,
    updated_at     TEXT NOT NULL,
    PRIMARY KEY (user_id, channel, event_category)
);

CREATE TABLE IF NOT EXISTS delivery_attempts (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    channel         TEXT NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('sent', 'failed')),
    message_id      TEXT NOT NULL,
    delivery_id     TEXT NOT NULL DEFAULT '',
    payload_preview TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    retry_count     INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_attempts_user_created ON delivery_attempts(user_id, created_at);
`

// Store implements store.Store on modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn. ":memory:" is allowed.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ListPreferences(ctx context.Context, userID string) ([]domain.PreferenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, channel, event_category, enabled, updated_at
        FROM preferences
        WHERE user_id = ?
        ORDER BY updated_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var records []domain.PreferenceRecord
	for rows.Next() {
		var (
			r                        domain.PreferenceRecord
			channel, category, stamp string
		)
		if err := rows.Scan(&r.UserID, &channel, &category, &r.Enabled, &stamp); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		r.Channel = domain.Channel(channel)
		r.Category = domain.Category(strings.ToUpper(category))
		r.UpdatedAt = parseTime(stamp)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return records, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, records []domain.PreferenceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preference tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO preferences (user_id, channel, event_category, enabled, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT (user_id, channel, event_category)
            DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
			r.UserID, string(r.Channel), r.Category.Lower(), r.Enabled, formatTime(r.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert preference %s/%s: %w", r.Channel, r.Category.Lower(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preference tx: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO delivery_attempts (id, user_id, channel, status, message_id, delivery_id, payload_preview, error, retry_count, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Channel), string(a.Status), a.MessageID, a.DeliveryID,
		a.PayloadPreview, a.Error, a.RetryCount, formatTime(a.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: delivery attempt %s", store.ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string, filter domain.LogFilter) ([]domain.DeliveryAttempt, int, error) {
	filter = store.NormalizeFilter(filter)

	where := []string{"user_id = ?"}
	args := []any{userID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, string(filter.Channel))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM delivery_attempts WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count delivery attempts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, channel, status, message_id, delivery_id, payload_preview, error, retry_count, created_at
        FROM delivery_attempts
        WHERE `+cond+`
        ORDER BY created_at DESC, rowid DESC
        LIMIT ? OFFSET ?`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.DeliveryAttempt, 0, filter.Limit)
	for rows.Next() {
		var (
			a                      domain.DeliveryAttempt
			channel, status, stamp string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &channel, &status, &a.MessageID, &a.DeliveryID,
			&a.PayloadPreview, &a.Error, &a.RetryCount, &stamp); err != nil {
			return nil, 0, fmt.Errorf("scan delivery attempt: %w", err)
		}
		a.Channel = domain.Channel(channel)
		a.Status = domain.DeliveryStatus(status)
		a.CreatedAt = parseTime(stamp)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate delivery attempts: %w", err)
	}
	return attempts, total, nil
}

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ store.Store = (*Store)(nil)
