package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/store"
)

func (db *DB) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `
		INSERT INTO delivery_attempts (id, user_id, channel, status, message_id, delivery_id, payload_preview, error, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.UserID,
		string(attempt.Channel),
		string(attempt.Status),
		attempt.MessageID,
		attempt.DeliveryID,
		attempt.PayloadPreview,
		attempt.Error,
		attempt.RetryCount,
		attempt.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: delivery attempt %s", store.ErrAlreadyExists, attempt.ID)
		}
		return fmt.Errorf("insert delivery attempt: %w", err)
	}

	return nil
}

func (db *DB) ListByUser(ctx context.Context, userID string, filter domain.LogFilter) ([]domain.DeliveryAttempt, int, error) {
	filter = store.NormalizeFilter(filter)

	where := []string{"user_id = $1"}
	args := []any{userID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Channel != "" {
		args = append(args, string(filter.Channel))
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM delivery_attempts WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count delivery attempts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, channel, status, message_id, COALESCE(delivery_id, ''),
		       COALESCE(payload_preview, ''), COALESCE(error, ''), retry_count, created_at
		FROM delivery_attempts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query delivery attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DeliveryAttempt, error) {
		var (
			a       domain.DeliveryAttempt
			channel string
			status  string
		)
		err := row.Scan(&a.ID, &a.UserID, &channel, &status, &a.MessageID, &a.DeliveryID,
			&a.PayloadPreview, &a.Error, &a.RetryCount, &a.CreatedAt)
		a.Channel = domain.Channel(channel)
		a.Status = domain.DeliveryStatus(status)
		return a, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan delivery attempts: %w", err)
	}

	return attempts, total, nil
}

var _ store.Store = (*DB)(nil)
