package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lupppig/notifyq/internal/domain"
)

func (db *DB) ListPreferences(ctx context.Context, userID string) ([]domain.PreferenceRecord, error) {
	query := `
		SELECT user_id, channel, event_category, enabled, updated_at
		FROM preferences
		WHERE user_id = $1
		ORDER BY updated_at ASC
	`

	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var records []domain.PreferenceRecord
	for rows.Next() {
		var (
			r        domain.PreferenceRecord
			channel  string
			category string
		)
		if err := rows.Scan(&r.UserID, &channel, &category, &r.Enabled, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		r.Channel = domain.Channel(channel)
		r.Category = domain.Category(strings.ToUpper(category))
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}

	return records, nil
}

func (db *DB) UpsertPreferences(ctx context.Context, records []domain.PreferenceRecord) error {
	query := `
		INSERT INTO preferences (user_id, channel, event_category, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, channel, event_category)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`

	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		for _, r := range records {
			_, err := tx.Exec(ctx, query,
				r.UserID,
				string(r.Channel),
				r.Category.Lower(),
				r.Enabled,
				r.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("upsert preference %s/%s: %w", r.Channel, r.Category.Lower(), err)
			}
		}
		return nil
	})
}
