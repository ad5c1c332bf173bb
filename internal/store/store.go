package store

import (
	"context"
	"errors"

	"github.com/lupppig/notifyq/internal/domain"
)

var ErrAlreadyExists = errors.New("already exists")

// DefaultListLimit applies when a listing asks for no explicit limit.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// PreferenceStore persists (user, channel, category) enablement rows.
type PreferenceStore interface {
	ListPreferences(ctx context.Context, userID string) ([]domain.PreferenceRecord, error)
	// UpsertPreferences writes every record or none of them.
	UpsertPreferences(ctx context.Context, records []domain.PreferenceRecord) error
}

// DeliveryAttemptStore is the append-only delivery log.
type DeliveryAttemptStore interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	ListByUser(ctx context.Context, userID string, filter domain.LogFilter) ([]domain.DeliveryAttempt, int, error)
}

// Store is everything the service needs from a database backend.
type Store interface {
	PreferenceStore
	DeliveryAttemptStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// NormalizeFilter clamps paging values into range.
func NormalizeFilter(f domain.LogFilter) domain.LogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
