// Package preferences resolves per-user channel enablement through a
// read-through cache in front of the preference store.
package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/store"
)

const DefaultTTL = time.Hour

type Service struct {
	store store.PreferenceStore
	cache Cache
	ttl   time.Duration
	now   func() time.Time

	// gen is bumped by every invalidation. A read-through only fills the
	// cache when no invalidation happened since it started reading.
	mu  sync.Mutex
	gen uint64
}

// NewService builds a Service. A nil cache disables caching.
func NewService(st store.PreferenceStore, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: st, cache: cache, ttl: ttl, now: time.Now}
}

// Get returns the user's preferences. It never fails: any cache or store
// error yields DefaultPreferences.
func (s *Service) Get(ctx context.Context, userID string) domain.Preferences {
	l := logging.FromContext(logging.WithUser(ctx, userID))

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			l.Warn("preference cache read failed, using defaults",
				slog.String("code", "PREF_FALLBACK"),
				slog.Any("error", err),
			)
			return domain.DefaultPreferences()
		}
		if cached != nil {
			return *cached
		}
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	prefs, err := s.load(ctx, userID)
	if err != nil {
		l.Warn("preference store read failed, using defaults",
			slog.String("code", "PREF_FALLBACK"),
			slog.Any("error", err),
		)
		return domain.DefaultPreferences()
	}

	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			if err := s.cache.Set(ctx, userID, prefs, s.ttl); err != nil {
				l.Warn("failed to cache preferences", slog.String("code", "CACHE_ERROR"), slog.Any("error", err))
			}
		}
		s.mu.Unlock()
	}
	return prefs
}

// load reads and collapses the stored rows, bypassing the cache.
func (s *Service) load(ctx context.Context, userID string) (domain.Preferences, error) {
	records, err := s.store.ListPreferences(ctx, userID)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("%w: %v", domain.ErrPreferenceStore, err)
	}
	return Collapse(records), nil
}

// ForCategory resolves preferences for one category. Reads are per user
// today, so every category sees the same flags.
func (s *Service) ForCategory(ctx context.Context, userID string, _ domain.Category) domain.Preferences {
	return s.Get(ctx, userID)
}

// Update validates every entry, upserts them together, drops the cached
// entry and returns a fresh read from the store. An invalid entry rejects
// the whole update. If the cached entry cannot be dropped the update is
// reported as failed, since reads would keep serving the old flags.
func (s *Service) Update(ctx context.Context, userID string, updates []domain.PreferenceUpdate) (domain.Preferences, error) {
	if userID == "" {
		return domain.Preferences{}, &domain.ValidationError{Field: "userId", Reason: "is required"}
	}
	if len(updates) == 0 {
		return domain.Preferences{}, &domain.ValidationError{Field: "preferences", Reason: "must be a non-empty array"}
	}

	now := s.now()
	records := make([]domain.PreferenceRecord, 0, len(updates))
	for i, u := range updates {
		ch, err := domain.ParseChannel(u.Channel)
		if err != nil {
			return domain.Preferences{}, &domain.ValidationError{Field: fmt.Sprintf("preferences[%d].channel", i), Reason: err.Error()}
		}
		cat, err := domain.ParseCategory(u.EventCategory)
		if err != nil {
			return domain.Preferences{}, &domain.ValidationError{Field: fmt.Sprintf("preferences[%d].eventCategory", i), Reason: err.Error()}
		}
		if u.Enabled == nil {
			return domain.Preferences{}, &domain.ValidationError{Field: fmt.Sprintf("preferences[%d].enabled", i), Reason: "must be a boolean"}
		}
		records = append(records, domain.PreferenceRecord{
			UserID:    userID,
			Channel:   ch,
			Category:  cat,
			Enabled:   *u.Enabled,
			UpdatedAt: now,
		})
	}

	if err := s.store.UpsertPreferences(ctx, records); err != nil {
		return domain.Preferences{}, fmt.Errorf("%w: %v", domain.ErrPreferenceStore, err)
	}

	if err := s.Invalidate(ctx, userID); err != nil {
		return domain.Preferences{}, fmt.Errorf("%w: preferences saved but cache not invalidated: %v", domain.ErrPreferenceStore, err)
	}

	prefs, err := s.load(ctx, userID)
	if err != nil {
		return domain.Preferences{}, err
	}
	return prefs, nil
}

// Invalidate drops the cached entry for a user and stops in-flight
// read-throughs from caching what they read before it.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		logging.FromContext(logging.WithUser(ctx, userID)).Error("failed to invalidate preference cache",
			slog.String("code", "CACHE_ERROR"),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

// Collapse folds stored rows into one flag per channel. Channels without a
// row keep their default; among rows for the same channel the most
// recently updated wins, and rows updated at the same instant are ordered
// by category so the result does not depend on row order.
func Collapse(records []domain.PreferenceRecord) domain.Preferences {
	prefs := domain.DefaultPreferences()
	winners := make(map[domain.Channel]domain.PreferenceRecord, 3)
	for _, r := range records {
		if !r.Channel.Valid() {
			continue
		}
		if w, ok := winners[r.Channel]; ok && !newer(r, w) {
			continue
		}
		winners[r.Channel] = r
	}
	for ch, r := range winners {
		prefs.Set(ch, r.Enabled)
	}
	return prefs
}

func newer(a, b domain.PreferenceRecord) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.Category > b.Category
}
