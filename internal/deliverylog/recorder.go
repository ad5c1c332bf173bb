// Package deliverylog records every channel attempt and fans it out to
// live watchers.
package deliverylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lupppig/notifyq/internal/broker"
	natsbroker "github.com/lupppig/notifyq/internal/broker/nats"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/store"
)

type Recorder struct {
	store store.DeliveryAttemptStore
	hub   *events.Hub
	sinks []broker.EventSink
	now   func() time.Time
}

// New builds a Recorder. hub may be nil.
func New(st store.DeliveryAttemptStore, hub *events.Hub, sinks ...broker.EventSink) *Recorder {
	return &Recorder{store: st, hub: hub, sinks: sinks, now: time.Now}
}

// Record persists each attempt, then publishes it to the hub and sinks.
// Store failures are returned joined; sink failures are only logged.
func (r *Recorder) Record(ctx context.Context, attempts ...domain.DeliveryAttempt) error {
	var errs []error
	for i := range attempts {
		a := &attempts[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = r.now().UTC()
		}

		if err := r.store.Create(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("record %s attempt: %w", a.Channel, err))
			logging.FromContext(ctx).Error("failed to persist delivery attempt",
				slog.String("code", "DB_ERROR"),
				slog.String("channel", string(a.Channel)),
				slog.Any("error", err),
			)
		}

		ev := events.FromAttempt(*a)
		if r.hub != nil {
			r.hub.Publish(ev)
		}
		r.emit(ctx, ev)
	}
	return errors.Join(errs...)
}

func (r *Recorder) emit(ctx context.Context, ev events.DeliveryEvent) {
	if len(r.sinks) == 0 {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	subject := natsbroker.DeliverySubject(string(ev.Channel))
	for _, s := range r.sinks {
		if err := s.Publish(ctx, subject, data); err != nil {
			logging.FromContext(ctx).Warn("failed to emit delivery event",
				slog.String("code", "BROKER_ERROR"),
				slog.String("subject", subject),
				slog.Any("error", err),
			)
		}
	}
}

// List returns a page of a user's attempts, newest first, with the total
// matching count.
func (r *Recorder) List(ctx context.Context, userID string, filter domain.LogFilter) ([]domain.DeliveryAttempt, int, error) {
	if userID == "" {
		return nil, 0, &domain.ValidationError{Field: "userId", Reason: "is required"}
	}
	if filter.Status != "" && filter.Status != domain.DeliveryStatusSent && filter.Status != domain.DeliveryStatusFailed {
		return nil, 0, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status %q", filter.Status)}
	}
	if filter.Channel != "" && !filter.Channel.Valid() && filter.Channel != domain.ChannelSystem {
		return nil, 0, &domain.ValidationError{Field: "channel", Reason: fmt.Sprintf("invalid channel %q", filter.Channel)}
	}
	return r.store.ListByUser(ctx, userID, store.NormalizeFilter(filter))
}
