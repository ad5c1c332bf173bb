// Package publisher turns job requests into durable queue envelopes.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/ids"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/routing"
)

type Publisher struct {
	broker broker.Publisher
	now    func() time.Time
	newID  func() string
}

func New(b broker.Publisher) *Publisher {
	return &Publisher{broker: b, now: time.Now, newID: ids.MessageID}
}

// Validate checks a job request without publishing it.
func Validate(req domain.JobRequest) (domain.Category, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", &domain.ValidationError{Field: "userId", Reason: "is required"}
	}
	if strings.TrimSpace(req.EventType) == "" {
		return "", &domain.ValidationError{Field: "eventType", Reason: "is required"}
	}
	if len(req.Payload) == 0 {
		return "", &domain.ValidationError{Field: "payload", Reason: "is required"}
	}
	for _, c := range req.Channels {
		if !c.Valid() {
			return "", &domain.ValidationError{Field: "channels", Reason: fmt.Sprintf("invalid channel %q", c)}
		}
	}
	return routing.Resolve(req.EventType)
}

// RouteAndPublish validates req, resolves its queue and enqueues a new
// envelope. It returns once the broker has confirmed the message; nothing is
// enqueued when validation fails.
func (p *Publisher) RouteAndPublish(ctx context.Context, req domain.JobRequest) (string, error) {
	category, err := Validate(req)
	if err != nil {
		return "", err
	}

	env := domain.Envelope{
		UserID:    req.UserID,
		EventType: req.EventType,
		Payload:   req.Payload,
		Channels:  req.Channels,
		Timestamp: p.now().UTC(),
		QueueType: category,
		MessageID: p.newID(),
		Version:   domain.EnvelopeVersion,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	queue := category.Queue()
	err = p.broker.Publish(ctx, queue, broker.Outgoing{
		Body:      body,
		MessageID: env.MessageID,
		Type:      env.EventType,
		Timestamp: env.Timestamp,
		Headers: map[string]any{
			broker.HeaderEventType: env.EventType,
			broker.HeaderUserID:    env.UserID,
			broker.HeaderAttempt:   int32(1),
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", queue, err)
	}

	ctx = logging.WithMessage(logging.WithUser(logging.WithQueue(ctx, queue), env.UserID), env.MessageID)
	logging.FromContext(ctx).Info("notification published",
		slog.String("code", "MSG_PUBLISHED"),
		slog.String("event_type", env.EventType),
	)
	return env.MessageID, nil
}
