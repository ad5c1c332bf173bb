// Package dispatch expands a queued job into per-channel deliveries.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lupppig/notifyq/internal/channels"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/routing"
	"github.com/lupppig/notifyq/internal/templates"
	"golang.org/x/sync/errgroup"
)

// HintPolicy decides what the job's channels hint does.
type HintPolicy string

const (
	// HintAdvisory ignores the hint; preferences alone decide.
	HintAdvisory HintPolicy = "advisory"
	// HintRestrict delivers only to channels both enabled and hinted.
	HintRestrict HintPolicy = "restrict"
)

func ParseHintPolicy(s string) (HintPolicy, error) {
	switch HintPolicy(s) {
	case "", HintAdvisory:
		return HintAdvisory, nil
	case HintRestrict:
		return HintRestrict, nil
	}
	return "", fmt.Errorf("unknown channel hint policy %q", s)
}

const DefaultChannelTimeout = 10 * time.Second

type PreferenceResolver interface {
	ForCategory(ctx context.Context, userID string, category domain.Category) domain.Preferences
}

type AttemptRecorder interface {
	Record(ctx context.Context, attempts ...domain.DeliveryAttempt) error
}

type Config struct {
	ChannelTimeout time.Duration
	HintPolicy     HintPolicy
}

type Engine struct {
	prefs    PreferenceResolver
	senders  *channels.Registry
	recorder AttemptRecorder
	cfg      Config
}

func NewEngine(prefs PreferenceResolver, senders *channels.Registry, recorder AttemptRecorder, cfg Config) *Engine {
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = DefaultChannelTimeout
	}
	if cfg.HintPolicy == "" {
		cfg.HintPolicy = HintAdvisory
	}
	return &Engine{prefs: prefs, senders: senders, recorder: recorder, cfg: cfg}
}

type send struct {
	channel domain.Channel
	target  string
	content domain.Content
	sender  channels.Sender
}

// Dispatch delivers env to every applicable channel and records each
// attempt before returning. Channel failures never abort siblings and do
// not fail the outcome.
func (e *Engine) Dispatch(ctx context.Context, env *domain.Envelope) Outcome {
	if env == nil {
		return Outcome{Err: fmt.Errorf("%w: nil envelope", domain.ErrMessageParse)}
	}
	ctx = logging.WithMessage(logging.WithUser(ctx, env.UserID), env.MessageID)
	l := logging.FromContext(ctx)

	if env.UserID == "" || len(env.Payload) == 0 {
		return e.abort(ctx, env, fmt.Errorf("%w: missing userId or payload", domain.ErrMessageParse))
	}

	category := env.QueueType
	if !category.Valid() {
		if c, err := routing.Resolve(env.EventType); err == nil {
			category = c
		}
	}

	prefs := e.prefs.ForCategory(ctx, env.UserID, category)

	rendered, err := templates.Render(category, env.Payload)
	if err != nil {
		return e.abort(ctx, env, err)
	}

	plan := e.plan(ctx, env, prefs, rendered)
	results := make([]Result, len(plan))

	var g errgroup.Group
	for i, s := range plan {
		i, s := i, s
		g.Go(func() error {
			results[i] = e.send(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	attempts := make([]domain.DeliveryAttempt, 0, len(results))
	preview := env.Payload.Preview(domain.PayloadPreviewLen)
	for _, r := range results {
		a := domain.DeliveryAttempt{
			UserID:         env.UserID,
			Channel:        r.Channel,
			Status:         r.Status,
			MessageID:      env.MessageID,
			DeliveryID:     r.DeliveryID,
			PayloadPreview: preview,
			RetryCount:     retryCount(env),
		}
		if r.Err != nil {
			a.Error = r.Err.Error()
			l.Warn("channel delivery failed",
				slog.String("code", "DEL_FAILED"),
				slog.String("channel", string(r.Channel)),
				slog.Any("error", r.Err),
			)
		} else {
			l.Info("channel delivery sent",
				slog.String("code", "DEL_SENT"),
				slog.String("channel", string(r.Channel)),
				slog.String("delivery_id", r.DeliveryID),
			)
		}
		attempts = append(attempts, a)
	}

	if len(attempts) > 0 {
		if err := e.recorder.Record(ctx, attempts...); err != nil {
			l.Error("failed to record delivery attempts", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		}
	}

	return Outcome{MessageID: env.MessageID, Results: results}
}

// plan picks the channels to attempt: enabled by preference, with a target
// in the payload, allowed by the hint policy and backed by a sender.
func (e *Engine) plan(ctx context.Context, env *domain.Envelope, prefs domain.Preferences, rendered templates.Rendered) []send {
	var out []send
	for _, c := range domain.DeliveryChannels() {
		if !prefs.Enabled(c) || !env.Payload.Has(c.TargetField()) {
			continue
		}
		if e.cfg.HintPolicy == HintRestrict && !slices.Contains(env.Channels, c) {
			continue
		}
		sender, ok := e.senders.Get(c)
		if !ok {
			logging.FromContext(ctx).Warn("no sender registered for enabled channel", slog.String("channel", string(c)))
			continue
		}
		out = append(out, send{
			channel: c,
			target:  env.Payload.String(c.TargetField()),
			content: rendered.For(c),
			sender:  sender,
		})
	}
	return out
}

func (e *Engine) send(ctx context.Context, s send) (r Result) {
	r.Channel = s.channel
	defer func() {
		if p := recover(); p != nil {
			r = Result{
				Channel: s.channel,
				Status:  domain.DeliveryStatusFailed,
				Err:     &domain.ChannelDeliveryError{Channel: s.channel, Err: fmt.Errorf("panic: %v", p)},
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ChannelTimeout)
	defer cancel()

	id, err := s.sender.Send(ctx, s.target, s.content)
	if err != nil {
		r.Status = domain.DeliveryStatusFailed
		r.Err = &domain.ChannelDeliveryError{Channel: s.channel, Err: err}
		return r
	}
	r.Status = domain.DeliveryStatusSent
	r.DeliveryID = id
	return r
}

// abort records one synthetic system failure and returns the aborted
// outcome.
func (e *Engine) abort(ctx context.Context, env *domain.Envelope, err error) Outcome {
	l := logging.FromContext(ctx)
	l.Error("dispatch aborted", slog.String("code", "DEL_FAILED"), slog.Any("error", err))

	rerr := e.recorder.Record(ctx, domain.DeliveryAttempt{
		UserID:         env.UserID,
		Channel:        domain.ChannelSystem,
		Status:         domain.DeliveryStatusFailed,
		MessageID:      env.MessageID,
		PayloadPreview: env.Payload.Preview(domain.PayloadPreviewLen),
		Error:          err.Error(),
		RetryCount:     retryCount(env),
	})
	if rerr != nil {
		l.Error("failed to record aborted dispatch", slog.String("code", "DB_ERROR"), slog.Any("error", rerr))
	}
	return Outcome{MessageID: env.MessageID, Err: err}
}

func retryCount(env *domain.Envelope) int {
	if env.Attempt > 1 {
		return env.Attempt - 1
	}
	return 0
}
