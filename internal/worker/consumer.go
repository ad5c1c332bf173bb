// Package worker runs one serial consumer per category queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/dispatch"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/retry"
)

const (
	DefaultProcessTimeout = 2 * time.Minute
	prefetch              = 1
	publishTimeout        = 10 * time.Second
)

// Spec is what differs between category consumers.
type Spec struct {
	Category domain.Category
	Validate func(*domain.Envelope) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, env *domain.Envelope) dispatch.Outcome
}

// Counters are running totals for one consumer.
type Counters struct {
	Acked        int64 `json:"acked"`
	Retried      int64 `json:"retried"`
	DeadLettered int64 `json:"deadLettered"`
	Requeued     int64 `json:"requeued"`
}

type Consumer struct {
	spec           Spec
	queue          string
	subscriber     broker.Subscriber
	publisher      broker.Publisher
	dispatcher     Dispatcher
	policy         *retry.Policy
	processTimeout time.Duration
	resubscribe    retry.Backoff

	acked, retried, deadLettered, requeued atomic.Int64
}

func NewConsumer(spec Spec, sub broker.Subscriber, pub broker.Publisher, d Dispatcher, policy *retry.Policy, processTimeout time.Duration) *Consumer {
	if processTimeout <= 0 {
		processTimeout = DefaultProcessTimeout
	}
	return &Consumer{
		spec:           spec,
		queue:          spec.Category.Queue(),
		subscriber:     sub,
		publisher:      pub,
		dispatcher:     d,
		policy:         policy,
		processTimeout: processTimeout,
		resubscribe:    retry.Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.2},
	}
}

func (c *Consumer) Queue() string { return c.queue }

func (c *Consumer) Counters() Counters {
	return Counters{
		Acked:        c.acked.Load(),
		Retried:      c.retried.Load(),
		DeadLettered: c.deadLettered.Load(),
		Requeued:     c.requeued.Load(),
	}
}

// Run consumes until ctx is cancelled. A lost subscription is opened again
// with backoff. On cancellation the message in flight is finished before
// the subscription is released.
func (c *Consumer) Run(ctx context.Context) {
	ctx = logging.WithQueue(ctx, c.queue)
	l := logging.FromContext(ctx)
	l.Info("consumer started", slog.String("code", "SYS_STARTUP"), slog.Int("prefetch", prefetch))

	for n := 0; ; {
		sub, err := c.subscriber.Subscribe(ctx, c.queue, prefetch)
		if err != nil {
			wait := c.resubscribe.Delay(n)
			n++
			l.Error("subscribe failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err), slog.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				l.Info("consumer stopped", slog.String("code", "SYS_SHUTDOWN"))
				return
			}
			continue
		}
		n = 0

		if stopped := c.consume(ctx, sub); stopped {
			l.Info("consumer stopped", slog.String("code", "SYS_SHUTDOWN"))
			return
		}
		l.Warn("subscription lost, resubscribing", slog.String("code", "BROKER_ERROR"))
	}
}

// consume reports true when it returned because ctx ended.
func (c *Consumer) consume(ctx context.Context, sub broker.Subscription) bool {
	defer sub.Close()
	for {
		// Stop pulling once cancelled, even if another delivery is ready.
		if ctx.Err() != nil {
			return true
		}
		select {
		case <-ctx.Done():
			return true
		case m, ok := <-sub.Deliveries():
			if !ok {
				return ctx.Err() != nil
			}
			// A received delivery is in flight and always runs to a
			// terminal action.
			c.handle(ctx, m)
		}
	}
}

// handle drives one delivery to exactly one terminal action: ack, retry,
// dead letter, or requeue.
func (c *Consumer) handle(ctx context.Context, m broker.Message) {
	attempt := broker.Attempt(m.Headers())
	ctx = logging.WithMessage(ctx, m.MessageID())

	env, err := domain.DecodeEnvelope(m.Body())
	if err == nil {
		env.Attempt = attempt
		ctx = logging.WithMessage(logging.WithUser(ctx, env.UserID), env.MessageID)
		err = c.spec.validate(env)
	}
	if err != nil {
		c.deadLetter(ctx, m, attempt, err)
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.processTimeout)
	out := c.process(pctx, env)
	cancel()

	switch {
	case out.Succeeded():
		if err := m.Ack(); err != nil {
			logging.FromContext(ctx).Error("ack failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
			return
		}
		c.acked.Add(1)
		level := slog.LevelInfo
		if out.Failed() > 0 {
			level = slog.LevelWarn
		}
		logging.FromContext(ctx).Log(ctx, level, "message acknowledged",
			slog.String("code", "MSG_ACKED"),
			slog.Int("attempt", attempt),
			slog.Int("sent", out.Sent()),
			slog.Int("failed", out.Failed()),
		)
	case isPoison(out.Err):
		c.deadLetter(ctx, m, attempt, out.Err)
	default:
		c.retryOrDeadLetter(ctx, m, attempt, out.Err)
	}
}

func (c *Consumer) process(ctx context.Context, env *domain.Envelope) (out dispatch.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = dispatch.Outcome{MessageID: env.MessageID, Err: fmt.Errorf("dispatch panic: %v", p)}
		}
	}()
	out = c.dispatcher.Dispatch(ctx, env)
	if out.Err == nil && ctx.Err() != nil {
		out.Err = fmt.Errorf("processing timed out: %w", ctx.Err())
	}
	return out
}

func isPoison(err error) bool {
	return errors.Is(err, domain.ErrMessageParse) || errors.Is(err, domain.ErrValidation)
}

func (c *Consumer) retryOrDeadLetter(ctx context.Context, m broker.Message, attempt int, cause error) {
	decision, delay := c.policy.Decide(attempt)
	if decision == retry.DecisionDeadLetter {
		c.deadLetter(ctx, m, attempt, fmt.Errorf("retries exhausted after %d attempts: %w", attempt, cause))
		return
	}

	headers := broker.CopyHeaders(m.Headers())
	headers[broker.HeaderAttempt] = int32(attempt + 1)

	err := c.republish(ctx, broker.RetryQueue(c.queue), m, headers, delay)
	if err != nil {
		c.requeue(ctx, m, err)
		return
	}
	if err := m.Ack(); err != nil {
		logging.FromContext(ctx).Error("ack after retry publish failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		return
	}
	c.retried.Add(1)
	logging.FromContext(ctx).Warn("message scheduled for retry",
		slog.String("code", "MSG_RETRY"),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", c.policy.MaxAttempts()),
		slog.Duration("delay", delay),
		slog.Any("error", cause),
	)
}

func (c *Consumer) deadLetter(ctx context.Context, m broker.Message, attempt int, cause error) {
	headers := broker.CopyHeaders(m.Headers())
	headers[broker.HeaderDeathReason] = cause.Error()
	headers[broker.HeaderSourceQueue] = c.queue
	headers[broker.HeaderAttempt] = int32(attempt)

	if err := c.republish(ctx, broker.DeadLetterQueue(c.queue), m, headers, 0); err != nil {
		c.requeue(ctx, m, err)
		return
	}
	if err := m.Ack(); err != nil {
		logging.FromContext(ctx).Error("ack after dead letter failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		return
	}
	c.deadLettered.Add(1)
	logging.FromContext(ctx).Error("message dead-lettered",
		slog.String("code", "MSG_DEAD_LETTERED"),
		slog.Int("attempt", attempt),
		slog.Any("error", cause),
	)
}

func (c *Consumer) republish(ctx context.Context, queue string, m broker.Message, headers map[string]any, delay time.Duration) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return c.publisher.Publish(pctx, queue, broker.Outgoing{
		Body:       m.Body(),
		MessageID:  m.MessageID(),
		Type:       m.Type(),
		Headers:    headers,
		Expiration: delay,
	})
}

// requeue hands the message back to the broker when it could not be moved
// to the retry or dead-letter queue. Work is never dropped.
func (c *Consumer) requeue(ctx context.Context, m broker.Message, cause error) {
	l := logging.FromContext(ctx)
	if err := m.Nack(true); err != nil {
		l.Error("nack failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		return
	}
	c.requeued.Add(1)
	l.Error("message requeued", slog.String("code", "BROKER_ERROR"), slog.Any("error", cause))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
