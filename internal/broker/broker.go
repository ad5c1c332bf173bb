// Package broker defines the queue contracts used by the publisher and the
// consumers, independent of the AMQP client underneath.
package broker

import (
	"context"
	"errors"
	"time"
)

var ErrConnection = errors.New("broker connection failed")

// Header keys carried on queue messages.
const (
	HeaderAttempt     = "x-attempt"
	HeaderEventType   = "x-event-type"
	HeaderUserID      = "x-user-id"
	HeaderDeathReason = "x-death-reason"
	HeaderSourceQueue = "x-source-queue"
)

// RetryQueue holds messages waiting out their backoff before they are
// dead-lettered back onto queue.
func RetryQueue(queue string) string { return queue + ".retry" }

// DeadLetterQueue is the terminal holding queue for queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// Outgoing is a message to enqueue.
type Outgoing struct {
	Body      []byte
	MessageID string
	Type      string
	Headers   map[string]any
	Timestamp time.Time
	// Expiration is the per-message TTL; zero means the queue default.
	Expiration time.Duration
}

type Publisher interface {
	Publish(ctx context.Context, queue string, msg Outgoing) error
}

// Message is one delivery pulled from a queue. Exactly one of Ack or Nack
// must be called.
type Message interface {
	Body() []byte
	MessageID() string
	Type() string
	Headers() map[string]any
	Redelivered() bool
	Ack() error
	Nack(requeue bool) error
}

// Subscription streams deliveries until closed or until the underlying
// channel is lost, at which point Deliveries is closed.
type Subscription interface {
	Deliveries() <-chan Message
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, queue string, prefetch int) (Subscription, error)
}

type QueueStats struct {
	Queue     string `json:"queue"`
	Messages  int    `json:"messageCount"`
	Consumers int    `json:"consumerCount"`
}

type Inspector interface {
	QueueStats(ctx context.Context, queue string) (QueueStats, error)
}

// EventSink receives serialized audit events on a subject.
type EventSink interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Attempt reads the 1-based delivery attempt from headers. Missing or
// malformed values count as the first attempt.
func Attempt(headers map[string]any) int {
	var n int
	switch v := headers[HeaderAttempt].(type) {
	case int:
		n = v
	case int8:
		n = int(v)
	case int16:
		n = int(v)
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	}
	if n < 1 {
		return 1
	}
	return n
}

// CopyHeaders returns a shallow copy safe to modify.
func CopyHeaders(h map[string]any) map[string]any {
	out := make(map[string]any, len(h)+2)
	for k, v := range h {
		out[k] = v
	}
	return out
}
