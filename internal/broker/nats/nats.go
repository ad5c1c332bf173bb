// Package nats mirrors delivery attempts onto a JetStream stream so other
// services can follow delivery outcomes.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName     = "NOTIFICATIONS"
	StreamSubjects = "notifications.>"
)

// DeliverySubject is where attempts for a channel are published.
func DeliverySubject(channel string) string {
	return "notifications.delivery." + channel
}

type Sink struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

var _ broker.EventSink = (*Sink)(nil)

func New(ctx context.Context, url string) (*Sink, error) {
	conn, err := nats.Connect(url,
		nats.Name("notifyq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamSubjects},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Sink{
		conn:   conn,
		js:     js,
		stream: stream,
	}, nil
}

func (s *Sink) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.conn.Drain()
}
