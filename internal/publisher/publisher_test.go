package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/domain"
)

type published struct {
	queue string
	msg   broker.Outgoing
}

type mockBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockBroker) Publish(ctx context.Context, queue string, msg broker.Outgoing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{queue: queue, msg: msg})
	return nil
}

func (m *mockBroker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func TestRouteAndPublish(t *testing.T) {
	mb := &mockBroker{}
	p := New(mb)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	id, err := p.RouteAndPublish(context.Background(), domain.JobRequest{
		UserID:    "u1",
		EventType: "wallet_debited",
		Payload:   domain.Payload{"transactionId": "t1", "amount": 150, "email": "u1@x.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mb.count() != 1 {
		t.Fatalf("expected 1 message, got %d", mb.count())
	}

	got := mb.msgs[0]
	if got.queue != "wallet_notifications" {
		t.Errorf("expected wallet_notifications, got %s", got.queue)
	}
	if got.msg.MessageID != id {
		t.Errorf("broker message id %q != returned id %q", got.msg.MessageID, id)
	}
	if got.msg.Headers[broker.HeaderEventType] != "wallet_debited" || got.msg.Headers[broker.HeaderUserID] != "u1" {
		t.Errorf("missing observability headers: %#v", got.msg.Headers)
	}
	if broker.Attempt(got.msg.Headers) != 1 {
		t.Errorf("expected first attempt header")
	}

	var raw map[string]any
	if err := json.Unmarshal(got.msg.Body, &raw); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	for _, key := range []string{"userId", "eventType", "payload", "timestamp", "queueType", "messageId", "version"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("envelope missing %q", key)
		}
	}
	if _, ok := raw["channels"]; ok {
		t.Error("empty channels hint should be omitted")
	}
	if raw["queueType"] != "WALLET" || raw["version"] != "1.0" || raw["timestamp"] != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected envelope %v", raw)
	}

	env, err := domain.DecodeEnvelope(got.msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.MessageID != id || env.QueueType != domain.CategoryWallet {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestRouteAndPublishRejects(t *testing.T) {
	tests := []struct {
		name string
		req  domain.JobRequest
		want error
	}{
		{"unknown type", domain.JobRequest{UserID: "u1", EventType: "unknown_type", Payload: domain.Payload{"a": 1}}, domain.ErrUnresolvedEventType},
		{"missing user", domain.JobRequest{EventType: "booking", Payload: domain.Payload{"a": 1}}, domain.ErrValidation},
		{"missing type", domain.JobRequest{UserID: "u1", Payload: domain.Payload{"a": 1}}, domain.ErrValidation},
		{"missing payload", domain.JobRequest{UserID: "u1", EventType: "booking"}, domain.ErrValidation},
		{"bad channel hint", domain.JobRequest{UserID: "u1", EventType: "booking", Payload: domain.Payload{"a": 1}, Channels: []domain.Channel{"fax"}}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb := &mockBroker{}
			id, err := New(mb).RouteAndPublish(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if id != "" {
				t.Errorf("expected no id, got %q", id)
			}
			if mb.count() != 0 {
				t.Errorf("expected queue untouched, got %d messages", mb.count())
			}
		})
	}
}

func TestRouteAndPublishBrokerError(t *testing.T) {
	mb := &mockBroker{err: broker.ErrConnection}
	_, err := New(mb).RouteAndPublish(context.Background(), domain.JobRequest{
		UserID: "u1", EventType: "rewards_credited", Payload: domain.Payload{"rewardId": "r1"},
	})
	if !errors.Is(err, broker.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	mb := &mockBroker{}
	p := New(mb)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := p.RouteAndPublish(context.Background(), domain.JobRequest{
			UserID: "u1", EventType: "booking", Payload: domain.Payload{"bookingId": "b1"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate message id %q", id)
		}
		seen[id] = true
	}
}
