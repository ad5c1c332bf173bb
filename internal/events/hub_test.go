package events

import (
	"sync"
	"testing"
	"time"

	"github.com/lupppig/notifyq/internal/domain"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{
		ID:     "test-sub-1",
		Events: make(chan DeliveryEvent, 10),
	}
	hub.Subscribe(sub)

	event := DeliveryEvent{
		MessageID: "msg_1",
		UserID:    "u1",
		Channel:   domain.ChannelEmail,
		Status:    domain.DeliveryStatusSent,
		Attempt:   1,
		Timestamp: time.Now(),
	}

	hub.Publish(event)

	select {
	case received := <-sub.Events:
		if received.MessageID != event.MessageID {
			t.Errorf("expected message ID %s, got %s", event.MessageID, received.MessageID)
		}
		if received.Status != event.Status {
			t.Errorf("expected status %s, got %s", event.Status, received.Status)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestHubBroadcastToMultipleSubscribers(t *testing.T) {
	hub := NewHub()

	subs := []*Subscriber{
		{ID: "sub-1", Events: make(chan DeliveryEvent, 10)},
		{ID: "sub-2", Events: make(chan DeliveryEvent, 10)},
		{ID: "sub-3", Events: make(chan DeliveryEvent, 10)},
	}
	for _, s := range subs {
		hub.Subscribe(s)
	}

	hub.Publish(DeliveryEvent{MessageID: "msg_broadcast", Status: domain.DeliveryStatusSent})

	for _, sub := range subs {
		select {
		case received := <-sub.Events:
			if received.MessageID != "msg_broadcast" {
				t.Errorf("subscriber %s: got %s", sub.ID, received.MessageID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %s: timeout waiting for event", sub.ID)
		}
	}
}

func TestHubFilters(t *testing.T) {
	tests := []struct {
		name  string
		sub   Subscriber
		match DeliveryEvent
		other DeliveryEvent
	}{
		{
			name:  "message",
			sub:   Subscriber{MessageID: "target"},
			match: DeliveryEvent{MessageID: "target"},
			other: DeliveryEvent{MessageID: "other"},
		},
		{
			name:  "user",
			sub:   Subscriber{UserID: "u1"},
			match: DeliveryEvent{UserID: "u1", MessageID: "m1"},
			other: DeliveryEvent{UserID: "u2", MessageID: "m2"},
		},
		{
			name:  "channel",
			sub:   Subscriber{Channel: domain.ChannelSMS},
			match: DeliveryEvent{Channel: domain.ChannelSMS},
			other: DeliveryEvent{Channel: domain.ChannelPush},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub()
			sub := tt.sub
			sub.ID = "filtered"
			sub.Events = make(chan DeliveryEvent, 10)
			hub.Subscribe(&sub)

			hub.Publish(tt.match)
			hub.Publish(tt.other)

			select {
			case received := <-sub.Events:
				if received != tt.match {
					t.Errorf("expected %+v, got %+v", tt.match, received)
				}
			case <-time.After(100 * time.Millisecond):
				t.Error("timeout waiting for matching event")
			}

			select {
			case <-sub.Events:
				t.Error("should not receive non-matching event")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{ID: "unsub-test", Events: make(chan DeliveryEvent, 10)}
	hub.Subscribe(sub)

	if hub.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe(sub.ID)

	if hub.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", hub.SubscriberCount())
	}
	if _, ok := <-sub.Events; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestHubNonBlockingPublish(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{ID: "slow-sub", Events: make(chan DeliveryEvent, 1)}
	hub.Subscribe(sub)

	for i := 0; i < 10; i++ {
		hub.Publish(DeliveryEvent{MessageID: "m", Attempt: i})
	}

	select {
	case ev := <-sub.Events:
		if ev.Attempt != 0 {
			t.Errorf("expected first event to be kept, got attempt %d", ev.Attempt)
		}
	default:
		t.Error("expected at least one event in buffer")
	}
}

func TestFromAttempt(t *testing.T) {
	now := time.Now()
	ev := FromAttempt(domain.DeliveryAttempt{
		UserID:     "u1",
		Channel:    domain.ChannelEmail,
		Status:     domain.DeliveryStatusFailed,
		MessageID:  "msg_1",
		Error:      "smtp down",
		RetryCount: 2,
		CreatedAt:  now,
	})
	if ev.Attempt != 3 || ev.Error != "smtp down" || !ev.Timestamp.Equal(now) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sub := &Subscriber{ID: string(rune('A' + id)), Events: make(chan DeliveryEvent, 100)}
			hub.Subscribe(sub)
			time.Sleep(10 * time.Millisecond)
			hub.Unsubscribe(sub.ID)
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				hub.Publish(DeliveryEvent{MessageID: "concurrent-test"})
			}
		}()
	}

	wg.Wait()
}

func BenchmarkHubPublish(b *testing.B) {
	hub := NewHub()
	hub.Subscribe(&Subscriber{ID: "bench-sub", Events: make(chan DeliveryEvent, 1000)})

	event := DeliveryEvent{MessageID: "bench", Status: domain.DeliveryStatusSent}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Publish(event)
	}
}
