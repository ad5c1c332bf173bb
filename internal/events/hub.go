package events

import (
	"sync"

	"github.com/lupppig/notifyq/internal/domain"
)

type Subscriber struct {
	ID        string
	MessageID string         // Filter by message ID (empty = all)
	UserID    string         // Filter by user ID (empty = all)
	Channel   domain.Channel // Filter by channel (empty = all)
	Events    chan DeliveryEvent
}

// Hub fans delivery events out to in-process subscribers such as SSE
// streams.
type Hub struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
	}
}

func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID] = sub
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.Events)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Publish(event DeliveryEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if matches(sub, event) {
			select {
			case sub.Events <- event:
			default:
				// slow subscriber, drop
			}
		}
	}
}

func matches(sub *Subscriber, event DeliveryEvent) bool {
	if sub.MessageID != "" && sub.MessageID != event.MessageID {
		return false
	}
	if sub.UserID != "" && sub.UserID != event.UserID {
		return false
	}
	if sub.Channel != "" && sub.Channel != event.Channel {
		return false
	}
	return true
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
