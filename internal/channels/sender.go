// Package channels holds the delivery providers behind one send contract.
package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/lupppig/notifyq/internal/domain"
)

// Sender delivers rendered content to a single target and returns the
// provider's delivery id.
type Sender interface {
	Send(ctx context.Context, target string, content domain.Content) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target string, content domain.Content) (string, error)

func (f SenderFunc) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	return f(ctx, target, content)
}

// Registry maps each channel to its sender.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

func (r *Registry) Register(c domain.Channel, s Sender) error {
	if !c.Valid() {
		return fmt.Errorf("register sender: invalid channel %q", c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[c] = s
	return nil
}

func (r *Registry) Get(c domain.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[c]
	return s, ok
}

// Channels lists the registered channels in dispatch order.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Channel
	for _, c := range domain.DeliveryChannels() {
		if _, ok := r.senders[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
