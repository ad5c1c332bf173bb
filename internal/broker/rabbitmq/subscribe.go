package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/ids"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Subscribe starts a manual-ack consumer on queue on its own channel.
func (c *Client) Subscribe(ctx context.Context, queue string, prefetch int) (broker.Subscription, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		safeClose(ch)
		return nil, fmt.Errorf("%w: qos: %v", broker.ErrConnection, err)
	}

	tag := ids.New("ctag")
	msgs, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		safeClose(ch)
		return nil, fmt.Errorf("%w: consume %s: %v", broker.ErrConnection, queue, err)
	}

	s := &subscription{
		ch:         ch,
		tag:        tag,
		deliveries: make(chan broker.Message),
		stop:       make(chan struct{}),
	}
	go s.forward(msgs)
	return s, nil
}

type subscription struct {
	ch         *amqp.Channel
	tag        string
	deliveries chan broker.Message
	stop       chan struct{}
	once       sync.Once
}

func (s *subscription) Deliveries() <-chan broker.Message {
	return s.deliveries
}

func (s *subscription) forward(msgs <-chan amqp.Delivery) {
	defer close(s.deliveries)
	for {
		select {
		case <-s.stop:
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.deliveries <- &message{d: d}:
			case <-s.stop:
				// Unacked; the broker redelivers once the channel closes.
				return
			}
		}
	}
}

// Close cancels the consumer and closes its channel. Any delivery still
// unacknowledged goes back to the queue.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		if !s.ch.IsClosed() {
			_ = s.ch.Cancel(s.tag, false)
			err = s.ch.Close()
		}
	})
	return err
}

type message struct {
	d amqp.Delivery
}

func (m *message) Body() []byte            { return m.d.Body }
func (m *message) MessageID() string       { return m.d.MessageId }
func (m *message) Type() string            { return m.d.Type }
func (m *message) Headers() map[string]any { return m.d.Headers }
func (m *message) Redelivered() bool       { return m.d.Redelivered }
func (m *message) Ack() error              { return m.d.Ack(false) }
func (m *message) Nack(requeue bool) error { return m.d.Nack(false, requeue) }
