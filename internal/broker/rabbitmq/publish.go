package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish enqueues msg on queue through the default exchange and waits for
// the broker to confirm it.
func (c *Client) Publish(ctx context.Context, queue string, msg broker.Outgoing) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	ch, err := c.publishChannel()
	if err != nil {
		return err
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing(msg))
	if err != nil {
		safeClose(c.pubCh)
		c.pubCh = nil
		return fmt.Errorf("%w: publish to %s: %v", broker.ErrConnection, queue, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm on %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected message %s on %s", msg.MessageID, queue)
	}
	return nil
}

// publishChannel returns the confirm-mode channel, reopening it after a
// channel or connection failure. Caller holds pubMu.
func (c *Client) publishChannel() (*amqp.Channel, error) {
	if c.pubCh != nil && !c.pubCh.IsClosed() {
		return c.pubCh, nil
	}
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		safeClose(ch)
		return nil, fmt.Errorf("%w: confirm mode: %v", broker.ErrConnection, err)
	}
	c.pubCh = ch
	return ch, nil
}

func publishing(msg broker.Outgoing) amqp.Publishing {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	p := amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg.Body,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.Type,
		Timestamp:    ts,
		Headers:      amqp.Table(msg.Headers),
	}
	if msg.Expiration > 0 {
		p.Expiration = expiration(msg.Expiration)
	}
	return p
}

// expiration formats a per-message TTL the way AMQP expects: whole
// milliseconds as a decimal string, at least 1.
func expiration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
