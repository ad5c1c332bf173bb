package rabbitmq

import (
	"context"
	"fmt"

	"github.com/lupppig/notifyq/internal/broker"
)

// QueueStats reads message and consumer counts with a passive declare. A
// failed passive declare closes its channel, so each call uses a fresh one.
func (c *Client) QueueStats(ctx context.Context, queue string) (broker.QueueStats, error) {
	if err := ctx.Err(); err != nil {
		return broker.QueueStats{}, err
	}
	ch, err := c.channel()
	if err != nil {
		return broker.QueueStats{}, err
	}
	defer safeClose(ch)

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		return broker.QueueStats{}, fmt.Errorf("inspect %s: %w", queue, err)
	}
	return broker.QueueStats{Queue: q.Name, Messages: q.Messages, Consumers: q.Consumers}, nil
}
