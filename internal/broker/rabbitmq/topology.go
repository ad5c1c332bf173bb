package rabbitmq

import (
	"fmt"

	"github.com/lupppig/notifyq/internal/broker"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareTopology declares, for every queue, the main queue, its retry
// delay queue and its dead-letter queue. The set is remembered and
// declared again after a reconnect.
func (c *Client) DeclareTopology(queues ...string) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	defer safeClose(ch)

	for _, q := range queues {
		if err := declareQueueSet(ch, c.cfg, q); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
outer:
	for _, q := range queues {
		for _, known := range c.queues {
			if known == q {
				continue outer
			}
		}
		c.queues = append(c.queues, q)
	}
	return nil
}

func declareQueueSet(ch *amqp.Channel, cfg Config, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, mainQueueArgs(cfg)); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	if _, err := ch.QueueDeclare(broker.RetryQueue(queue), true, false, false, false, retryQueueArgs(queue)); err != nil {
		return fmt.Errorf("declare %s: %w", broker.RetryQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(broker.DeadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", broker.DeadLetterQueue(queue), err)
	}
	return nil
}

func mainQueueArgs(cfg Config) amqp.Table {
	return amqp.Table{
		"x-message-ttl": cfg.MessageTTL.Milliseconds(),
		"x-max-length":  int64(cfg.MaxLength),
	}
}

// Messages expire out of the retry queue after their own Expiration and
// are routed back to the main queue through the default exchange.
func retryQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}
}
