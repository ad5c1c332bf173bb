// Package rabbitmq implements the broker contracts on RabbitMQ.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	URL           string
	DialAttempts  int
	DialDelay     time.Duration
	ReconnectBase time.Duration
	ReconnectCap  time.Duration
	MessageTTL    time.Duration
	MaxLength     int
}

func (c Config) withDefaults() Config {
	if c.DialAttempts <= 0 {
		c.DialAttempts = 5
	}
	if c.DialDelay <= 0 {
		c.DialDelay = time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectCap <= 0 {
		c.ReconnectCap = 30 * time.Second
	}
	if c.MessageTTL <= 0 {
		c.MessageTTL = 24 * time.Hour
	}
	if c.MaxLength <= 0 {
		c.MaxLength = 10000
	}
	return c
}

// Client owns the AMQP connection shared by the publisher, the consumers
// and queue inspection. Publishing goes through one confirm-mode channel;
// each subscription gets a channel of its own.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	queues []string

	pubMu sync.Mutex
	pubCh *amqp.Channel

	connected atomic.Bool
	closing   atomic.Bool
}

var (
	_ broker.Publisher  = (*Client)(nil)
	_ broker.Subscriber = (*Client)(nil)
	_ broker.Inspector  = (*Client)(nil)
)

// Dial connects with exponential backoff. Exhausting every attempt is a
// broker.ErrConnection.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: rabbitmq URL is required", broker.ErrConnection)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	host := ""
	if u, err := url.Parse(cfg.URL); err == nil {
		host = u.Host
	}
	logger.Info("connecting to rabbitmq", slog.String("code", "SYS_STARTUP"), slog.String("host", host))

	backoff := retry.Backoff{Base: cfg.DialDelay, Max: 60 * time.Second, Factor: 2}
	var lastErr error
	for i := 1; i <= cfg.DialAttempts; i++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			c := &Client{cfg: cfg, logger: logger, conn: conn}
			c.connected.Store(true)
			if i > 1 {
				logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return c, nil
		}
		lastErr = err
		if i == cfg.DialAttempts {
			break
		}

		sleep := backoff.Delay(i - 1)
		logger.Warn("rabbit dial failed",
			slog.String("code", "BROKER_ERROR"),
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: dial cancelled: %v", broker.ErrConnection, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: failed after %d attempts: %v", broker.ErrConnection, cfg.DialAttempts, lastErr)
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load() && !c.closing.Load()
}

// Run watches the connection and reconnects with jittered backoff until ctx
// ends or Close is called. Topology is declared again on every reconnect.
func (c *Client) Run(ctx context.Context) {
	backoff := retry.Backoff{Base: c.cfg.ReconnectBase, Max: c.cfg.ReconnectCap, Factor: 2, Jitter: 0.25}

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		errCh := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case amqpErr, ok := <-errCh:
			if c.closing.Load() {
				return
			}
			c.connected.Store(false)
			if !ok || amqpErr == nil {
				amqpErr = &amqp.Error{Reason: "connection closed"}
			}
			c.logger.Error("amqp connection closed, reconnecting",
				slog.String("code", "BROKER_ERROR"),
				slog.Any("error", amqpErr),
			)
		}

		for n := 0; ; n++ {
			if ctx.Err() != nil || c.closing.Load() {
				return
			}
			err := c.reconnect()
			if err == nil {
				break
			}
			wait := backoff.Delay(n)
			c.logger.Error("reconnect failed",
				slog.String("code", "BROKER_ERROR"),
				slog.Any("error", err),
				slog.Duration("retry_in", wait),
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (c *Client) reconnect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	queues := append([]string(nil), c.queues...)
	c.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, q := range queues {
		if err := declareQueueSet(ch, c.cfg, q); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
	}
	_ = ch.Close()

	c.pubMu.Lock()
	safeClose(c.pubCh)
	c.pubCh = nil
	c.pubMu.Unlock()

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil && !old.IsClosed() {
		_ = old.Close()
	}

	c.connected.Store(true)
	c.logger.Info("reconnected to rabbitmq", slog.Int("queues", len(queues)))
	return nil
}

// channel opens a fresh AMQP channel on the current connection.
func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("%w: connection is closed", broker.ErrConnection)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: open channel: %v", broker.ErrConnection, err)
	}
	return ch, nil
}

// Close shuts the publish channel and the connection. Subscriptions see
// their delivery streams end.
func (c *Client) Close() error {
	c.closing.Store(true)
	c.connected.Store(false)

	c.pubMu.Lock()
	safeClose(c.pubCh)
	c.pubCh = nil
	c.pubMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func safeClose(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = ch.Close()
}
