// Package retry bounds redelivery of failed queue messages.
package retry

import "time"

type Config struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	JitterFactor      float64       `yaml:"jitter_factor"` // 0.0-1.0
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
	}
}

// Decision is what a consumer does with a message that failed processing.
type Decision int

const (
	DecisionRetry Decision = iota
	DecisionDeadLetter
)

func (d Decision) String() string {
	if d == DecisionRetry {
		return "retry"
	}
	return "dead_letter"
}

// Policy decides between another delivery and the dead-letter queue.
// Attempts are 1-based: the first delivery of a message is attempt 1.
type Policy struct {
	config  Config
	backoff Backoff
}

func NewPolicy(cfg Config) *Policy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Policy{
		config: cfg,
		backoff: Backoff{
			Base:   cfg.InitialBackoff,
			Max:    cfg.MaxBackoff,
			Factor: cfg.BackoffMultiplier,
			Jitter: cfg.JitterFactor,
		},
	}
}

func (p *Policy) ShouldRetry(attempt int) bool {
	return attempt < p.config.MaxAttempts
}

// Decide returns the decision for a failed attempt and, for retries, the
// delay before the next one.
func (p *Policy) Decide(attempt int) (Decision, time.Duration) {
	if !p.ShouldRetry(attempt) {
		return DecisionDeadLetter, 0
	}
	return DecisionRetry, p.NextDelay(attempt)
}

// NextDelay is the wait after the given failed attempt.
func (p *Policy) NextDelay(attempt int) time.Duration {
	return p.backoff.Delay(attempt - 1)
}

func (p *Policy) MaxAttempts() int {
	return p.config.MaxAttempts
}
