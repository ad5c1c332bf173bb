package retry

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts 5, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 1*time.Second {
		t.Errorf("expected InitialBackoff 1s, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 5*time.Minute {
		t.Errorf("expected MaxBackoff 5m, got %v", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("expected BackoffMultiplier 2.0, got %f", cfg.BackoffMultiplier)
	}
	if cfg.JitterFactor != 0.2 {
		t.Errorf("expected JitterFactor 0.2, got %f", cfg.JitterFactor)
	}
}

func TestDecide(t *testing.T) {
	p := NewPolicy(DefaultConfig())

	tests := []struct {
		attempt int
		want    Decision
	}{
		{1, DecisionRetry},
		{2, DecisionRetry},
		{4, DecisionRetry},
		{5, DecisionDeadLetter}, // max attempts reached
		{6, DecisionDeadLetter},
		{50, DecisionDeadLetter},
	}

	for _, tt := range tests {
		got, delay := p.Decide(tt.attempt)
		if got != tt.want {
			t.Errorf("Decide(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
		if got == DecisionRetry && delay <= 0 {
			t.Errorf("Decide(%d) returned non-positive delay %v", tt.attempt, delay)
		}
		if got == DecisionDeadLetter && delay != 0 {
			t.Errorf("Decide(%d) dead letter should carry no delay, got %v", tt.attempt, delay)
		}
	}
}

func TestSingleAttemptPolicy(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 0})
	if p.MaxAttempts() != 1 {
		t.Fatalf("expected MaxAttempts clamped to 1, got %d", p.MaxAttempts())
	}
	if d, _ := p.Decide(1); d != DecisionDeadLetter {
		t.Errorf("expected first failure to dead-letter, got %s", d)
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts:       6,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        1 * time.Minute,
		BackoffMultiplier: 2.0,
	})

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, want := range expected {
		attempt := i + 1
		if got := p.NextDelay(attempt); got != want {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffCappedAtMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second, Factor: 2}

	if d := b.Delay(4); d != 10*time.Second {
		t.Errorf("expected delay capped at 10s, got %v", d)
	}
	if d := b.Delay(30); d != 10*time.Second {
		t.Errorf("expected delay capped at 10s for high attempt, got %v", d)
	}
}

func TestJitterApplied(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.2}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		delays[b.Delay(0)] = true
	}

	if len(delays) < 2 {
		t.Error("expected jitter to produce varying delays, but got uniform delays")
	}
	for d := range delays {
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Errorf("delay %v outside expected jitter range (800ms-1200ms)", d)
		}
	}
}

func TestMinimumDelay(t *testing.T) {
	b := Backoff{Base: 10 * time.Millisecond, Max: time.Minute, Factor: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		if d := b.Delay(0); d < MinDelay {
			t.Errorf("delay %v below minimum %v", d, MinDelay)
		}
	}
}

func BenchmarkDecide(b *testing.B) {
	p := NewPolicy(DefaultConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Decide(i%6 + 1)
	}
}
