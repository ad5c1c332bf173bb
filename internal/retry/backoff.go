package retry

import (
	"math"
	"math/rand"
	"time"
)

// MinDelay is the floor applied after jitter.
const MinDelay = 100 * time.Millisecond

// Backoff computes exponential delays with symmetric jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// Delay returns the wait before retry number n (0-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(b.Base) * math.Pow(factor, float64(n))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		spread := delay * b.Jitter
		delay += rand.Float64()*2*spread - spread
	}

	if delay < float64(MinDelay) {
		delay = float64(MinDelay)
	}
	return time.Duration(delay)
}
