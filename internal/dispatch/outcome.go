package dispatch

import "github.com/lupppig/notifyq/internal/domain"

// Result is the outcome of one channel send.
type Result struct {
	Channel    domain.Channel
	Status     domain.DeliveryStatus
	DeliveryID string
	Err        error
}

// Outcome aggregates a dispatch. Err is set only when dispatch aborted
// before any channel was attempted; channel failures live in Results.
type Outcome struct {
	MessageID string
	Results   []Result
	Err       error
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

func (o Outcome) Sent() int {
	return o.count(domain.DeliveryStatusSent)
}

func (o Outcome) Failed() int {
	return o.count(domain.DeliveryStatusFailed)
}

func (o Outcome) count(s domain.DeliveryStatus) int {
	n := 0
	for _, r := range o.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}
