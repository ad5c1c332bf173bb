package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/lupppig/notifyq/internal/broker"
)

type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
)

// QueueStatus is the introspection view of one consumer and its queue.
type QueueStatus struct {
	Queue     string   `json:"queue"`
	State     State    `json:"status"`
	Messages  int      `json:"messageCount"`
	Consumers int      `json:"consumerCount"`
	Counters  Counters `json:"counters"`
	Error     string   `json:"error,omitempty"`
}

// ErrDraining is returned by Start while consumers from an earlier run are
// still finishing their in-flight messages.
var ErrDraining = errors.New("consumers from the previous run are still draining")

// Group runs the consumers together and can be started and stopped at
// runtime. At most one run is alive at a time, so a queue never has two
// consumers dispatching concurrently.
type Group struct {
	consumers []*Consumer
	inspector broker.Inspector

	mu       sync.Mutex
	current  *run
	stopping *run
}

// run is one Start..Stop cycle. done closes once every consumer of the run
// has returned.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewGroup(inspector broker.Inspector, consumers ...*Consumer) *Group {
	return &Group{consumers: consumers, inspector: inspector}
}

// Start launches every consumer. The consumers outlive ctx's cancellation;
// only Stop ends them. Starting a running group is a no-op. Starting while a
// stopped run is still draining returns ErrDraining.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		return nil
	}
	if g.stopping != nil {
		select {
		case <-g.stopping.done:
			g.stopping = nil
		default:
			return ErrDraining
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}

	var wg sync.WaitGroup
	for _, c := range g.consumers {
		wg.Add(1)
		go func(c *Consumer) {
			defer wg.Done()
			c.Run(runCtx)
		}(c)
	}
	go func() {
		wg.Wait()
		close(r.done)
	}()

	g.current = r
	return nil
}

// Stop stops pulling new messages and waits for in-flight ones to finish,
// or for ctx to end. Calling Stop again after a timeout waits on the same
// draining run.
func (g *Group) Stop(ctx context.Context) error {
	g.mu.Lock()
	r := g.current
	if r != nil {
		r.cancel()
		g.current = nil
		g.stopping = r
	} else {
		r = g.stopping
	}
	g.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		g.mu.Lock()
		if g.stopping == r {
			g.stopping = nil
		}
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("consumers did not drain in time"), ctx.Err())
	}
}

func (g *Group) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

// Status reports per-queue depth and consumer counts. A queue that cannot
// be inspected carries the error instead of failing the whole report.
func (g *Group) Status(ctx context.Context) []QueueStatus {
	state := StateInactive
	if g.Running() {
		state = StateActive
	}

	out := make([]QueueStatus, 0, len(g.consumers))
	for _, c := range g.consumers {
		st := QueueStatus{Queue: c.Queue(), State: state, Counters: c.Counters()}
		if g.inspector != nil {
			qs, err := g.inspector.QueueStats(ctx, c.Queue())
			if err != nil {
				st.Error = err.Error()
			} else {
				st.Messages = qs.Messages
				st.Consumers = qs.Consumers
			}
		}
		out = append(out, st)
	}
	return out
}
