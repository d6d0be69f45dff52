// Package broadcast fans session events out to connected viewers and
// external brokers after state has been committed.
package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Sink receives events in commit order. Errors are logged and never retried.
type Sink interface {
	Deliver(ctx context.Context, event domain.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event domain.Event) error

func (f SinkFunc) Deliver(ctx context.Context, event domain.Event) error { return f(ctx, event) }

const defaultDeliverTimeout = 5 * time.Second

// Dispatcher is the engine's Publisher. Publish only appends to an unbounded
// queue, so a session never waits on the network; a single Run loop delivers
// events to every sink in the order they were published.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration

	mu     sync.Mutex
	queue  []domain.Event
	closed bool
	notify chan struct{}
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		timeout: defaultDeliverTimeout,
		notify:  make(chan struct{}, 1),
	}
}

// Publish enqueues event. Events published after Close are dropped.
func (d *Dispatcher) Publish(event domain.Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, event)
	d.mu.Unlock()
	d.wake()
}

// Close stops accepting events. Run delivers what is already queued and returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wake()
}

// Run delivers events until ctx is cancelled or Close is called. Queued events
// are flushed before it returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		batch, closed := d.take()
		for _, event := range batch {
			d.deliver(ctx, event)
		}
		if closed {
			return nil
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			d.Close()
		case <-d.notify:
		}
	}
}

func (d *Dispatcher) take() ([]domain.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.queue
	d.queue = nil
	return batch, d.closed && len(batch) == 0
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.Event) {
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(base, d.timeout)
		if err := sink.Deliver(sctx, event); err != nil {
			log.Printf("deliver %s v%d for session %s: %v", event.Type, event.Version, event.SessionID, err)
		}
		cancel()
	}
}

func (d *Dispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
