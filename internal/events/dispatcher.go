package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher buffers events and delivers them to sinks from a single worker.
// Publish never blocks: when the buffer is full the event is dropped.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	log     *slog.Logger
	timeout time.Duration

	dropped atomic.Int64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewDispatcher starts a worker delivering to sinks. buffer <= 0 means 256.
func NewDispatcher(log *slog.Logger, buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}

	d := &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		log:     log,
		timeout: 2 * time.Second,
		done:    make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *Dispatcher) Publish(_ context.Context, ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.log.Warn("event dropped, buffer full", "type", ev.Type, "user_id", ev.UserID)
	}
}

// Dropped reports how many events were discarded for lack of buffer space.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)

			err := s.Deliver(ctx, ev)
			if err != nil {
				d.log.Error("event delivery failed", "type", ev.Type, "error", err)
			}

			cancel()
		}
	}
}

// Close stops accepting events and waits for queued ones to drain or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("event queue not drained"), ctx.Err())
	}
}
