// Package shutdownqueue holds the process-wide cleanup steps of a service.
//
// Steps are registered with Add as the resources they release come up, and
// Shutdown runs them once, newest first, so a resource is always released
// after everything that was built on top of it:
//
//	shutdownqueue.Add("close database", closeDB)
//	shutdownqueue.Add("drain events", dispatcher.Close)
//	shutdownqueue.Add("shut down server", srv.Shutdown)
//
// Every step runs even when an earlier one fails or panics. Failures are
// returned joined, each wrapped with its step name.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a shutdown step. It should honor ctx and return an error if it
// can't finish in time.
type Task func(ctx context.Context) error

type step struct {
	name string
	run  Task
}

type queue struct {
	mu     sync.Mutex
	steps  []step
	closed bool
}

var q = &queue{steps: make([]step, 0, 8)}

// Add registers a named step. Safe to call from any goroutine. A nil task,
// or one added after Shutdown has started, is ignored.
func Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.steps = append(q.steps, step{name: name, run: t})
}

// Shutdown runs the registered steps newest first. Later calls are no-ops.
//
// Once ctx is done the remaining steps are skipped and the context error is
// joined with whatever the finished steps returned.
func Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed && len(q.steps) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	steps := q.steps
	q.steps = nil

	q.mu.Unlock()

	var errs []error

	for i := len(steps) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("shutdown canceled before %q: %w", steps[i].name, ctx.Err()))

			return errors.Join(errs...)
		}

		err := steps[i].exec(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s step) exec(ctx context.Context) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%s: panic: %v", s.name, r)
		}
	}()

	slog.InfoContext(ctx, "Shutdown step", "step", s.name)

	err = s.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	return nil
}
