package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/logging"
)

// resetQueue clears the global queue after the test.
func resetQueue(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		q.mu.Lock()

		q.steps = nil
		q.closed = false

		q.mu.Unlock()
	})
}

type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) step(name string) Task {
	return func(context.Context) error {
		j.mu.Lock()
		defer j.mu.Unlock()

		j.steps = append(j.steps, name)

		return nil
	}
}

func (j *journal) got() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.steps...)
}

// The api registers its teardown as resources come up; it must unwind with
// the server first and the database last.
//
//nolint:paralleltest
func TestShutdown_UnwindsServiceStack(t *testing.T) {
	resetQueue(t)

	j := new(journal)

	for _, name := range []string{"close database", "close redis", "drain events", "stop background loops", "shut down server"} {
		Add(name, j.step(name))
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []string{"shut down server", "stop background loops", "drain events", "close redis", "close database"}
	got := j.got()

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order: want %v, got %v", want, got)
	}
}

// closableSink stands in for the Redis sink: delivery after Close fails.
type closableSink struct {
	mu        sync.Mutex
	closed    bool
	delivered int
	late      int
}

func (s *closableSink) Deliver(context.Context, events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.late++
		return errors.New("sink closed")
	}

	s.delivered++

	return nil
}

func (s *closableSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

//nolint:paralleltest
func TestShutdown_DrainsEventsBeforeClosingSink(t *testing.T) {
	resetQueue(t)

	sink := new(closableSink)
	d := events.NewDispatcher(logging.Discard(), 64, sink)

	Add("close redis", func(context.Context) error { return sink.Close() })
	Add("drain events", d.Close)

	const published = 50
	for range published {
		d.Publish(t.Context(), events.New(events.WinningsPaid, 1, "wheel"))
	}

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	err := Shutdown(ctx)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if sink.late != 0 {
		t.Fatalf("deliveries after sink close: want 0, got %d", sink.late)
	}

	if got := int64(sink.delivered) + d.Dropped(); got != published {
		t.Fatalf("delivered+dropped: want %d, got %d", published, got)
	}
}

//nolint:paralleltest
func TestShutdown_FailuresNameTheirStep(t *testing.T) {
	resetQueue(t)

	errClose := errors.New("connection reset")

	var ranDB atomic.Bool

	Add("close database", func(context.Context) error {
		ranDB.Store(true)
		return nil
	})
	Add("close redis", func(context.Context) error { return errClose })
	Add("drain events", func(context.Context) error { panic("worker gone") })

	err := Shutdown(t.Context())
	if err == nil {
		t.Fatalf("want joined error, got nil")
	}

	if !errors.Is(err, errClose) {
		t.Fatalf("want %v in chain, got %v", errClose, err)
	}

	for _, want := range []string{"close redis: connection reset", "drain events: panic: worker gone"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("want %q in %q", want, err.Error())
		}
	}

	if !ranDB.Load() {
		t.Fatalf("database step skipped after earlier failures")
	}
}

//nolint:paralleltest
func TestShutdown_StopsWhenContextExpires(t *testing.T) {
	resetQueue(t)

	var ranDB atomic.Bool

	Add("close database", func(context.Context) error {
		ranDB.Store(true)
		return nil
	})

	entered := make(chan struct{})

	Add("shut down server", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()

		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)

	go func() {
		errCh <- Shutdown(ctx)
	}()

	<-entered
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if !strings.Contains(err.Error(), `before "close database"`) {
		t.Fatalf("want skipped step named, got %q", err.Error())
	}

	if ranDB.Load() {
		t.Fatalf("database step ran after the deadline")
	}
}

//nolint:paralleltest
func TestShutdown_RunsOnce(t *testing.T) {
	resetQueue(t)

	var count atomic.Int32

	Add("close database", func(context.Context) error {
		count.Add(1)
		return nil
	})
	Add("nil step", nil)

	for i := range 2 {
		err := Shutdown(t.Context())
		if err != nil {
			t.Fatalf("shutdown #%d: %v", i+1, err)
		}
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("runs: want %d, got %d", 1, got)
	}
}

//nolint:paralleltest
func TestAdd_IgnoredOnceShutdownStarts(t *testing.T) {
	resetQueue(t)

	started := make(chan struct{})
	unblock := make(chan struct{})

	Add("shut down server", func(context.Context) error {
		close(started)
		<-unblock

		return nil
	})

	done := make(chan struct{})

	go func() {
		_ = Shutdown(context.Background())

		close(done)
	}()

	<-started

	var late atomic.Bool
	Add("late step", func(context.Context) error {
		late.Store(true)
		return nil
	})

	close(unblock)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not finish")
	}

	if late.Load() {
		t.Fatalf("step added during shutdown ran")
	}
}
