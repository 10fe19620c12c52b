package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, ev Event) error {
	s.Log.InfoContext(ctx, "domain event",
		"event_id", ev.ID.String(),
		"type", ev.Type,
		"user_id", ev.UserID,
		"game", ev.Game,
		"amount", ev.Amount,
		"reference", ev.Reference,
	)

	return nil
}

// redisPublisher is the subset of *redis.Client used by RedisSink.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes events as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client  redisPublisher
	channel string
}

func NewRedisSink(client redisPublisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.client.Publish(ctx, s.channel, payload).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", s.channel, err)
	}

	return nil
}

// Recorder keeps every event in memory. It is both a Publisher and a Sink;
// tests use it to assert on emitted events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *Recorder) Deliver(ctx context.Context, ev Event) error {
	r.Publish(ctx, ev)

	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// OfType returns recorded events of one type.
func (r *Recorder) OfType(typ Type) []Event {
	var out []Event

	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}

	return out
}
