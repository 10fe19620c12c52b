// Package events carries fire-and-forget domain events from the core to
// presentation, logging and notification collaborators.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BetPlaced     Type = "bet_placed"
	WinningsPaid  Type = "winnings_paid"
	StakeRefunded Type = "stake_refunded"
	MatchFinished Type = "match_finished"
	SessionLost   Type = "session_lost"
	ItemDropped   Type = "item_dropped"
	JackpotDrawn  Type = "jackpot_drawn"
)

// Event is a single domain notification.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	UserID     uint64            `json:"userId,omitempty"`
	Game       string            `json:"game,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// New stamps an event with an ID and the current time.
func New(typ Type, userID uint64, game string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		UserID:     userID,
		Game:       game,
		OccurredAt: time.Now().UTC(),
	}
}

// WithAmount returns a copy carrying amount and reference.
func (e Event) WithAmount(amount int64, ref string) Event {
	e.Amount = amount
	e.Reference = ref

	return e
}

// With returns a copy with an extra attribute.
func (e Event) With(key, value string) Event {
	attrs := make(map[string]string, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}

	attrs[key] = value
	e.Attrs = attrs

	return e
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Sink delivers one event to a collaborator.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
