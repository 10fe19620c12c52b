// Package jackpot runs pooled rooms: players buy tickets with their stake and
// a single draw hands the whole pot to one ticket holder.
package jackpot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/keylock"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/google/uuid"
)

const game = "jackpot"

var (
	ErrUnknownRoom = errors.New("unknown jackpot room")
	ErrEmptyPool   = reward.ErrEmptyPool
	// ErrDrawPending is returned while a drawn prize is not credited yet.
	ErrDrawPending = errors.New("jackpot draw pending")
)

type Wallet interface {
	ReserveStake(ctx context.Context, userID uint64, amount int64, ref string) error
	SettleWin(ctx context.Context, userID uint64, amount int64, ref string) error
}

// Round is the open pool of a room. Winner is set once the draw happened
// and stays set until the prize is credited.
type Round struct {
	ID       uuid.UUID    `json:"id"`
	Room     string       `json:"room"`
	Limit    catalog.Room `json:"limit"`
	Pool     reward.Pool  `json:"pool"`
	OpenedAt time.Time    `json:"openedAt"`
	Winner   *Draw        `json:"winner,omitempty"`
}

// Ref is the ledger reference of the n-th entry.
func (r *Round) Ref(n int) string {
	return "jackpot:" + r.ID.String() + ":" + strconv.Itoa(n)
}

func (r *Round) prizeRef() string { return "jackpot:" + r.ID.String() + ":prize" }

func (r *Round) clone() Round {
	out := *r
	out.Pool = r.Pool.Clone()

	if r.Winner != nil {
		w := *r.Winner
		out.Winner = &w
	}

	return out
}

// Draw is the outcome of one room draw.
type Draw struct {
	RoundID uuid.UUID    `json:"roundId"`
	Room    string       `json:"room"`
	Entry   reward.Entry `json:"entry"`
	Ticket  int64        `json:"ticket"`
	Prize   int64        `json:"prize"`
	Share   float64      `json:"share"`
	Drop    *reward.Drop `json:"drop,omitempty"`
}

type Service struct {
	wallet  Wallet
	rewards *reward.Engine
	rooms   map[string]catalog.Room
	events  events.Publisher
	log     *slog.Logger
	now     func() time.Time

	locks keylock.Map[string]

	mu     sync.RWMutex
	rounds map[string]*Round
}

func New(wallet Wallet, rewards *reward.Engine, cat *catalog.Catalog, pub events.Publisher, log *slog.Logger) *Service {
	return &Service{
		wallet:  wallet,
		rewards: rewards,
		rooms:   cat.Jackpot.Rooms,
		events:  pub,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		rounds:  make(map[string]*Round, len(cat.Jackpot.Rooms)),
	}
}

// Rooms lists the configured room names.
func (s *Service) Rooms() []string {
	out := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// current returns the open round of room, opening one when needed.
func (s *Service) current(room string) (*Round, error) {
	limit, ok := s.rooms[room]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", room, ErrUnknownRoom)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[room]
	if !ok {
		r = &Round{ID: uuid.New(), Room: room, Limit: limit, OpenedAt: s.now()}
		s.rounds[room] = r
	}

	return r, nil
}

func (s *Service) put(r *Round) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds[r.Room] = r
}

// Enter escrows amount and adds it to the room's pool as a ticket range.
func (s *Service) Enter(ctx context.Context, room string, userID uint64, amount int64) (reward.Entry, Round, error) {
	unlock := s.locks.Lock(room)
	defer unlock()

	cur, err := s.current(room)
	if err != nil {
		return reward.Entry{}, Round{}, err
	}

	if amount < cur.Limit.Min || amount > cur.Limit.Max {
		return reward.Entry{}, Round{}, fmt.Errorf("room %q takes [%d,%d], got %d: %w",
			room, cur.Limit.Min, cur.Limit.Max, amount, catalog.ErrStakeOutOfRange)
	}

	if cur.Winner != nil {
		return reward.Entry{}, Round{}, fmt.Errorf("room %q is paying out: %w", room, ErrDrawPending)
	}

	next := cur.clone()
	ref := next.Ref(len(next.Pool.Entries))

	err = s.wallet.ReserveStake(ctx, userID, amount, ref)
	if err != nil {
		return reward.Entry{}, Round{}, fmt.Errorf("reserve stake: %w", err)
	}

	entry, err := next.Pool.Add(userID, amount)
	if err != nil {
		return reward.Entry{}, Round{}, fmt.Errorf("add entry: %w", err)
	}

	s.put(&next)

	s.events.Publish(ctx, events.New(events.BetPlaced, userID, game).
		WithAmount(amount, ref).
		With("room", room).
		With("ticket_from", strconv.FormatInt(entry.TicketFrom, 10)).
		With("ticket_to", strconv.FormatInt(entry.TicketTo, 10)))

	return entry, next.clone(), nil
}

// Pool returns a copy of the room's open round.
func (s *Service) Pool(room string) (Round, error) {
	r, err := s.current(room)
	if err != nil {
		return Round{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return r.clone(), nil
}

// Draw picks the winning ticket and credits the full pot to its owner, then
// opens a fresh round. When a previous payout failed, Draw retries that
// payout instead of drawing again.
func (s *Service) Draw(ctx context.Context, room string) (Draw, error) {
	unlock := s.locks.Lock(room)
	defer unlock()

	cur, err := s.current(room)
	if err != nil {
		return Draw{}, err
	}

	next := cur.clone()

	if next.Winner == nil {
		entry, ticket, err := s.rewards.RollTicketDraw(&next.Pool)
		if err != nil {
			return Draw{}, fmt.Errorf("room %q: %w", room, err)
		}

		d := Draw{
			RoundID: next.ID,
			Room:    room,
			Entry:   entry,
			Ticket:  ticket,
			Prize:   next.Pool.TotalStake,
			Share:   reward.Round2(next.Pool.Share(entry.UserID)),
		}

		if drop, ok := s.rewards.RollWeightedDrop(reward.DropContext{UserID: entry.UserID, Source: game}); ok {
			d.Drop = &drop
		}

		next.Winner = &d
		s.put(&next)

		s.events.Publish(ctx, events.New(events.JackpotDrawn, entry.UserID, game).
			WithAmount(d.Prize, next.prizeRef()).
			With("room", room).
			With("ticket", strconv.FormatInt(ticket, 10)).
			With("entries", strconv.Itoa(len(next.Pool.Entries))))

		if d.Drop != nil {
			s.events.Publish(ctx, events.New(events.ItemDropped, entry.UserID, game).
				With("tier", d.Drop.Tier).
				With("item_id", d.Drop.ItemID))
		}
	}

	d := *next.Winner

	err = s.wallet.SettleWin(ctx, d.Entry.UserID, d.Prize, next.prizeRef())
	switch {
	case errors.Is(err, ledger.ErrConcurrencyConflict):
	case err != nil:
		s.log.ErrorContext(ctx, "jackpot payout failed", "room", room, "round_id", next.ID.String(), "error", err)
		return Draw{}, fmt.Errorf("pay jackpot: %w", err)
	default:
		s.events.Publish(ctx, events.New(events.WinningsPaid, d.Entry.UserID, game).
			WithAmount(d.Prize, next.prizeRef()).
			With("room", room))
	}

	s.put(&Round{ID: uuid.New(), Room: room, Limit: next.Limit, OpenedAt: s.now()})

	s.log.InfoContext(ctx, "jackpot drawn", "room", room, "round_id", next.ID.String(), "winner_id", d.Entry.UserID, "prize", d.Prize)

	return d, nil
}
