// Package instant settles single-shot games: the bet is escrowed, the
// outcome rolled and any payout credited in one call.
package instant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/google/uuid"
)

const (
	GameWheel     = "wheel"
	GameDuckRace  = "duck_race"
	duckRaceTable = "duck_race"
)

type Wallet interface {
	ReserveStake(ctx context.Context, userID uint64, amount int64, ref string) error
	SettleWin(ctx context.Context, userID uint64, amount int64, ref string) error
	Refund(ctx context.Context, userID uint64, amount int64, ref string) error
}

// Play is the record of one settled bet.
type Play struct {
	ID      uuid.UUID      `json:"id"`
	Game    string         `json:"game"`
	UserID  uint64         `json:"userId"`
	Stake   int64          `json:"stake"`
	Outcome reward.Outcome `json:"outcome"`
	Payout  int64          `json:"payout"`
	Race    *Race          `json:"race,omitempty"`
	Drop    *reward.Drop   `json:"drop,omitempty"`
}

func (p *Play) Ref() string { return "instant:" + p.ID.String() }

type Service struct {
	wallet  Wallet
	rewards *reward.Engine
	cat     *catalog.Catalog
	events  events.Publisher
	log     *slog.Logger

	mu sync.Mutex
	// unpaid holds wins whose payout posting failed, keyed by play id.
	unpaid map[uuid.UUID]Play
}

func New(wallet Wallet, rewards *reward.Engine, cat *catalog.Catalog, pub events.Publisher, log *slog.Logger) *Service {
	return &Service{
		wallet:  wallet,
		rewards: rewards,
		cat:     cat,
		events:  pub,
		log:     log,
		unpaid:  make(map[uuid.UUID]Play),
	}
}

// SpinWheel plays one spin of the prize wheel.
func (s *Service) SpinWheel(ctx context.Context, userID uint64, stake int64) (Play, error) {
	return s.play(ctx, GameWheel, userID, stake, func(p *Play) error {
		o, err := s.rewards.RollFixedOdds(GameWheel)
		if err != nil {
			return err
		}

		p.Outcome = o

		return nil
	})
}

// BetDuckRace backs duck in a freshly simulated race. A win pays the duck's
// fixed odds.
func (s *Service) BetDuckRace(ctx context.Context, userID uint64, duck string, stake int64) (Play, error) {
	odds, err := s.rewards.Lookup(duckRaceTable, duck)
	if err != nil {
		return Play{}, fmt.Errorf("duck %q: %w", duck, err)
	}

	return s.play(ctx, GameDuckRace, userID, stake, func(p *Play) error {
		t, err := s.rewards.Table(duckRaceTable)
		if err != nil {
			return err
		}

		ducks := make([]string, len(t.Outcomes))
		for i, o := range t.Outcomes {
			ducks[i] = o.Name
		}

		race, err := runRace(s.rewards.Source(), ducks, s.cat.DuckRace)
		if err != nil {
			return err
		}

		p.Race = &race
		p.Outcome = reward.Outcome{Name: race.Winner}

		if race.Winner == duck {
			p.Outcome.Multiplier = odds.Multiplier
		}

		return nil
	})
}

// play escrows the stake, lets roll fill in the outcome and settles. A roll
// error refunds the stake.
func (s *Service) play(ctx context.Context, game string, userID uint64, stake int64, roll func(*Play) error) (Play, error) {
	limit, err := s.cat.Limit(game)
	if err != nil {
		return Play{}, fmt.Errorf("stake limit: %w", err)
	}

	err = limit.Check(stake)
	if err != nil {
		return Play{}, fmt.Errorf("check stake: %w", err)
	}

	p := Play{ID: uuid.New(), Game: game, UserID: userID, Stake: stake}

	err = s.wallet.ReserveStake(ctx, userID, stake, p.Ref())
	if err != nil {
		return Play{}, fmt.Errorf("reserve stake: %w", err)
	}

	s.events.Publish(ctx, events.New(events.BetPlaced, userID, game).WithAmount(stake, p.Ref()))

	err = roll(&p)
	if err != nil {
		s.log.ErrorContext(ctx, "instant roll failed, refunding", "game", game, "user_id", userID, "error", err)

		rerr := s.wallet.Refund(ctx, userID, stake, p.Ref())
		if rerr != nil {
			return Play{}, errors.Join(fmt.Errorf("roll %s: %w", game, err), fmt.Errorf("refund: %w", rerr))
		}

		s.events.Publish(ctx, events.New(events.StakeRefunded, userID, game).WithAmount(stake, p.Ref()))

		return Play{}, fmt.Errorf("roll %s: %w", game, err)
	}

	p.Payout = reward.Payout(stake, p.Outcome.Multiplier)
	if p.Payout <= 0 {
		s.log.DebugContext(ctx, "instant bet lost", "game", game, "user_id", userID, "outcome", p.Outcome.Name)
		return p, nil
	}

	err = s.payWin(ctx, &p)
	if err != nil {
		s.log.ErrorContext(ctx, "instant payout failed, holding for retry", "game", game, "ref", p.Ref(), "payout", p.Payout, "error", err)

		s.mu.Lock()
		s.unpaid[p.ID] = p
		s.mu.Unlock()

		return p, fmt.Errorf("settle %s: %w", game, err)
	}

	s.rollDrop(ctx, &p)

	return p, nil
}

// payWin credits p's payout. A posting the ledger already holds counts as
// paid.
func (s *Service) payWin(ctx context.Context, p *Play) error {
	err := s.wallet.SettleWin(ctx, p.UserID, p.Payout, p.Ref())
	if errors.Is(err, ledger.ErrConcurrencyConflict) {
		return nil
	}

	if err != nil {
		return err
	}

	s.events.Publish(ctx, events.New(events.WinningsPaid, p.UserID, p.Game).
		WithAmount(p.Payout, p.Ref()).
		With("outcome", p.Outcome.Name))

	return nil
}

func (s *Service) rollDrop(ctx context.Context, p *Play) {
	d, ok := s.rewards.RollWeightedDrop(reward.DropContext{UserID: p.UserID, Source: p.Game})
	if !ok {
		return
	}

	p.Drop = &d
	s.events.Publish(ctx, events.New(events.ItemDropped, p.UserID, p.Game).
		With("tier", d.Tier).
		With("item_id", d.ItemID))
}

// Unpaid lists wins still waiting for their payout.
func (s *Service) Unpaid() []Play {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Play, 0, len(s.unpaid))
	for _, p := range s.unpaid {
		out = append(out, p)
	}

	return out
}

// RetrySettlements re-posts every held payout. Plays that go through are
// forgotten; the rest stay held for the next call.
func (s *Service) RetrySettlements(ctx context.Context) error {
	var errs []error

	for _, p := range s.Unpaid() {
		err := s.payWin(ctx, &p)
		if err != nil {
			errs = append(errs, fmt.Errorf("play %s: %w", p.ID, err))
			continue
		}

		s.mu.Lock()
		delete(s.unpaid, p.ID)
		s.mu.Unlock()

		s.log.InfoContext(ctx, "held instant payout settled", "ref", p.Ref(), "payout", p.Payout)
		s.rollDrop(ctx, &p)
	}

	return errors.Join(errs...)
}
