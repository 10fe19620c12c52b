// Package progressive runs the step-then-cash-out games: a hazard grid, a
// climbing tower and a rising race multiplier.
package progressive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/session"
)

var (
	ErrNothingToCashOut = errors.New("nothing to cash out")
	ErrInvalidChoice    = errors.New("invalid choice")
)

// Wallet is the settlement side of the ledger.
type Wallet interface {
	SettleWin(ctx context.Context, userID uint64, amount int64, ref string) error
	Refund(ctx context.Context, userID uint64, amount int64, ref string) error
}

// Params tunes a new session. Zero values pick the catalog defaults.
type Params struct {
	Hazards    int    `json:"hazards,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type Outcome string

const (
	OutcomeSafe     Outcome = "safe"
	OutcomeHazard   Outcome = "hazard"
	OutcomeWon      Outcome = "won"
	OutcomeRefunded Outcome = "refunded"
)

// StepResult reports one step. Drop is set when a win earned an item.
type StepResult struct {
	Session session.Session `json:"session"`
	Outcome Outcome         `json:"outcome"`
	Event   string          `json:"event,omitempty"`
	Drop    *reward.Drop    `json:"drop,omitempty"`
}

type Engine struct {
	store   *session.Store
	wallet  Wallet
	rewards *reward.Engine
	cat     *catalog.Catalog
	events  events.Publisher
	log     *slog.Logger
}

func New(store *session.Store, wallet Wallet, rewards *reward.Engine, cat *catalog.Catalog, pub events.Publisher, log *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		wallet:  wallet,
		rewards: rewards,
		cat:     cat,
		events:  pub,
		log:     log,
	}
}

func (e *Engine) src() rng.Source { return e.rewards.Source() }

// Start validates the stake, lays out the board and opens the session with
// the stake escrowed.
func (e *Engine) Start(ctx context.Context, userID uint64, kind session.Kind, stake int64, params Params) (session.Session, error) {
	limit, err := e.cat.Limit(string(kind))
	if err != nil {
		return session.Session{}, fmt.Errorf("stake limit: %w", err)
	}

	err = limit.Check(stake)
	if err != nil {
		return session.Session{}, fmt.Errorf("check stake: %w", err)
	}

	payload, err := e.newPayload(kind, params)
	if err != nil {
		return session.Session{}, err
	}

	sess, err := e.store.PlaceBetAndStart(ctx, userID, kind, stake, payload)
	if err != nil {
		return session.Session{}, fmt.Errorf("start %s: %w", kind, err)
	}

	e.log.DebugContext(ctx, "session started", "session_id", sess.ID.String(), "user_id", userID, "kind", kind, "stake", stake)

	return sess, nil
}

func (e *Engine) newPayload(kind session.Kind, params Params) (session.Payload, error) {
	switch kind {
	case session.KindGrid:
		hazards := params.Hazards
		if hazards == 0 {
			hazards = e.cat.Grid.DefaultHazards
		}

		curve, err := e.cat.Grid.Curve(hazards)
		if err != nil {
			return nil, fmt.Errorf("grid curve: %w", err)
		}

		return &session.GridPayload{
			Cells:       e.cat.Grid.Cells,
			Hazards:     hazards,
			Curve:       curve,
			HazardCells: pickDistinct(e.src(), e.cat.Grid.Cells, hazards),
		}, nil

	case session.KindClimb:
		d, name, err := e.cat.Climb.Difficulty(params.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("climb difficulty: %w", err)
		}

		layout := make([][]int, e.cat.Climb.Floors)
		for f := range layout {
			layout[f] = pickDistinct(e.src(), d.Columns, d.Hazards)
		}

		return &session.ClimbPayload{
			Difficulty: name,
			Columns:    d.Columns,
			Floors:     e.cat.Climb.Floors,
			Curve:      e.cat.Climb.Curve(d),
			Layout:     layout,
		}, nil

	case session.KindRace:
		return &session.RacePayload{StopPoint: e.stopPoint()}, nil

	default:
		return nil, fmt.Errorf("kind %q: %w", kind, catalog.ErrUnknownKind)
	}
}

// stopPoint draws where the race ends. P(stop >= x) = (1-edge)/x, so cashing
// out at any fixed target returns 1-edge on average.
func (e *Engine) stopPoint() float64 {
	u := e.src().Float64()
	stop := reward.Floor2((1 - e.cat.Race.HouseEdge) / (1 - u))

	return min(max(stop, 1), e.cat.Race.Ceiling)
}

// pickDistinct returns k distinct values of [0, n) by a partial shuffle.
func pickDistinct(src rng.Source, n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for i := 0; i < k && i < n; i++ {
		j := i + src.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	return append([]int(nil), idx[:min(k, n)]...)
}

// Step advances a grid or climb session by one reveal or climb. Races only
// move on the ticker.
func (e *Engine) Step(ctx context.Context, userID uint64, kind session.Kind, choice int) (StepResult, error) {
	if kind == session.KindRace {
		return StepResult{}, fmt.Errorf("step %s: races advance on the ticker: %w", kind, ErrInvalidChoice)
	}

	return e.advance(ctx, userID, kind, choice)
}

func (e *Engine) advance(ctx context.Context, userID uint64, kind session.Kind, choice int) (StepResult, error) {
	var res StepResult

	sess, err := e.store.Mutate(ctx, userID, kind, func(ctx context.Context, s *session.Session) error {
		var (
			hit bool
			err error
		)

		switch p := s.Payload.(type) {
		case *session.GridPayload:
			hit, err = stepGrid(s, p, choice)
		case *session.ClimbPayload:
			hit, err = stepClimb(s, p, choice)
		case *session.RacePayload:
			hit, res.Event = e.stepRace(s, p)
		default:
			return fmt.Errorf("payload %T: %w", s.Payload, session.ErrInvalidSessionState)
		}

		if err != nil {
			return err
		}

		if hit {
			s.State = session.StateLost
			res.Outcome = OutcomeHazard

			return nil
		}

		s.Steps++
		res.Outcome = OutcomeSafe

		if s.Kind == session.KindRace {
			return nil
		}

		curve := curveOf(s.Payload)

		s.Multiplier, err = multiplierAt(curve, s.Steps)
		if err != nil {
			e.log.ErrorContext(ctx, "curve misconfigured, refunding", "session_id", s.ID.String(), "error", err)

			rerr := e.wallet.Refund(ctx, s.UserID, s.Stake, s.Ref())
			if rerr != nil && !errors.Is(rerr, ledger.ErrConcurrencyConflict) {
				return fmt.Errorf("refund after %v: %w", err, rerr)
			}

			s.State = session.StateRefunded
			res.Outcome = OutcomeRefunded

			return nil
		}

		if s.Steps >= len(curve) {
			err = e.settle(ctx, s)
			if err != nil {
				return err
			}

			res.Outcome = OutcomeWon
		}

		return nil
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("step %s: %w", kind, err)
	}

	res.Session = sess

	switch sess.State {
	case session.StateLost:
		e.events.Publish(ctx, events.New(events.SessionLost, userID, string(kind)).
			WithAmount(sess.Stake, sess.Ref()).
			With("steps", strconv.Itoa(sess.Steps)))
	case session.StateRefunded:
		e.events.Publish(ctx, events.New(events.StakeRefunded, userID, string(kind)).
			WithAmount(sess.Stake, sess.Ref()))

		return res, fmt.Errorf("step %s: %w", kind, reward.ErrRngConfiguration)
	case session.StateCashedOut:
		res.Drop = e.afterWin(ctx, sess)
	}

	return res, nil
}

func multiplierAt(c reward.Curve, steps int) (float64, error) {
	err := c.Validate()
	if err != nil {
		return 0, err
	}

	return c.At(steps)
}

func curveOf(p session.Payload) reward.Curve {
	switch p := p.(type) {
	case *session.GridPayload:
		return p.Curve
	case *session.ClimbPayload:
		return p.Curve
	default:
		return nil
	}
}

func stepGrid(s *session.Session, p *session.GridPayload, cell int) (bool, error) {
	if cell < 0 || cell >= p.Cells {
		return false, fmt.Errorf("cell %d outside [0,%d): %w", cell, p.Cells, ErrInvalidChoice)
	}

	if p.IsRevealed(cell) {
		return false, fmt.Errorf("cell %d already revealed: %w", cell, ErrInvalidChoice)
	}

	p.Revealed = append(p.Revealed, cell)

	return p.IsHazard(cell), nil
}

func stepClimb(s *session.Session, p *session.ClimbPayload, column int) (bool, error) {
	if column < 0 || column >= p.Columns {
		return false, fmt.Errorf("column %d outside [0,%d): %w", column, p.Columns, ErrInvalidChoice)
	}

	floor := s.Steps
	if floor >= len(p.Layout) {
		return false, fmt.Errorf("floor %d beyond tower: %w", floor, session.ErrInvalidSessionState)
	}

	p.Picks = append(p.Picks, column)

	for _, h := range p.Layout[floor] {
		if h == column {
			return true, nil
		}
	}

	return false, nil
}

// stepRace performs one tick: the multiplier rises, at most one event
// rescales it, and reaching the stop point loses the stake.
func (e *Engine) stepRace(s *session.Session, p *session.RacePayload) (bool, string) {
	m := s.Multiplier + e.cat.Race.Increment

	var fired string

	for _, ev := range e.cat.Race.Events {
		if rng.Chance(e.src(), ev.Chance) {
			m = max(m*ev.Factor, 1)
			fired = ev.Name
			p.Events = append(p.Events, ev.Name)

			break
		}
	}

	s.Multiplier = reward.Round2(m)

	return s.Multiplier >= p.StopPoint, fired
}

// CashOut settles the current multiplier.
func (e *Engine) CashOut(ctx context.Context, userID uint64, kind session.Kind) (StepResult, error) {
	sess, err := e.store.Mutate(ctx, userID, kind, func(ctx context.Context, s *session.Session) error {
		if s.Steps == 0 {
			return ErrNothingToCashOut
		}

		return e.settle(ctx, s)
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("cash out %s: %w", kind, err)
	}

	return StepResult{
		Session: sess,
		Outcome: OutcomeWon,
		Drop:    e.afterWin(ctx, sess),
	}, nil
}

// settle pays floor(stake * multiplier). A reference the ledger already
// settled counts as paid.
func (e *Engine) settle(ctx context.Context, s *session.Session) error {
	payout := reward.Payout(s.Stake, s.Multiplier)

	if payout > 0 {
		err := e.wallet.SettleWin(ctx, s.UserID, payout, s.Ref())
		if err != nil && !errors.Is(err, ledger.ErrConcurrencyConflict) {
			return fmt.Errorf("settle win: %w", err)
		}
	}

	s.Payout = payout
	s.State = session.StateCashedOut

	return nil
}

func (e *Engine) afterWin(ctx context.Context, sess session.Session) *reward.Drop {
	e.events.Publish(ctx, events.New(events.WinningsPaid, sess.UserID, string(sess.Kind)).
		WithAmount(sess.Payout, sess.Ref()).
		With("multiplier", strconv.FormatFloat(sess.Multiplier, 'f', 2, 64)))

	drop, ok := e.rewards.RollWeightedDrop(reward.DropContext{UserID: sess.UserID, Source: string(sess.Kind)})
	if !ok {
		return nil
	}

	e.events.Publish(ctx, events.New(events.ItemDropped, sess.UserID, string(sess.Kind)).
		With("tier", drop.Tier).
		With("item_id", drop.ItemID))

	return &drop
}

// Session returns the user's active session of kind.
func (e *Engine) Session(userID uint64, kind session.Kind) (session.Session, bool) {
	return e.store.GetSession(userID, kind)
}

// Tick advances every active race by one tick.
func (e *Engine) Tick(ctx context.Context) {
	for _, s := range e.store.Snapshot() {
		if s.Kind != session.KindRace {
			continue
		}

		_, err := e.advance(ctx, s.UserID, s.Kind, 0)
		if err != nil && !errors.Is(err, session.ErrInvalidSessionState) {
			e.log.WarnContext(ctx, "race tick failed", "session_id", s.ID.String(), "error", err)
		}
	}
}

// RunTicker calls Tick on the configured race interval until ctx is done.
func (e *Engine) RunTicker(ctx context.Context) {
	interval := e.cat.Race.Tick
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.Tick(ctx)
		}
	}
}
