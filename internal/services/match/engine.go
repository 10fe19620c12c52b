package match

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

// Wallet is the part of the ledger matches post to.
type Wallet interface {
	ReserveStake(ctx context.Context, userID uint64, amount int64, ref string) error
	SettleWin(ctx context.Context, userID uint64, amount int64, ref string) error
	Refund(ctx context.Context, userID uint64, amount int64, ref string) error
}

// Engine owns every match. Work on one match runs under that match's lock;
// a user sits in at most one unfinished match at a time.
type Engine struct {
	wallet  Wallet
	rewards *reward.Engine
	cat     *catalog.Catalog
	rules   map[Kind]Rules
	events  events.Publisher
	log     *slog.Logger
	now     func() time.Time

	locks keylock.Map[uuid.UUID]

	mu      sync.RWMutex
	matches map[uuid.UUID]*Match
	seats   map[uint64]uuid.UUID
}

func New(wallet Wallet, rewards *reward.Engine, cat *catalog.Catalog, pub events.Publisher, log *slog.Logger) *Engine {
	e := &Engine{
		wallet:  wallet,
		rewards: rewards,
		cat:     cat,
		rules:   make(map[Kind]Rules),
		events:  pub,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		matches: make(map[uuid.UUID]*Match),
		seats:   make(map[uint64]uuid.UUID),
	}

	for _, r := range []Rules{Duel{}, Boxing{}, Penalty{}, NewHeist(cat.Heist)} {
		e.rules[r.Kind()] = r
	}

	return e
}

// Kinds lists the registered match kinds.
func (e *Engine) Kinds() []Kind {
	out := make([]Kind, 0, len(e.rules))
	for k := range e.rules {
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func (e *Engine) get(id uuid.UUID) (*Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.matches[id]

	return m, ok
}

func (e *Engine) put(m *Match) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.matches[m.ID] = m
}

// store saves a copy of m, leaving the caller free to keep changing m.
func (e *Engine) store(m *Match) {
	c := m.clone()
	e.put(&c)
}

// claimSeat records userID as sitting in matchID.
func (e *Engine) claimSeat(userID uint64, matchID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.seats[userID]; ok {
		return fmt.Errorf("user %d in match %s: %w", userID, cur, ErrAlreadyInMatch)
	}

	e.seats[userID] = matchID

	return nil
}

func (e *Engine) releaseSeats(m *Match) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range m.Participants {
		if e.seats[p.UserID] == m.ID {
			delete(e.seats, p.UserID)
		}
	}
}

func (e *Engine) releaseSeat(userID uint64, matchID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seats[userID] == matchID {
		delete(e.seats, userID)
	}
}

// CreateMatch escrows the creator's stake and opens a waiting match.
func (e *Engine) CreateMatch(ctx context.Context, creatorID uint64, kind Kind, stake int64, opts JoinOptions) (Match, error) {
	rules, ok := e.rules[kind]
	if !ok {
		return Match{}, fmt.Errorf("match kind %q: %w", kind, catalog.ErrUnknownKind)
	}

	limit, err := e.cat.Limit(string(kind))
	if err != nil {
		return Match{}, fmt.Errorf("stake limit: %w", err)
	}

	err = limit.Check(stake)
	if err != nil {
		return Match{}, fmt.Errorf("check stake: %w", err)
	}

	now := e.now()
	m := &Match{
		ID:        uuid.New(),
		Kind:      kind,
		CreatorID: creatorID,
		Stake:     stake,
		State:     StateWaiting,
		CreatedAt: now,
		UpdatedAt: now,
		pending:   make(map[uint64]Move),
	}

	unlock := e.locks.Lock(m.ID)
	defer unlock()

	p := Participant{UserID: creatorID}

	err = rules.Seat(m, &p, opts)
	if err != nil {
		return Match{}, fmt.Errorf("seat creator: %w", err)
	}

	err = e.claimSeat(creatorID, m.ID)
	if err != nil {
		return Match{}, err
	}

	err = e.wallet.ReserveStake(ctx, creatorID, stake, m.Ref(creatorID))
	if err != nil {
		e.releaseSeat(creatorID, m.ID)
		return Match{}, fmt.Errorf("reserve stake: %w", err)
	}

	m.Participants = append(m.Participants, p)
	e.put(m)

	e.log.InfoContext(ctx, "match created", "match_id", m.ID.String(), "kind", kind, "creator_id", creatorID, "stake", stake)
	e.events.Publish(ctx, events.New(events.BetPlaced, creatorID, string(kind)).
		WithAmount(stake, m.Ref(creatorID)).
		With("match_id", m.ID.String()))

	return m.clone(), nil
}

// JoinMatch escrows an equal stake and seats userID. The match turns active
// once the kind's minimum crew is seated; kinds with room for more keep
// accepting joins until the first round resolves.
func (e *Engine) JoinMatch(ctx context.Context, matchID uuid.UUID, userID uint64, opts JoinOptions) (Match, error) {
	unlock := e.locks.Lock(matchID)
	defer unlock()

	cur, ok := e.get(matchID)
	if !ok {
		return Match{}, fmt.Errorf("match %s not found: %w", matchID, ErrInvalidMatchState)
	}

	rules := e.rules[cur.Kind]
	minimum, maximum := rules.Crew()

	if cur.State == StateFinished || cur.Round > 0 || len(cur.Participants) >= maximum {
		return Match{}, fmt.Errorf("match %s not joinable: %w", matchID, ErrInvalidMatchState)
	}

	if cur.Seat(userID) >= 0 {
		return Match{}, fmt.Errorf("user %d already seated: %w", userID, ErrAlreadyInMatch)
	}

	next := cur.clone()
	p := Participant{UserID: userID}

	err := rules.Seat(&next, &p, opts)
	if err != nil {
		return Match{}, fmt.Errorf("seat: %w", err)
	}

	err = e.claimSeat(userID, matchID)
	if err != nil {
		return Match{}, err
	}

	err = e.wallet.ReserveStake(ctx, userID, next.Stake, next.Ref(userID))
	if err != nil {
		e.releaseSeat(userID, matchID)
		return Match{}, fmt.Errorf("reserve stake: %w", err)
	}

	next.Participants = append(next.Participants, p)
	if next.State == StateWaiting && len(next.Participants) >= minimum {
		next.State = StateActive
	}

	next.UpdatedAt = e.now()
	e.put(&next)

	e.events.Publish(ctx, events.New(events.BetPlaced, userID, string(next.Kind)).
		WithAmount(next.Stake, next.Ref(userID)).
		With("match_id", matchID.String()))

	return next.clone(), nil
}

// SubmitMove records userID's move for the current round. The round
// resolves only when every participant has a move in; until then the moves
// stay hidden.
func (e *Engine) SubmitMove(ctx context.Context, matchID uuid.UUID, userID uint64, mv Move) (Match, error) {
	unlock := e.locks.Lock(matchID)
	defer unlock()

	cur, ok := e.get(matchID)
	if !ok {
		return Match{}, fmt.Errorf("match %s not found: %w", matchID, ErrInvalidMatchState)
	}

	if cur.State != StateActive {
		return Match{}, fmt.Errorf("match %s is %s: %w", matchID, cur.State, ErrInvalidMatchState)
	}

	seat := cur.Seat(userID)
	if seat < 0 {
		return Match{}, fmt.Errorf("user %d in match %s: %w", userID, matchID, ErrNotParticipant)
	}

	if _, ok := cur.pending[userID]; ok {
		return Match{}, fmt.Errorf("round %d: %w", cur.Round+1, ErrMoveAlreadySubmitted)
	}

	rules := e.rules[cur.Kind]

	next := cur.clone()

	err := rules.ValidateMove(&next, seat, mv)
	if err != nil {
		return Match{}, err
	}

	next.pending[userID] = mv
	next.UpdatedAt = e.now()

	if len(next.pending) < len(next.Participants) {
		e.put(&next)
		return next.clone(), nil
	}

	moves := make([]Move, len(next.Participants))
	for i, p := range next.Participants {
		moves[i] = next.pending[p.UserID]
	}

	roundLog, res := rules.Resolve(&next, moves, e.rewards.Source())
	next.Log = append(next.Log, roundLog)
	next.Round++
	next.pending = make(map[uint64]Move)

	if res == nil {
		e.put(&next)
		return next.clone(), nil
	}

	next.State = StateFinished
	next.Result = res

	err = e.finish(ctx, &next)

	return next.clone(), err
}

// finish stores the finished match, frees its seats and settles it.
func (e *Engine) finish(ctx context.Context, m *Match) error {
	m.Result.Drops = e.rollDrops(ctx, m)
	e.store(m)
	e.releaseSeats(m)

	ev := events.New(events.MatchFinished, m.CreatorID, string(m.Kind)).
		WithAmount(m.Pot(), "match:"+m.ID.String()).
		With("match_id", m.ID.String()).
		With("outcome", string(m.Result.Outcome))
	if m.Result.WinnerID != 0 {
		ev = ev.With("winner_id", strconv.FormatUint(m.Result.WinnerID, 10))
	}

	e.events.Publish(ctx, ev)

	e.log.InfoContext(ctx, "match finished", "match_id", m.ID.String(), "kind", m.Kind, "outcome", m.Result.Outcome, "rounds", m.Round)

	err := e.settle(ctx, m)
	if err != nil {
		e.log.ErrorContext(ctx, "match settlement incomplete", "match_id", m.ID.String(), "error", err)
		return fmt.Errorf("settle match %s: %w", m.ID, err)
	}

	return nil
}

// settle posts every refund or payout of a finished match. Postings the
// ledger already holds count as done, so settle can be retried.
func (e *Engine) settle(ctx context.Context, m *Match) error {
	for _, p := range m.Participants {
		var (
			amount int64
			typ    events.Type
			err    error
		)

		switch {
		case m.Result.Outcome.Refunds():
			amount, typ = m.Stake, events.StakeRefunded
			err = e.wallet.Refund(ctx, p.UserID, amount, m.Ref(p.UserID))
		case m.Result.Payouts[p.UserID] > 0:
			amount, typ = m.Result.Payouts[p.UserID], events.WinningsPaid
			err = e.wallet.SettleWin(ctx, p.UserID, amount, m.Ref(p.UserID))
		default:
			continue
		}

		if errors.Is(err, ledger.ErrConcurrencyConflict) {
			continue
		}

		if err != nil {
			return fmt.Errorf("user %d: %w", p.UserID, err)
		}

		e.events.Publish(ctx, events.New(typ, p.UserID, string(m.Kind)).
			WithAmount(amount, m.Ref(p.UserID)).
			With("match_id", m.ID.String()))
	}

	m.Settled = true
	m.UpdatedAt = e.now()
	e.store(m)

	return nil
}

func (e *Engine) rollDrops(ctx context.Context, m *Match) []reward.Drop {
	var out []reward.Drop

	for _, p := range m.Participants {
		if m.Result.Payouts[p.UserID] <= 0 {
			continue
		}

		d, ok := e.rewards.RollWeightedDrop(reward.DropContext{UserID: p.UserID, Source: string(m.Kind)})
		if !ok {
			continue
		}

		out = append(out, d)
		e.events.Publish(ctx, events.New(events.ItemDropped, p.UserID, string(m.Kind)).
			With("tier", d.Tier).
			With("item_id", d.ItemID))
	}

	return out
}

// CancelMatch lets the creator call off a match that is still waiting; every
// seated stake is refunded.
func (e *Engine) CancelMatch(ctx context.Context, matchID uuid.UUID, userID uint64) (Match, error) {
	unlock := e.locks.Lock(matchID)
	defer unlock()

	cur, ok := e.get(matchID)
	if !ok {
		return Match{}, fmt.Errorf("match %s not found: %w", matchID, ErrInvalidMatchState)
	}

	if cur.State != StateWaiting {
		return Match{}, fmt.Errorf("match %s is %s: %w", matchID, cur.State, ErrInvalidMatchState)
	}

	if cur.CreatorID != userID {
		return Match{}, fmt.Errorf("user %d: %w", userID, ErrNotCreator)
	}

	next := cur.clone()
	next.State = StateFinished
	next.Result = &Result{Outcome: OutcomeCancelled}
	next.UpdatedAt = e.now()

	err := e.finish(ctx, &next)

	return next.clone(), err
}

// GetMatch returns a copy of the match.
func (e *Engine) GetMatch(matchID uuid.UUID) (Match, bool) {
	m, ok := e.get(matchID)
	if !ok {
		return Match{}, false
	}

	return m.clone(), true
}

// OpenMatches lists matches of kind that still accept joins, oldest first.
// An empty kind lists every kind.
func (e *Engine) OpenMatches(kind Kind) []Match {
	e.mu.RLock()

	var out []Match

	for _, m := range e.matches {
		if kind != "" && m.Kind != kind {
			continue
		}

		_, maximum := e.rules[m.Kind].Crew()
		if m.State == StateFinished || m.Round > 0 || len(m.Participants) >= maximum {
			continue
		}

		out = append(out, m.clone())
	}

	e.mu.RUnlock()

	sortByCreation(out)

	return out
}

func (e *Engine) filter(keep func(*Match) bool) []uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var ids []uuid.UUID

	for id, m := range e.matches {
		if keep(m) {
			ids = append(ids, id)
		}
	}

	return ids
}

// CancelStale cancels every match still waiting since before cutoff and
// returns how many it refunded.
func (e *Engine) CancelStale(ctx context.Context, cutoff time.Time) (int, error) {
	ids := e.filter(func(m *Match) bool {
		return m.State == StateWaiting && m.CreatedAt.Before(cutoff)
	})

	var (
		n    int
		errs []error
	)

	for _, id := range ids {
		m, ok := e.get(id)
		if !ok {
			continue
		}

		_, err := e.CancelMatch(ctx, id, m.CreatorID)

		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrInvalidMatchState):
			// joined or cancelled in the meantime
		default:
			errs = append(errs, err)
		}
	}

	return n, errors.Join(errs...)
}

// RetrySettlements settles finished matches whose settlement failed earlier.
func (e *Engine) RetrySettlements(ctx context.Context) error {
	ids := e.filter(func(m *Match) bool { return m.State == StateFinished && !m.Settled })

	var errs []error

	for _, id := range ids {
		err := e.retry(ctx, id)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e *Engine) retry(ctx context.Context, id uuid.UUID) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	cur, ok := e.get(id)
	if !ok || cur.Settled {
		return nil
	}

	next := cur.clone()

	err := e.settle(ctx, &next)
	if err != nil {
		return fmt.Errorf("settle match %s: %w", id, err)
	}

	return nil
}

// Prune forgets settled matches last updated before cutoff.
func (e *Engine) Prune(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0

	for id, m := range e.matches {
		if m.State == StateFinished && m.Settled && m.UpdatedAt.Before(cutoff) {
			delete(e.matches, id)
			n++
		}
	}

	return n
}

func sortByCreation(ms []Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID.String() < ms[j].ID.String()
		}

		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}
