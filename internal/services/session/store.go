// Package session owns the active progressive game sessions and the escrow
// that opens them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/keylock"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/google/uuid"
)

// Wallet is the part of the ledger the store needs.
type Wallet interface {
	ReserveStake(ctx context.Context, userID uint64, amount int64, ref string) error
	Refund(ctx context.Context, userID uint64, amount int64, ref string) error
}

type key struct {
	userID uint64
	kind   Kind
}

// Store keeps one active session per (user, kind). All work on a key runs
// under that key's lock; reads of other keys are never blocked by it.
type Store struct {
	wallet Wallet
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time

	locks keylock.Map[key]

	mu       sync.RWMutex
	sessions map[key]*Session
}

func NewStore(wallet Wallet, pub events.Publisher, log *slog.Logger) *Store {
	return &Store{
		wallet:   wallet,
		events:   pub,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[key]*Session),
	}
}

func (s *Store) get(k key) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[k]

	return sess, ok
}

func (s *Store) put(k key, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[k] = sess
}

func (s *Store) remove(k key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, k)
}

func (s *Store) newSession(userID uint64, kind Kind, stake int64, payload Payload) *Session {
	now := s.now()

	return &Session{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       kind,
		Stake:      stake,
		Multiplier: 1,
		State:      StateActive,
		StartedAt:  now,
		UpdatedAt:  now,
		Payload:    payload,
	}
}

func checkPayload(kind Kind, payload Payload) error {
	if payload == nil || payload.Kind() != kind {
		return fmt.Errorf("payload for %s: %w", kind, ErrInvalidSessionState)
	}

	return nil
}

// StartSession registers a session whose stake is already escrowed.
func (s *Store) StartSession(_ context.Context, userID uint64, kind Kind, stake int64, payload Payload) (Session, error) {
	err := checkPayload(kind, payload)
	if err != nil {
		return Session{}, err
	}

	k := key{userID: userID, kind: kind}

	unlock := s.locks.Lock(k)
	defer unlock()

	if _, ok := s.get(k); ok {
		return Session{}, ErrSessionAlreadyActive
	}

	sess := s.newSession(userID, kind, stake, payload)
	s.put(k, sess)

	return sess.Clone(), nil
}

// PlaceBetAndStart escrows stake and opens the session as one step. The key
// lock is held across the check, the debit and the insert, so two calls
// for the same user and kind can never both escrow.
func (s *Store) PlaceBetAndStart(ctx context.Context, userID uint64, kind Kind, stake int64, payload Payload) (Session, error) {
	err := checkPayload(kind, payload)
	if err != nil {
		return Session{}, err
	}

	k := key{userID: userID, kind: kind}

	unlock := s.locks.Lock(k)
	defer unlock()

	if _, ok := s.get(k); ok {
		return Session{}, ErrSessionAlreadyActive
	}

	sess := s.newSession(userID, kind, stake, payload)

	err = s.wallet.ReserveStake(ctx, userID, stake, sess.Ref())
	if err != nil {
		return Session{}, fmt.Errorf("reserve stake: %w", err)
	}

	s.put(k, sess)

	s.events.Publish(ctx, events.New(events.BetPlaced, userID, string(kind)).
		WithAmount(stake, sess.Ref()).
		With("session_id", sess.ID.String()))

	return sess.Clone(), nil
}

// GetSession returns a copy of the active session, if any.
func (s *Store) GetSession(userID uint64, kind Kind) (Session, bool) {
	sess, ok := s.get(key{userID: userID, kind: kind})
	if !ok {
		return Session{}, false
	}

	return sess.Clone(), true
}

// Mutate applies fn to a copy of the active session under the key lock.
// When fn fails the stored session is left as it was. A session that fn
// moves to a terminal state is removed from the store and returned.
func (s *Store) Mutate(ctx context.Context, userID uint64, kind Kind, fn func(ctx context.Context, sess *Session) error) (Session, error) {
	k := key{userID: userID, kind: kind}

	unlock := s.locks.Lock(k)
	defer unlock()

	cur, ok := s.get(k)
	if !ok || cur.State.Terminal() {
		return Session{}, ErrInvalidSessionState
	}

	next := cur.Clone()

	err := fn(ctx, &next)
	if err != nil {
		return Session{}, err
	}

	next.UpdatedAt = s.now()

	if next.State.Terminal() {
		s.remove(k)
	} else {
		s.put(k, &next)
	}

	return next.Clone(), nil
}

// EndSession drops the session without any settlement.
func (s *Store) EndSession(userID uint64, kind Kind) (Session, error) {
	k := key{userID: userID, kind: kind}

	unlock := s.locks.Lock(k)
	defer unlock()

	cur, ok := s.get(k)
	if !ok {
		return Session{}, ErrInvalidSessionState
	}

	s.remove(k)

	return cur.Clone(), nil
}

// RefundIdle refunds and removes a session that has made no progress since
// before cutoff. It reports whether a refund happened.
func (s *Store) RefundIdle(ctx context.Context, userID uint64, kind Kind, cutoff time.Time) (bool, error) {
	sess, err := s.Mutate(ctx, userID, kind, func(ctx context.Context, sess *Session) error {
		if sess.Steps > 0 || !sess.UpdatedAt.Before(cutoff) {
			return errNotIdle
		}

		err := s.wallet.Refund(ctx, sess.UserID, sess.Stake, sess.Ref())
		if err != nil && !isAlreadySettled(err) {
			return fmt.Errorf("refund stake: %w", err)
		}

		sess.State = StateRefunded

		return nil
	})
	if err != nil {
		if errors.Is(err, errNotIdle) || errors.Is(err, ErrInvalidSessionState) {
			return false, nil
		}

		return false, err
	}

	s.log.InfoContext(ctx, "idle session refunded", "session_id", sess.ID.String(), "user_id", userID, "kind", kind)

	s.events.Publish(ctx, events.New(events.StakeRefunded, userID, string(kind)).
		WithAmount(sess.Stake, sess.Ref()).
		With("reason", "idle"))

	return true, nil
}

var errNotIdle = errors.New("session not idle")

// Snapshot lists copies of every active session ordered by start time.
func (s *Store) Snapshot() []Session {
	s.mu.RLock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].UserID < out[j].UserID
		}

		return out[i].StartedAt.Before(out[j].StartedAt)
	})

	return out
}

// isAlreadySettled reports whether the ledger already holds the posting.
func isAlreadySettled(err error) bool {
	return errors.Is(err, ledger.ErrConcurrencyConflict)
}
