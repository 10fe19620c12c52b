// Package sweeper re-posts settlements that failed and, when a TTL is
// configured, returns stakes that nobody is going to play out: zero-step
// sessions and matches nobody joined.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/services/session"
)

type Sessions interface {
	Snapshot() []session.Session
	RefundIdle(ctx context.Context, userID uint64, kind session.Kind, cutoff time.Time) (bool, error)
}

// Settler re-posts payouts or refunds whose ledger posting failed.
type Settler interface {
	RetrySettlements(ctx context.Context) error
}

type Matches interface {
	Settler
	CancelStale(ctx context.Context, cutoff time.Time) (int, error)
	Prune(cutoff time.Time) int
}

type Report struct {
	SessionsRefunded int
	MatchesCancelled int
	MatchesPruned    int
}

type Sweeper struct {
	sessions Sessions
	matches  Matches
	settlers []Settler
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
}

// New builds a sweeper. Settlement retries run on every sweep for matches
// and every extra settler; the stale-stake part needs ttl > 0.
func New(sessions Sessions, matches Matches, ttl, interval time.Duration, log *slog.Logger, extra ...Settler) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}

	var settlers []Settler
	if matches != nil {
		settlers = append(settlers, matches)
	}

	settlers = append(settlers, extra...)

	return &Sweeper{
		sessions: sessions,
		matches:  matches,
		settlers: settlers,
		ttl:      ttl,
		interval: interval,
		log:      log,
	}
}

// Enabled reports whether stale stakes are swept. Settlement retries run
// either way.
func (s *Sweeper) Enabled() bool { return s.ttl > 0 }

// Sweep retries failed settlements, then refunds everything idle for longer
// than the TTL as of at and forgets settled matches past the TTL.
func (s *Sweeper) Sweep(ctx context.Context, at time.Time) (Report, error) {
	var (
		rep  Report
		errs []error
	)

	for _, st := range s.settlers {
		err := st.RetrySettlements(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("retry settlements: %w", err))
		}
	}

	if !s.Enabled() {
		return rep, errors.Join(errs...)
	}

	cutoff := at.Add(-s.ttl)

	for _, sess := range s.sessions.Snapshot() {
		if sess.Steps > 0 {
			continue
		}

		ok, err := s.sessions.RefundIdle(ctx, sess.UserID, sess.Kind, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}

		if ok {
			rep.SessionsRefunded++
		}
	}

	n, err := s.matches.CancelStale(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("cancel stale matches: %w", err))
	}

	rep.MatchesCancelled = n

	rep.MatchesPruned = s.matches.Prune(cutoff)

	return rep, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.InfoContext(ctx, "sweeper started", "stale_stakes", s.Enabled(), "ttl", s.ttl, "interval", s.interval)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rep, err := s.Sweep(ctx, now)
			if err != nil {
				s.log.ErrorContext(ctx, "sweep failed", "error", err)
			}

			if rep != (Report{}) {
				s.log.InfoContext(ctx, "sweep done",
					"sessions_refunded", rep.SessionsRefunded,
					"matches_cancelled", rep.MatchesCancelled,
					"matches_pruned", rep.MatchesPruned)
			}
		}
	}
}
