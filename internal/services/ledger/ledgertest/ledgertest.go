// Package ledgertest builds a real ledger on a temporary SQLite file for
// engine tests.
package ledgertest

import (
	"fmt"
	"testing"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/sqlitetestutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
)

// New returns a ledger that is closed when the test ends.
func New(t *testing.T) *ledger.Service {
	t.Helper()

	db, cleanup := sqlitetestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	return ledger.New(db, dbutil.SQLite)
}

// Fund deposits amount for every user.
func Fund(t *testing.T, svc *ledger.Service, amount int64, users ...uint64) {
	t.Helper()

	for _, u := range users {
		err := svc.Deposit(t.Context(), u, amount, fmt.Sprintf("test-fund:%d", u), "test funding")
		if err != nil {
			t.Fatalf("fund user %d: %v", u, err)
		}
	}
}

// Balance returns the user's balance, failing the test on error.
func Balance(t *testing.T, svc *ledger.Service, userID uint64) int64 {
	t.Helper()

	b, err := svc.GetBalance(t.Context(), userID)
	if err != nil {
		t.Fatalf("balance of %d: %v", userID, err)
	}

	return b
}

// RequireBalanced fails the test when the conservation check does not hold.
func RequireBalanced(t *testing.T, svc *ledger.Service) ledger.Report {
	t.Helper()

	r, err := svc.Reconcile(t.Context())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if !r.Balanced {
		t.Fatalf("books not balanced: %+v", r)
	}

	return r
}
