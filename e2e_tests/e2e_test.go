//go:build e2e

package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var (
	baseURL    = envOr("E2E_BASE_URL", "http://localhost:8080")
	httpClient = &http.Client{Timeout: timeout}
)

func TestE2E_FundsFlow(t *testing.T) {
	waitUntilReady(t)

	user := uniqUser()

	t.Run("unknown_account_not_found", func(t *testing.T) {
		code, body := call(t, http.MethodGet, fmt.Sprintf("/accounts/%d/balance", user), nil, nil)
		if code != http.StatusNotFound {
			t.Fatalf("fresh user: want 404, got %d (%s)", code, body)
		}
	})

	ref := fmt.Sprintf("e2e-dep-%d", user)

	t.Run("deposit_credits_balance", func(t *testing.T) {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/accounts/%d/deposits", user), map[string]any{"amount": 1000, "reference": ref}, nil)
		if code != http.StatusOK {
			t.Fatalf("deposit: want 200, got %d (%s)", code, body)
		}

		if got := balance(t, user); got != 1000 {
			t.Fatalf("after deposit: want 1000, got %d", got)
		}
	})

	t.Run("duplicate_deposit_conflict", func(t *testing.T) {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/accounts/%d/deposits", user), map[string]any{"amount": 1000, "reference": ref}, nil)
		if code != http.StatusConflict {
			t.Fatalf("duplicate: want 409, got %d (%s)", code, body)
		}

		if got := balance(t, user); got != 1000 {
			t.Fatalf("after duplicate: want 1000, got %d", got)
		}
	})

	t.Run("overdraw_conflict", func(t *testing.T) {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/accounts/%d/withdrawals", user), map[string]any{"amount": 1001}, nil)
		if code != http.StatusConflict {
			t.Fatalf("overdraw: want 409, got %d (%s)", code, body)
		}
	})

	t.Run("withdraw_debits_balance", func(t *testing.T) {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/accounts/%d/withdrawals", user), map[string]any{"amount": 400}, nil)
		if code != http.StatusOK {
			t.Fatalf("withdraw: want 200, got %d (%s)", code, body)
		}

		if got := balance(t, user); got != 600 {
			t.Fatalf("after withdraw: want 600, got %d", got)
		}
	})
}

func TestE2E_GamesKeepBooksBalanced(t *testing.T) {
	waitUntilReady(t)

	a, b := uniqUser(), uniqUser()
	for _, u := range []uint64{a, b} {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/accounts/%d/deposits", u), map[string]any{"amount": 5000}, nil)
		if code != http.StatusOK {
			t.Fatalf("fund %d: want 200, got %d (%s)", u, code, body)
		}
	}

	t.Run("session_escrows_stake", func(t *testing.T) {
		code, body := call(t, http.MethodPost, fmt.Sprintf("/users/%d/sessions/tower", a), map[string]any{"stake": 100, "difficulty": "easy"}, nil)
		if code != http.StatusCreated {
			t.Fatalf("start: want 201, got %d (%s)", code, body)
		}

		if got := balance(t, a); got != 4900 {
			t.Fatalf("after start: want 4900, got %d", got)
		}
	})

	t.Run("wheel_spin_settles", func(t *testing.T) {
		var play struct {
			Stake  int64 `json:"stake"`
			Payout int64 `json:"payout"`
		}

		code, body := call(t, http.MethodPost, "/instant/wheel", map[string]any{"userId": b, "stake": 100}, &play)
		if code != http.StatusOK {
			t.Fatalf("spin: want 200, got %d (%s)", code, body)
		}

		if got, want := balance(t, b), 5000-play.Stake+play.Payout; got != want {
			t.Fatalf("after spin: want %d, got %d", want, got)
		}
	})

	t.Run("duel_lifecycle", func(t *testing.T) {
		var m struct {
			ID    string `json:"id"`
			State string `json:"state"`
		}

		code, body := call(t, http.MethodPost, "/matches", map[string]any{"userId": b, "kind": "duel", "stake": 200}, &m)
		if code != http.StatusCreated {
			t.Fatalf("create: want 201, got %d (%s)", code, body)
		}

		code, body = call(t, http.MethodPost, "/matches/"+m.ID+"/cancel", map[string]any{"userId": b}, &m)
		if code != http.StatusOK || m.State != "finished" {
			t.Fatalf("cancel: want finished, got %d (%s)", code, body)
		}
	})

	t.Run("books_balanced", func(t *testing.T) {
		var rep struct {
			Balanced bool `json:"balanced"`
		}

		code, body := call(t, http.MethodGet, "/house/reconcile", nil, &rep)
		if code != http.StatusOK || !rep.Balanced {
			t.Fatalf("reconcile: got %d (%s)", code, body)
		}
	})
}

/* -------------------- helpers -------------------- */

// call sends body as JSON. When out is non-nil and the response is 2xx the
// body is decoded into it.
func call(t *testing.T, method, path string, body, out any) (int, string) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	if out != nil && resp.StatusCode < 300 {
		err = json.Unmarshal(b, out)
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}

	return resp.StatusCode, string(b)
}

func balance(t *testing.T, userID uint64) int64 {
	t.Helper()

	var payload struct {
		UserID  uint64 `json:"userId"`
		Balance int64  `json:"balance"`
	}

	path := fmt.Sprintf("/accounts/%d/balance", userID)

	code, body := call(t, http.MethodGet, path, nil, &payload)
	if code != http.StatusOK {
		t.Fatalf("GET %s: want 200, got %d (%s)", path, code, body)
	}

	if payload.UserID != userID {
		t.Fatalf("userId mismatch: want %d, got %d", userID, payload.UserID)
	}

	return payload.Balance
}

// waitUntilReady waits until GET /healthz responds 200 or times out.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	u := baseURL + "/healthz"

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", u, waitReady)
		case <-tick.C:
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)

			resp, err := httpClient.Do(req)
			if err != nil {
				// dial errors mean the server is still starting
				continue
			}

			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

// uniqUser picks an id no previous run has used, so the suite can run
// against a long-lived store.
func uniqUser() uint64 {
	time.Sleep(time.Microsecond)
	return uint64(time.Now().UnixNano() / 1000)
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}
