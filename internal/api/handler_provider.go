package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/instant"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/jackpot"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/match"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/progressive"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/session"
	"github.com/go-chi/chi/v5"
)

// Services is everything the HTTP layer fronts.
type Services struct {
	Ledger      *ledger.Service
	Progressive *progressive.Engine
	Matches     *match.Engine
	Jackpots    *jackpot.Service
	Instant     *instant.Service
}

// HandlerProvider exposes the services as HTTP handlers.
type HandlerProvider struct {
	svc Services
	log *slog.Logger
}

func NewHandler(svc Services, log *slog.Logger) *HandlerProvider {
	return &HandlerProvider{svc: svc, log: log}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors to a status and a client-facing message.
// Anything unknown is an internal error.
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{ledger.ErrInsufficientFunds, http.StatusConflict, "insufficient funds"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{ledger.ErrAccountNotFound, http.StatusNotFound, "account not found"},
	{ledger.ErrConcurrencyConflict, http.StatusConflict, "duplicate reference"},
	{catalog.ErrStakeOutOfRange, http.StatusBadRequest, "stake out of range"},
	{catalog.ErrUnknownKind, http.StatusNotFound, "unknown game"},
	{catalog.ErrInvalidParameter, http.StatusBadRequest, "invalid game parameter"},
	{reward.ErrUnknownCategory, http.StatusBadRequest, "unknown outcome"},
	{reward.ErrRngConfiguration, http.StatusServiceUnavailable, "game unavailable"},
	{session.ErrSessionAlreadyActive, http.StatusConflict, "session already active"},
	{session.ErrInvalidSessionState, http.StatusConflict, "no active session"},
	{progressive.ErrNothingToCashOut, http.StatusConflict, "nothing to cash out"},
	{progressive.ErrInvalidChoice, http.StatusBadRequest, "invalid choice"},
	{match.ErrAlreadyInMatch, http.StatusConflict, "already in a match"},
	{match.ErrMoveAlreadySubmitted, http.StatusConflict, "move already submitted"},
	{match.ErrInvalidMatchState, http.StatusConflict, "invalid match state"},
	{match.ErrInvalidMove, http.StatusBadRequest, "invalid move"},
	{match.ErrInvalidRole, http.StatusBadRequest, "invalid role"},
	{match.ErrNotParticipant, http.StatusForbidden, "not a participant"},
	{match.ErrNotCreator, http.StatusForbidden, "only the creator may cancel"},
	{jackpot.ErrUnknownRoom, http.StatusNotFound, "unknown room"},
	{jackpot.ErrEmptyPool, http.StatusConflict, "pool is empty"},
	{jackpot.ErrDrawPending, http.StatusConflict, "draw pending"},
}

// fail writes the response for err, logging anything it cannot map.
func (h *HandlerProvider) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.msg)
			return
		}
	}

	h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decode reads a JSON body into v. On failure it writes the response and
// returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// parseUserIDFromPath reads `{userId}` from chi routes like:
//
//	GET  /accounts/{userId}/balance
//	POST /users/{userId}/sessions/{kind}
func parseUserIDFromPath(r *http.Request) (uint64, error) {
	return parseUserID(chi.URLParam(r, "userId"))
}

func parseUserID(idStr string) (uint64, error) {
	if idStr == "" {
		return 0, fmt.Errorf("missing userId")
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid userId: %w", err)
	}

	if id == 0 {
		return 0, fmt.Errorf("invalid userId: must be positive")
	}

	return id, nil
}

// --- Handlers ---

func (h *HandlerProvider) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
