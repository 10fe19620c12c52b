package api

import (
	"net/http"

	"github.com/EmeraldIsleCasino/wagercore/internal/services/progressive"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/session"
	"github.com/go-chi/chi/v5"
)

type startRequest struct {
	Stake      int64  `json:"stake"`
	Hazards    int    `json:"hazards,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type stepRequest struct {
	Choice int `json:"choice"`
}

type wheelRequest struct {
	UserID uint64 `json:"userId"`
	Stake  int64  `json:"stake"`
}

type duckRaceRequest struct {
	UserID uint64 `json:"userId"`
	Duck   string `json:"duck"`
	Stake  int64  `json:"stake"`
}

// sessionTarget reads {userId} and {kind}. On failure it writes the
// response and returns false.
func sessionTarget(w http.ResponseWriter, r *http.Request) (uint64, session.Kind, bool) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return 0, "", false
	}

	kind, ok := session.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown game")
		return 0, "", false
	}

	return userID, kind, true
}

// StartSession handles POST /users/{userId}/sessions/{kind}
func (h *HandlerProvider) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := sessionTarget(w, r)
	if !ok {
		return
	}

	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.svc.Progressive.Start(r.Context(), userID, kind, req.Stake, progressive.Params{
		Hazards:    req.Hazards,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /users/{userId}/sessions/{kind}
func (h *HandlerProvider) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := sessionTarget(w, r)
	if !ok {
		return
	}

	sess, ok := h.svc.Progressive.Session(userID, kind)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Step handles POST /users/{userId}/sessions/{kind}/steps
func (h *HandlerProvider) Step(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := sessionTarget(w, r)
	if !ok {
		return
	}

	var req stepRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Progressive.Step(r.Context(), userID, kind, req.Choice)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// CashOut handles POST /users/{userId}/sessions/{kind}/cashout
func (h *HandlerProvider) CashOut(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := sessionTarget(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Progressive.CashOut(r.Context(), userID, kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SpinWheel handles POST /instant/wheel
func (h *HandlerProvider) SpinWheel(w http.ResponseWriter, r *http.Request) {
	var req wheelRequest
	if !decode(w, r, &req) {
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	p, err := h.svc.Instant.SpinWheel(r.Context(), req.UserID, req.Stake)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// BetDuckRace handles POST /instant/duck-race
func (h *HandlerProvider) BetDuckRace(w http.ResponseWriter, r *http.Request) {
	var req duckRaceRequest
	if !decode(w, r, &req) {
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	p, err := h.svc.Instant.BetDuckRace(r.Context(), req.UserID, req.Duck, req.Stake)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}
