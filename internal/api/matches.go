package api

import (
	"net/http"

	"github.com/EmeraldIsleCasino/wagercore/internal/services/match"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createMatchRequest struct {
	UserID uint64 `json:"userId"`
	Kind   string `json:"kind"`
	Stake  int64  `json:"stake"`
	Role   string `json:"role,omitempty"`
}

type joinRequest struct {
	UserID uint64 `json:"userId"`
	Role   string `json:"role,omitempty"`
}

type moveRequest struct {
	UserID uint64 `json:"userId"`
	Move   string `json:"move"`
}

type userRequest struct {
	UserID uint64 `json:"userId"`
}

func parseMatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "matchId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid matchId in path")
		return uuid.Nil, false
	}

	return id, true
}

// CreateMatch handles POST /matches
func (h *HandlerProvider) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decode(w, r, &req) {
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	m, err := h.svc.Matches.CreateMatch(r.Context(), req.UserID, match.Kind(req.Kind), req.Stake, match.JoinOptions{Role: req.Role})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// ListMatches handles GET /matches?kind=duel and lists joinable matches.
func (h *HandlerProvider) ListMatches(w http.ResponseWriter, r *http.Request) {
	open := h.svc.Matches.OpenMatches(match.Kind(r.URL.Query().Get("kind")))
	if open == nil {
		open = []match.Match{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": open})
}

// GetMatch handles GET /matches/{matchId}
func (h *HandlerProvider) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	m, ok := h.svc.Matches.GetMatch(id)
	if !ok {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// JoinMatch handles POST /matches/{matchId}/join
func (h *HandlerProvider) JoinMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.svc.Matches.JoinMatch(r.Context(), id, req.UserID, match.JoinOptions{Role: req.Role})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// SubmitMove handles POST /matches/{matchId}/moves
func (h *HandlerProvider) SubmitMove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.svc.Matches.SubmitMove(r.Context(), id, req.UserID, match.Move(req.Move))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// CancelMatch handles POST /matches/{matchId}/cancel
func (h *HandlerProvider) CancelMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	var req userRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.svc.Matches.CancelMatch(r.Context(), id, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}
