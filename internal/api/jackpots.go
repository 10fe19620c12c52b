package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type entryRequest struct {
	UserID uint64 `json:"userId"`
	Amount int64  `json:"amount"`
}

// EnterJackpot handles POST /jackpots/{room}/entries
func (h *HandlerProvider) EnterJackpot(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decode(w, r, &req) {
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	entry, round, err := h.svc.Jackpots.Enter(r.Context(), chi.URLParam(r, "room"), req.UserID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"entry": entry,
		"share": round.Pool.Share(req.UserID),
		"round": round,
	})
}

// GetJackpot handles GET /jackpots/{room}
func (h *HandlerProvider) GetJackpot(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.Jackpots.Pool(chi.URLParam(r, "room"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, round)
}

// DrawJackpot handles POST /jackpots/{room}/draw
func (h *HandlerProvider) DrawJackpot(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Jackpots.Draw(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}
