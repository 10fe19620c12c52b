package api

import (
	"context"
	"net/http"
	"strconv"
)

type fundsRequest struct {
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// GetBalance handles GET /accounts/{userId}/balance
func (h *HandlerProvider) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	bal, err := h.svc.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "balance": bal})
}

// ListEntries handles GET /accounts/{userId}/entries?limit=N
func (h *HandlerProvider) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	list, err := h.svc.Ledger.Entries(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "entries": list})
}

// Deposit handles POST /accounts/{userId}/deposits
func (h *HandlerProvider) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.svc.Ledger.Deposit)
}

// Withdraw handles POST /accounts/{userId}/withdrawals
func (h *HandlerProvider) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.svc.Ledger.Withdraw)
}

func (h *HandlerProvider) moveFunds(w http.ResponseWriter, r *http.Request, post func(ctx context.Context, userID uint64, amount int64, ref, description string) error) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req fundsRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be > 0")
		return
	}

	err = post(r.Context(), userID, req.Amount, req.Reference, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	bal, err := h.svc.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "balance": bal})
}

// GetHouse handles GET /house
func (h *HandlerProvider) GetHouse(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Ledger.GetHouseFunds(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"totalIn": f.TotalIn, "totalOut": f.TotalOut, "net": f.Net()})
}

// Reconcile handles GET /house/reconcile
func (h *HandlerProvider) Reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Ledger.Reconcile(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}
