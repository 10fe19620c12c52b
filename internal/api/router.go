package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(svc Services, log *slog.Logger) http.Handler {
	h := NewHandler(svc, log)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Route("/accounts/{userId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalance)
		r.Get("/entries", h.ListEntries)
		r.Post("/deposits", h.Deposit)
		r.Post("/withdrawals", h.Withdraw)
	})

	r.Get("/house", h.GetHouse)
	r.Get("/house/reconcile", h.Reconcile)

	r.Route("/users/{userId}/sessions/{kind}", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Get("/", h.GetSession)
		r.Post("/steps", h.Step)
		r.Post("/cashout", h.CashOut)
	})

	r.Route("/matches", func(r chi.Router) {
		r.Post("/", h.CreateMatch)
		r.Get("/", h.ListMatches)
		r.Get("/{matchId}", h.GetMatch)
		r.Post("/{matchId}/join", h.JoinMatch)
		r.Post("/{matchId}/moves", h.SubmitMove)
		r.Post("/{matchId}/cancel", h.CancelMatch)
	})

	r.Route("/jackpots/{room}", func(r chi.Router) {
		r.Get("/", h.GetJackpot)
		r.Post("/entries", h.EnterJackpot)
		r.Post("/draw", h.DrawJackpot)
	})

	r.Post("/instant/wheel", h.SpinWheel)
	r.Post("/instant/duck-race", h.BetDuckRace)

	return r
}
