/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request, echoed into the request log
  2. Logger:     logrus request log (method, path, status, duration)
  3. Recoverer:  panic recovery (500 instead of crash)
  4. CORS:       cross-origin requests for the frontend

SECURITY NOTE:
  No authentication middleware. All endpoints are public; run behind
  something that authenticates the syndicate's admins.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
)

type RouterOptions struct {
	CORSOrigins []string
	Logger      log.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Post("/", h.CreatePlayer)
			r.Get("/{id}", h.GetPlayer)
			r.Put("/{id}/active", h.SetPlayerActive)
		})

		r.Route("/seasons", func(r chi.Router) {
			r.Get("/", h.ListSeasons)
			r.Post("/", h.CreateSeason)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSeason)
				r.Post("/activate", h.ActivateSeason)
				r.Put("/end-date", h.SetSeasonEndDate)

				r.Get("/members", h.ListMembers)
				r.Post("/members", h.AddMember)
				r.Put("/members/{playerID}/active", h.SetMemberActive)

				r.Get("/weeks", h.ListWeeks)
				r.Post("/weeks", h.CreateWeek)

				r.Get("/totals", h.SeasonTotals)
				r.Get("/balance", h.BankBalance)
				r.Get("/state", h.SeasonState)
				r.Get("/stats", h.PlayerStats)
				r.Get("/rota", h.CurrentRota)
				r.Get("/dashboard", h.Dashboard)
				r.Get("/players/{playerID}/position", h.PlayerPosition)
				r.Get("/players/{playerID}/payout", h.PlayerPayout)

				r.Post("/import/calendar", h.ImportCalendar)
			})
		})

		r.Route("/weeks/{id}/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.AssignWeek)
		})

		r.Post("/contributions", h.RecordContribution)
		r.Post("/payouts", h.RecordPayout)

		r.Route("/bets", func(r chi.Router) {
			r.Get("/", h.ListBets)
			r.Post("/", h.PlaceBet)
			r.Get("/{id}", h.GetBet)
			r.Post("/{id}/won", h.SettleBet(ledger.BetWon))
			r.Post("/{id}/lost", h.SettleBet(ledger.BetLost))
			r.Post("/{id}/void", h.SettleBet(ledger.BetVoid))
			r.Put("/{id}/screenshot", h.AttachScreenshot)
		})

		r.Get("/ledger", h.LedgerEntries)
		r.Post("/import/transactions", h.ImportTransactions)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// RequestLogger logs one line per request through logger.
func RequestLogger(logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(started).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			switch {
			case status >= 500:
				entry.Error("http request")
			case status >= 400:
				entry.Warn("http request")
			default:
				entry.Info("http request")
			}
		})
	}
}
