// Package httpapi assembles the chi router: health and metrics endpoints
// mounted unauthenticated, everything under /api/v1 except the login route
// behind the JWT/rate-limit chain. The middleware stack is built first, then collaborators are
// mounted, then the versioned API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authn"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
	fsmw "github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/httpapi/middleware"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/observability"
)

// NewRouter builds the full request pipeline: CORS, security headers,
// request id, panic recovery, structured logging, body-size limit, then
// the mounted routes. Auth and rate limiting are applied only to /api/v1
// routes other than POST /api/v1/auth/login.
func NewRouter(cfg *config.Config, log zerolog.Logger, metrics *observability.Metrics, issuer *authn.Issuer, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(fsmw.CORS([]string{"*"}))
	r.Use(fsmw.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(fsmw.RequestLogger(log))
	r.Use(fsmw.MaxBodySize(cfg.MaxBodyBytes))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", h.Healthz)
	r.Get("/ready", h.Healthz)
	r.Handle("/metrics", metrics.Handler())

	limiter := fsmw.NewRateLimiter(cfg.RateLimitEnabled, cfg.RateLimitRPM, cfg.RateLimitBurst)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", h.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(fsmw.Auth(issuer))
			protected.Use(limiter.Handler)

			protected.Post("/readings", h.CreateReading)
			protected.Post("/readings/{id}/reject", h.RejectReading)

			protected.Post("/transactions", h.CreateTransaction)
			protected.Post("/transactions/{id}/cancel", h.CancelTransaction)

			protected.Post("/handovers", h.CreateHandover)
			protected.Post("/handovers/{id}/confirm", h.ConfirmHandover)
			protected.Post("/handovers/{id}/resolve-dispute", h.ResolveHandoverDispute)
			protected.Get("/handovers/pending", h.PendingHandovers)

			protected.Post("/shifts/start", h.StartShift)
			protected.Post("/shifts/{id}/end", h.EndShift)
			protected.Post("/shifts/{id}/cancel", h.CancelShift)

			protected.Get("/stations/{stationId}/tanks/{fuelType}", h.GetTank)
			protected.Post("/stations/{stationId}/tanks/refills", h.RecordRefill)
			protected.Delete("/tanks/refills/{id}", h.DeleteRefill)

			protected.Post("/creditors/{id}/credits", h.RecordCredit)
			protected.Post("/creditors/{id}/settlements", h.RecordSettlement)

			protected.Post("/expenses", h.RecordExpense)
			protected.Get("/stations/{stationId}/expenses", h.ListExpenses)

			protected.Get("/stations/{stationId}/summary", h.StationSummary)
			protected.Get("/dashboard/missed-readings", h.MissedReadings)
		})
	})

	return r
}
