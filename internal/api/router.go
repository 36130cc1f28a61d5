/**
 * @description
 * HTTP router for the giving-service using go-chi/chi.
 */
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/app"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "giving",
	Name:      "rate_limited_requests_total",
	Help:      "Requests refused by the rate limiter.",
}, []string{"scope"})

type RouterOptions struct {
	Verifier       *MemberVerifier
	InternalAPIKey string
	RateLimiter    app.RateLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates a new Chi router and registers the giving and event routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Giving service is healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/payments", func(r chi.Router) {
		r.With(RateLimitMiddleware(opts.RateLimiter, "payments", opts.Logger)).Post("/", h.handleSubmitDonation)
		r.Get("/", h.handlePaymentCallback)
		r.Get("/quote", h.handleQuote)
		r.Get("/categories", h.handleCategories)
		r.Get("/{reference}", h.handleGetDonation)
	})

	r.Route("/events", func(r chi.Router) {
		r.With(OptionalMemberAuth(opts.Verifier)).Get("/", h.handleListEvents)
		r.With(OptionalMemberAuth(opts.Verifier)).Get("/{id}", h.handleGetEvent)

		r.Group(func(r chi.Router) {
			r.Use(MemberAuthMiddleware(opts.Verifier))
			r.With(RequireCapability(domain.CapRegisterForEvents)).Post("/{id}/registrations", h.handleRegister)
			r.With(RequireCapability(domain.CapRegisterForEvents)).Delete("/{id}/registrations", h.handleUnregister)

			r.Group(func(r chi.Router) {
				r.Use(RequireCapability(domain.CapManageEvents))
				r.Post("/", h.handleCreateEvent)
				r.Post("/{id}/cancel", h.handleCancelEvent)
				r.Get("/{id}/registrants", h.handleListRegistrants)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(MemberAuthMiddleware(opts.Verifier))
		r.Use(RequireCapability(domain.CapViewDonations))
		r.Get("/donations", h.handleListDonations)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Post("/events/complete-past", h.handleCompletePastEvents)
		r.Post("/donations/expire-stale", h.handleExpireStaleDonations)
	})

	return r
}
