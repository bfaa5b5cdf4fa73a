// Package httptransport is the HTTP edge of the verification service.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all public endpoints. Reviewer and admin routes sit behind
// bearer-token auth; everything else is open to the onboarding client.
func NewRouter(h *Handler, tokens TokenValidator, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(Logger(logger))

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/analyze", h.handleAnalyze)
	r.Post("/submit", h.handleSubmit)
	r.Get("/submissions/{documentID}", h.handleStatus)
	r.Get("/analytics", h.handleAnalytics)
	r.Get("/usage", h.handleUsage)

	r.Group(func(r chi.Router) {
		r.Use(RequireReviewer(tokens, logger))
		r.Get("/reviews/pending", h.handlePendingReviews)
		r.Get("/reviews/flagged", h.handleFlagged)
		r.Post("/reviews/{documentID}", h.handleReview)
		r.Post("/admin/usage/reset", h.handleUsageReset)
	})

	return r
}
