package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formlink/formlink/internal/auth"
	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/handler"
	"github.com/formlink/formlink/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, cfg *config.Config, tokenSvc *auth.WebhookTokenService) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"FormLink API v1","version":"0.1.0"}`))
	})

	webhookAuth := mw.WebhookAuth(tokenSvc)
	submissionRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  cfg.Security.RateLimiting.Limit,
		Window: cfg.Security.RateLimiting.Window,
		KeyFn:  mw.IPKey,
	})

	// Form webhook
	mux.Handle("POST /api/v1/submissions", submissionRateLimit(webhookAuth(http.HandlerFunc(h.SubmitForm))))

	// Delivery log
	mux.Handle("GET /api/v1/deliveries", webhookAuth(http.HandlerFunc(h.ListDeliveries)))
	mux.Handle("GET /api/v1/deliveries/{id}", webhookAuth(http.HandlerFunc(h.GetDelivery)))

	// Apply middleware stack
	var handler http.Handler = mux

	// Request logging
	handler = mw.Logger(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
