package handlers

import (
	"net/http"

	"coaproxy/internal/shopify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "http_request",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)

	// An empty allow-list would make rs/cors allow every origin.
	if len(h.opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: h.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}

	r.Get("/health", h.Health)

	// Merchant-facing routes are limited per client IP. Proxy and webhook
	// traffic arrives from the platform's shared egress addresses.
	limit := func(next http.Handler) http.Handler { return next }
	if h.opts.RateLimitRPS > 0 {
		limit = RateLimitMiddleware(NewRateLimiter(h.opts.RateLimitRPS, h.opts.RateLimitBurst))
	}

	// Install flow
	r.With(limit).Get("/", h.Install)
	r.With(limit).Get("/auth/callback", h.Callback)

	// Storefront requests forwarded by the app proxy.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireProxySignature)
		for _, p := range []string{"/coas", "/proxy/coas"} {
			r.Get(p, h.ProxyCOAs)
			r.Post(p, h.ProxyCOAs)
		}
	})

	if h.opts.DebugAPIEnabled {
		r.With(limit, h.RequireBearer).Get("/api/coas", h.DebugCOAs)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.RequireWebhookSignature)
		r.With(h.DedupeWebhook).Post(shopify.WebhookPath(shopify.TopicAppUninstalled), h.AppUninstalled)
		r.Post(shopify.WebhookPath(shopify.TopicScopesUpdated), h.ScopesUpdated)
	})

	return r
}
