package handlers

import (
	"bytes"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"coaproxy/internal/logger"
	"coaproxy/internal/shopify"
	"coaproxy/internal/tenancy"

	"github.com/go-chi/chi/v5/middleware"
)

const maxWebhookBody = 1 << 20

func LoggingMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireProxySignature admits only requests whose query string carries a
// valid app proxy signature, and puts the signed shop into the context.
func (h *Handler) RequireProxySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		err := h.verifier.VerifyQuery(q)
		h.metrics.ObserveSignature("query", err == nil)
		if err != nil {
			h.logger.WarnContext(r.Context(), "proxy signature rejected", logger.Path(r.URL.Path), logger.Err(err))
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		shop, err := tenancy.NormalizeShop(q.Get("shop"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "missing or invalid shop")
			return
		}

		next.ServeHTTP(w, r.WithContext(withShop(r.Context(), shop)))
	})
}

// RequireWebhookSignature checks the HMAC header against the raw body, then
// hands the same bytes on to the next handler.
func (h *Handler) RequireWebhookSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		if len(body) > maxWebhookBody {
			respondError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}

		err = h.verifier.VerifyHeader(body, r.Header.Get(shopify.HeaderHMAC))
		h.metrics.ObserveSignature("header", err == nil)
		if err != nil {
			h.logger.WarnContext(r.Context(), "webhook signature rejected", logger.Path(r.URL.Path), logger.Err(err))
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// DedupeWebhook acknowledges a delivery ID seen before without handling it
// again. A delivery that fails with a 5xx is released so the retry runs.
// If the deduper itself fails, the delivery is handled anyway.
func (h *Handler) DedupeWebhook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(shopify.HeaderWebhookID))
		if h.deduper == nil || id == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		topic := r.Header.Get(shopify.HeaderTopic)
		dup, err := h.deduper.Claim(ctx, id, r.Header.Get(shopify.HeaderShopDomain), topic)
		if err != nil {
			h.logger.WarnContext(ctx, "webhook dedupe unavailable", logger.Topic(topic), logger.Err(err))
			next.ServeHTTP(w, r)
			return
		}
		if dup {
			h.metrics.ObserveDuplicateWebhook(topic)
			h.logger.InfoContext(ctx, "duplicate webhook delivery skipped", logger.Topic(topic), slog.String("webhook_id", id))
			respondJSON(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= http.StatusInternalServerError {
			if err := h.deduper.Release(ctx, id); err != nil {
				h.logger.WarnContext(ctx, "webhook dedupe release failed", logger.Topic(topic), logger.Err(err))
			}
		}
	})
}

// RequireBearer guards the operator API when a token is configured.
func (h *Handler) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.opts.DebugAPIToken
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(want)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
