package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"
	"coaproxy/internal/shopify"
	"coaproxy/internal/tenancy"
)

// Install sends the merchant to the platform's consent screen. The shop comes
// from ?shop= or falls back to the configured default.
func (h *Handler) Install(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("shop")
	if raw == "" {
		raw = h.opts.Shop
	}
	shop, err := tenancy.NormalizeShop(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid shop (expected like your-store.myshopify.com)")
		return
	}

	state := strconv.FormatInt(h.now().UnixMilli(), 10)
	http.Redirect(w, r, h.installer.AuthorizeURL(shop, state), http.StatusFound)
}

// Callback completes the install: it checks the redirect HMAC, trades the
// code for a token and either stores it or shows it once.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	shop, err := tenancy.NormalizeShop(q.Get("shop"))
	code := q.Get("code")
	if err != nil || code == "" {
		respondError(w, http.StatusBadRequest, "missing required oauth params")
		return
	}

	err = h.verifier.VerifyInstall(q)
	h.metrics.ObserveSignature("install", err == nil)
	if err != nil {
		h.logger.WarnContext(ctx, "install hmac rejected", logger.Shop(shop), logger.Err(err))
		respondError(w, http.StatusUnauthorized, "invalid hmac")
		return
	}

	if !h.opts.Persist {
		h.displayToken(w, r, shop, code)
		return
	}

	cred, err := h.installer.Exchange(ctx, shop, code)
	if err != nil {
		h.logger.ErrorContext(ctx, "install failed", logger.Shop(shop), logger.Err(err))
		respondError(w, http.StatusInternalServerError, installErrorMessage(err))
		return
	}

	if h.registrar != nil && h.opts.AppURL != "" {
		h.registerWebhooks(ctx, shop, cred.AccessToken)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "installed",
		"shop":   shop,
		"scope":  cred.Scope,
	})
}

// displayToken serves single-tenant deployments: the token is shown once so
// the operator can set SHOPIFY_ACCESS_TOKEN; nothing is stored.
func (h *Handler) displayToken(w http.ResponseWriter, r *http.Request, shop, code string) {
	ctx := r.Context()
	if h.opts.Shop != "" && !tenancy.ShopsEqual(shop, h.opts.Shop) {
		respondError(w, http.StatusBadRequest, "shop does not match the configured shop")
		return
	}

	cred, err := h.installer.RequestToken(ctx, shop, code)
	if err != nil {
		h.logger.ErrorContext(ctx, "token request failed", logger.Shop(shop), logger.Err(err))
		respondError(w, http.StatusInternalServerError, installErrorMessage(err))
		return
	}

	h.logger.InfoContext(ctx, "access token issued for manual configuration", logger.Shop(shop))
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, map[string]any{
		"shop":        shop,
		"scope":       cred.Scope,
		"accessToken": cred.AccessToken,
		"next":        "set SHOPIFY_ACCESS_TOKEN to accessToken and restart the service",
	})
}

func (h *Handler) registerWebhooks(ctx context.Context, shop, token string) {
	created, failed := h.registrar.RegisterWebhooks(ctx, shop, token, h.opts.AppURL)
	for _, f := range failed {
		h.logger.WarnContext(ctx, "webhook subscription failed", logger.Shop(shop), logger.Topic(f.Topic), logger.Err(f.Err))
	}
	if len(created) > 0 {
		h.logger.InfoContext(ctx, "webhooks subscribed", logger.Shop(shop), slog.Any("topics", created))
	}
}

func installErrorMessage(err error) string {
	var oe *shopify.OAuthError
	switch {
	case errors.As(err, &oe):
		return oe.Error()
	case errors.Is(err, credentials.ErrUnavailable), errors.Is(err, credentials.ErrReadOnly):
		return "failed to store credential"
	default:
		return "install failed"
	}
}
