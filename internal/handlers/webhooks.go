package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"
	"coaproxy/internal/shopify"
	"coaproxy/internal/tenancy"
)

// webhookShop prefers the shop header and falls back to the payload's
// domain fields.
func webhookShop(r *http.Request) string {
	if shop, err := tenancy.NormalizeShop(r.Header.Get(shopify.HeaderShopDomain)); err == nil {
		return shop
	}

	var body struct {
		Domain          string `json:"domain"`
		MyshopifyDomain string `json:"myshopify_domain"`
		ShopDomain      string `json:"shop_domain"`
	}
	raw, _ := io.ReadAll(r.Body)
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	for _, c := range []string{body.MyshopifyDomain, body.ShopDomain, body.Domain} {
		if shop, err := tenancy.NormalizeShop(c); err == nil {
			return shop
		}
	}
	return ""
}

func (h *Handler) AppUninstalled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop := webhookShop(r)
	h.metrics.ObserveWebhook(shopify.TopicAppUninstalled)
	h.logger.InfoContext(ctx, "app uninstalled", logger.Shop(shop))

	if h.opts.PurgeOnUninstall && shop != "" {
		err := h.store.Delete(ctx, shop)
		switch {
		case err == nil:
			h.logger.InfoContext(ctx, "credential purged", logger.Shop(shop))
		case errors.Is(err, credentials.ErrReadOnly):
			h.logger.WarnContext(ctx, "credential store is read-only, nothing purged", logger.Shop(shop))
		default:
			h.logger.ErrorContext(ctx, "credential purge failed", logger.Shop(shop), logger.Err(err))
			respondError(w, http.StatusInternalServerError, "failed to purge credential")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) ScopesUpdated(w http.ResponseWriter, r *http.Request) {
	shop := webhookShop(r)
	h.metrics.ObserveWebhook(shopify.TopicScopesUpdated)
	h.logger.InfoContext(r.Context(), "app scopes updated", logger.Shop(shop))

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
