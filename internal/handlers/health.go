package handlers

import (
	"errors"
	"net/http"

	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"
)

type healthResponse struct {
	Status               string `json:"status"`
	ShopConfigured       bool   `json:"shopConfigured"`
	CredentialConfigured bool   `json:"credentialConfigured"`
	Backend              string `json:"backend"`
	Store                string `json:"store,omitempty"`
}

// Health reports configuration state. With ?deep=1 it also round-trips a
// probe key through the credential store and answers 503 if that fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{
		Status:         "ok",
		ShopConfigured: h.opts.Shop != "",
		Backend:        h.opts.Backend,
	}

	if h.opts.Shop != "" {
		_, err := h.store.Get(ctx, h.opts.Shop)
		resp.CredentialConfigured = err == nil
		if err != nil && !errors.Is(err, credentials.ErrNotFound) {
			h.logger.WarnContext(ctx, "health credential lookup failed", logger.Shop(h.opts.Shop), logger.Err(err))
		}
	}

	if r.URL.Query().Get("deep") == "1" {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "credential store probe failed", logger.Backend(h.opts.Backend), logger.Err(err))
			resp.Status = "degraded"
			resp.Store = "unavailable"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Store = "ok"
	}

	respondJSON(w, http.StatusOK, resp)
}
