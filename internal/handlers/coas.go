package handlers

import (
	"context"
	"errors"
	"net/http"

	"coaproxy/internal/coa"
	"coaproxy/internal/logger"
)

// ProxyCOAs serves the signed storefront request for the shop named in the
// signed query.
func (h *Handler) ProxyCOAs(w http.ResponseWriter, r *http.Request) {
	h.serveCOAs(w, r, ShopFromContext(r.Context()))
}

// DebugCOAs serves the configured shop without a storefront signature.
func (h *Handler) DebugCOAs(w http.ResponseWriter, r *http.Request) {
	h.serveCOAs(w, r, h.opts.Shop)
}

func (h *Handler) serveCOAs(w http.ResponseWriter, r *http.Request, shop string) {
	ctx := r.Context()

	records, err := h.fetcher.FetchAll(ctx, shop)
	if err != nil {
		h.logger.ErrorContext(ctx, "fetch certificates failed", logger.Shop(shop), logger.Err(err))
		status, msg := fetchErrorResponse(err)
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// fetchErrorResponse maps a fetch failure to a status and a message safe for
// the storefront. Every kind answers 500; detail stays in the logs.
func fetchErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, coa.ErrUnauthenticated):
		return http.StatusInternalServerError, "shop has not installed the app"
	case errors.Is(err, coa.ErrStoreUnavailable):
		return http.StatusInternalServerError, "credential store unavailable"
	case errors.Is(err, coa.ErrRemoteRejected):
		return http.StatusInternalServerError, "remote API rejected the request"
	case errors.Is(err, coa.ErrRetriesExhausted):
		return http.StatusInternalServerError, "remote API unavailable, try again later"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
