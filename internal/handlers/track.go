package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/summit-offroad/api/internal/platform/httpx"
	"github.com/summit-offroad/api/internal/services"
)

// TrackHandlers exposes the fire-and-forget view tracking endpoint.
type TrackHandlers struct {
	offers services.OffersService
}

// NewTrackHandlers constructs the handlers.
func NewTrackHandlers(offers services.OffersService) *TrackHandlers {
	return &TrackHandlers{offers: offers}
}

// Routes wires the /track endpoints onto the provided router.
func (h *TrackHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/views", h.postViews)
}

type trackViewsRequest struct {
	ProductIDs []string `json:"productIds"`
	SessionID  string   `json:"sessionId"`
}

func (h *TrackHandlers) postViews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offers_service_unavailable", "offers service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req trackViewsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.ProductIDs) == 0 || len(req.ProductIDs) > maxRequestedIDs {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productIds must hold between 1 and 100 entries", http.StatusBadRequest))
		return
	}

	result, err := h.offers.TrackProductViews(ctx, sessionID(r, req.SessionID), req.ProductIDs)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	// 202: bookkeeping is deferred, the views are only queued.
	httpx.WriteJSON(w, http.StatusAccepted, result)
}
