package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/summit-offroad/api/internal/platform/httpx"
	"github.com/summit-offroad/api/internal/services"
)

// RevenueHandlers exposes the internal revenue recording endpoint, called by
// the order pipeline when a payment settles.
type RevenueHandlers struct {
	offers services.OffersService
}

// NewRevenueHandlers constructs the handlers.
func NewRevenueHandlers(offers services.OffersService) *RevenueHandlers {
	return &RevenueHandlers{offers: offers}
}

// Routes wires the /internal revenue endpoints onto the provided router.
func (h *RevenueHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/revenue", h.postRevenue)
}

type recordRevenueRequest struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

func (h *RevenueHandlers) postRevenue(w http.ResponseWriter, r *http.Request) {
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

	var req recordRevenueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}
	if req.AmountCents < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "amountCents must not be negative", http.StatusBadRequest))
		return
	}

	result, err := h.offers.RecordOrderRevenue(ctx, req.OrderID, req.AmountCents)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
