package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/summit-offroad/api/internal/domain"
	"github.com/summit-offroad/api/internal/platform/httpx"
	"github.com/summit-offroad/api/internal/platform/requestctx"
	"github.com/summit-offroad/api/internal/repositories"
	"github.com/summit-offroad/api/internal/services"
)

const (
	maxOfferBodySize = 16 * 1024
	maxRequestedIDs  = 100
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// OfferHandlers exposes the offer and segment endpoints.
type OfferHandlers struct {
	offers services.OffersService
}

// NewOfferHandlers constructs the handlers.
func NewOfferHandlers(offers services.OffersService) *OfferHandlers {
	return &OfferHandlers{offers: offers}
}

// Routes wires the /offers endpoints onto the provided router.
func (h *OfferHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/personalized", h.postPersonalized)
	r.Post("/checkout", h.postCheckout)
}

// SegmentRoutes wires the /segment endpoint onto the provided router.
func (h *OfferHandlers) SegmentRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getSegment)
}

type personalizedOffersRequest struct {
	ProductID        string   `json:"productId"`
	ViewedProductIDs []string `json:"viewedProductIds"`
	UserID           string   `json:"userId"`
	SessionID        string   `json:"sessionId"`
	Position         string   `json:"position"`
	Limit            int      `json:"limit"`
}

func (h *OfferHandlers) postPersonalized(w http.ResponseWriter, r *http.Request) {
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

	var req personalizedOffersRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if err := validateRequestIDs(req.Limit, req.ViewedProductIDs); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.offers.GetPersonalizedOffers(ctx, services.PersonalizedOffersCommand{
		ProductID:        strings.TrimSpace(req.ProductID),
		ViewedProductIDs: req.ViewedProductIDs,
		UserID:           strings.TrimSpace(req.UserID),
		SessionID:        sessionID(r, req.SessionID),
		Position:         domain.ParsePosition(req.Position),
		Limit:            req.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type checkoutOffersRequest struct {
	CartProductIDs []string `json:"cartProductIds"`
	UserID         string   `json:"userId"`
	SessionID      string   `json:"sessionId"`
	Limit          int      `json:"limit"`
}

func (h *OfferHandlers) postCheckout(w http.ResponseWriter, r *http.Request) {
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

	var req checkoutOffersRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.CartProductIDs) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cartProductIds is required", http.StatusBadRequest))
		return
	}
	if err := validateRequestIDs(req.Limit, req.CartProductIDs); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.offers.GetCheckoutOffers(ctx, services.CheckoutOffersCommand{
		CartProductIDs: req.CartProductIDs,
		UserID:         strings.TrimSpace(req.UserID),
		SessionID:      sessionID(r, req.SessionID),
		Limit:          req.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *OfferHandlers) getSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offers_service_unavailable", "offers service is unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	history := splitIDList(r.URL.Query().Get("history"))
	if len(history) > maxRequestedIDs {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "history exceeds the allowed id count", http.StatusBadRequest))
		return
	}

	result, err := h.offers.GetUserSegment(ctx, userID, history)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// sessionID prefers the explicit body field, then the session header, then
// the rate-limit client identifier.
func sessionID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id
	}
	return requestctx.ClientID(r.Context())
}

func splitIDList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validateRequestIDs(limit int, ids []string) error {
	if limit < 0 {
		return errors.New("limit must not be negative")
	}
	if len(ids) > maxRequestedIDs {
		return errors.New("too many product ids")
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case repositories.IsUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("upstream_unavailable", "catalog is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxOfferBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
