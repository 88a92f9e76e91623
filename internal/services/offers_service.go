package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/summit-offroad/api/internal/domain"
	"github.com/summit-offroad/api/internal/platform/observability"
)

const maxProductIDLength = 64

// Fallback copy when no funnel step supplies its own.
const (
	defaultOfferCTA    = "Shop recommended gear"
	defaultCheckoutCTA = "Add to order"
)

// OffersServiceDeps wires the orchestration layer over the funnel core.
type OffersServiceDeps struct {
	Classifier  SegmentClassifier
	Selector    FunnelStepSelector
	Recommender RecommendationResolver
	Pricing     PricingEngine
	Governor    RevenueGovernor
	Publisher   ViewTrackingPublisher
	Metrics     *observability.FunnelMetrics
	Logger      EventLogger
	Sanitizer   *bluemonday.Policy
	Clock       func() time.Time
}

// FunnelOffersService composes the classifier, selector, resolver, pricing
// engine, and governor into the storefront-facing operations.
type FunnelOffersService struct {
	classifier  SegmentClassifier
	selector    FunnelStepSelector
	recommender RecommendationResolver
	pricing     PricingEngine
	governor    RevenueGovernor
	publisher   ViewTrackingPublisher
	metrics     *observability.FunnelMetrics
	logger      EventLogger
	sanitizer   *bluemonday.Policy
	clock       func() time.Time
}

// NewFunnelOffersService constructs the service.
func NewFunnelOffersService(deps OffersServiceDeps) (*FunnelOffersService, error) {
	switch {
	case deps.Classifier == nil:
		return nil, fmt.Errorf("offers service requires a segment classifier")
	case deps.Selector == nil:
		return nil, fmt.Errorf("offers service requires a funnel step selector")
	case deps.Recommender == nil:
		return nil, fmt.Errorf("offers service requires a recommendation resolver")
	case deps.Pricing == nil:
		return nil, fmt.Errorf("offers service requires a pricing engine")
	case deps.Governor == nil:
		return nil, fmt.Errorf("offers service requires a revenue governor")
	}
	if deps.Logger == nil {
		deps.Logger = noopEventLogger
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = bluemonday.StrictPolicy()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &FunnelOffersService{
		classifier:  deps.Classifier,
		selector:    deps.Selector,
		recommender: deps.Recommender,
		pricing:     deps.Pricing,
		governor:    deps.Governor,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		sanitizer:   deps.Sanitizer,
		clock:       deps.Clock,
	}, nil
}

// GetPersonalizedOffers resolves segment, step, candidates, and prices for a
// funnel position. An empty offer list is a normal outcome.
func (s *FunnelOffersService) GetPersonalizedOffers(ctx context.Context, cmd PersonalizedOffersCommand) (PersonalizedOffersResult, error) {
	if err := validateProductIDs(cmd.ViewedProductIDs); err != nil {
		return PersonalizedOffersResult{}, err
	}
	if cmd.ProductID != "" {
		if err := validateProductIDs([]string{cmd.ProductID}); err != nil {
			return PersonalizedOffersResult{}, err
		}
	}
	if cmd.Limit < 0 {
		return PersonalizedOffersResult{}, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, cmd.Limit)
	}

	segment := s.classifier.Classify(ctx, domain.VisitorSignal{
		UserID:           cmd.UserID,
		ViewedProductIDs: cmd.ViewedProductIDs,
	})
	step := s.selector.SelectStep(segment, cmd.ProductID, cmd.Position)

	var (
		products []domain.Product
		err      error
	)
	if step != nil {
		products, err = s.recommender.RecommendForStep(ctx, *step, cmd.Limit)
	} else {
		products, err = s.recommender.RecommendPersonalized(ctx, segment, cmd.ProductID, cmd.Limit)
	}
	if err != nil {
		return PersonalizedOffersResult{}, err
	}

	promotions := s.governor.Status().ShouldOfferPromotions
	result := PersonalizedOffersResult{
		Offers:       s.buildOffers(products, segment, promotions, false),
		Message:      s.clean(segment.MessageTemplate),
		CallToAction: defaultOfferCTA,
		Segment:      segment.ID,
	}
	if step != nil {
		result.CallToAction = s.clean(step.CallToAction)
	}

	s.metrics.RecordOffersServed(ctx, string(cmd.Position), len(result.Offers))
	s.logger(ctx, "offers.personalized", map[string]any{
		"segment":  segment.ID,
		"position": string(cmd.Position),
		"step":     stepID(step),
		"count":    len(result.Offers),
	})
	return result, nil
}

// GetCheckoutOffers produces last-chance offers, excluding anything already
// in the cart, priced on the checkout path.
func (s *FunnelOffersService) GetCheckoutOffers(ctx context.Context, cmd CheckoutOffersCommand) (CheckoutOffersResult, error) {
	if err := validateProductIDs(cmd.CartProductIDs); err != nil {
		return CheckoutOffersResult{}, err
	}
	if cmd.Limit < 0 {
		return CheckoutOffersResult{}, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, cmd.Limit)
	}

	visitor := domain.VisitorSignal{
		UserID:           cmd.UserID,
		ViewedProductIDs: cmd.CartProductIDs,
	}
	segment := s.classifier.Classify(ctx, visitor)

	trigger := ""
	if len(cmd.CartProductIDs) > 0 {
		trigger = cmd.CartProductIDs[0]
	}

	products, err := s.recommender.RecommendRelated(ctx, segment, visitor, trigger, cmd.Limit)
	if err != nil {
		return CheckoutOffersResult{}, err
	}
	products = excludeProducts(products, cmd.CartProductIDs)

	promotions := s.governor.Status().ShouldOfferPromotions
	offers := s.buildOffers(products, segment, promotions, true)

	cta := defaultCheckoutCTA
	message := s.clean(segment.MessageTemplate)
	if step := s.selector.SelectStep(segment, trigger, domain.PositionCheckout); step != nil {
		cta = s.clean(step.CallToAction)
		message = s.clean(step.Description)
	}
	for i := range offers {
		offers[i].Message = message
		offers[i].CallToAction = cta
	}

	s.metrics.RecordOffersServed(ctx, string(domain.PositionCheckout), len(offers))
	s.logger(ctx, "offers.checkout", map[string]any{
		"segment": segment.ID,
		"count":   len(offers),
	})
	return CheckoutOffersResult{Offers: offers}, nil
}

// GetUserSegment classifies without producing offers.
func (s *FunnelOffersService) GetUserSegment(ctx context.Context, userID string, browsingHistory []string) (UserSegmentResult, error) {
	if err := validateProductIDs(browsingHistory); err != nil {
		return UserSegmentResult{}, err
	}
	segment := s.classifier.Classify(ctx, domain.VisitorSignal{
		UserID:           userID,
		ViewedProductIDs: browsingHistory,
	})
	return UserSegmentResult{Segment: segment.ID, Name: segment.Name}, nil
}

// TrackProductViews acknowledges immediately and defers bookkeeping to the
// publisher. Publish failures are logged, never surfaced; the storefront
// must not block on analytics.
func (s *FunnelOffersService) TrackProductViews(ctx context.Context, sessionID string, productIDs []string) (TrackViewsResult, error) {
	visitor := domain.VisitorSignal{ViewedProductIDs: productIDs}
	distinct := visitor.DistinctViewed()
	if len(distinct) == 0 {
		return TrackViewsResult{}, fmt.Errorf("%w: no product ids to track", ErrInvalidInput)
	}
	if err := validateProductIDs(distinct); err != nil {
		return TrackViewsResult{}, err
	}

	jobID := "vt_" + ulid.Make().String()
	if s.publisher != nil {
		message := ViewTrackingMessage{
			JobID:      jobID,
			SessionID:  sessionID,
			ProductIDs: distinct,
			RecordedAt: s.clock().UTC(),
		}
		// Detached from the request so a closed connection cannot cancel
		// the publish.
		bg := context.WithoutCancel(ctx)
		go func() {
			publishCtx, cancel := context.WithTimeout(bg, 30*time.Second)
			defer cancel()
			if _, err := s.publisher.PublishViewTracking(publishCtx, message); err != nil {
				s.logger(publishCtx, "track.publish_failed", map[string]any{
					"jobId": jobID,
					"error": err.Error(),
				})
			}
		}()
	}

	s.logger(ctx, "track.views_accepted", map[string]any{
		"jobId": jobID,
		"count": len(distinct),
	})
	return TrackViewsResult{Success: true, Message: fmt.Sprintf("queued %d product views", len(distinct))}, nil
}

// RecordOrderRevenue feeds the governor and reports the resulting posture.
// Cap breaches are data, not errors.
func (s *FunnelOffersService) RecordOrderRevenue(ctx context.Context, orderID string, amountCents int64) (RecordRevenueResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return RecordRevenueResult{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if amountCents < 0 {
		return RecordRevenueResult{}, fmt.Errorf("%w: negative amount %d", ErrInvalidInput, amountCents)
	}

	within := s.governor.AddRevenue(amountCents)
	status := s.governor.Status()

	s.logger(ctx, "revenue.recorded", map[string]any{
		"orderId":      orderID,
		"amount":       amountCents,
		"withinLimits": within,
		"status":       status.Status,
	})
	return RecordRevenueResult{
		Success:           true,
		WithinLimits:      within,
		DailyPercentage:   status.DailyPercentage,
		MonthlyPercentage: status.MonthlyPercentage,
		RevenueStatus:     status.Status,
	}, nil
}

// buildOffers prices candidates for the segment. Discounted prices only
// appear while the governor allows promotions; otherwise the list price
// stands alone.
func (s *FunnelOffersService) buildOffers(products []domain.Product, segment domain.CustomerSegment, promotions bool, checkout bool) []Offer {
	offers := make([]Offer, 0, len(products))
	for _, product := range products {
		var quote PriceQuote
		if checkout {
			quote = s.pricing.CheckoutPrice(product, segment)
		} else {
			quote = s.pricing.PriceForSegment(product, segment)
		}

		offer := Offer{
			ID:            product.ID,
			Name:          s.clean(product.Name),
			Description:   s.clean(product.Description),
			Image:         product.ImageURL,
			OriginalPrice: quote.OriginalPrice,
		}
		if promotions && quote.DynamicPrice < quote.OriginalPrice {
			offer.OfferPrice = quote.DynamicPrice
			offer.DiscountPercentage = discountPercent(quote.OriginalPrice, quote.DynamicPrice)
		}
		offers = append(offers, offer)
	}
	return offers
}

func (s *FunnelOffersService) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func discountPercent(original, offer int64) float64 {
	if original <= 0 || offer >= original {
		return 0
	}
	pct := float64(original-offer) / float64(original) * 100
	return math.Round(pct*10) / 10
}

func excludeProducts(products []domain.Product, excludeIDs []string) []domain.Product {
	if len(excludeIDs) == 0 {
		return products
	}
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	kept := products[:0]
	for _, p := range products {
		if _, drop := excluded[p.ID]; !drop {
			kept = append(kept, p)
		}
	}
	return kept
}

func stepID(step *domain.FunnelStep) string {
	if step == nil {
		return ""
	}
	return step.ID
}

// validateProductIDs rejects malformed id lists before they reach core
// logic. Empty lists are fine; empty or oversized entries are not.
func validateProductIDs(ids []string) error {
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return fmt.Errorf("%w: blank product id", ErrInvalidInput)
		}
		if len(trimmed) > maxProductIDLength {
			return fmt.Errorf("%w: product id exceeds %d characters", ErrInvalidInput, maxProductIDLength)
		}
		if strings.ContainsAny(trimmed, " \t\r\n") {
			return fmt.Errorf("%w: product id contains whitespace", ErrInvalidInput)
		}
	}
	return nil
}
