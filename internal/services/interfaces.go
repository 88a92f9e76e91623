// Package services holds the funnel decision logic: segmentation, step
// selection, recommendation resolution, dynamic pricing, and the revenue
// governor.
package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/summit-offroad/api/internal/domain"
)

var (
	// ErrInvalidInput signals malformed request data such as a negative limit.
	ErrInvalidInput = errors.New("funnel: invalid input")
	// ErrProductRepositoryMissing signals a wiring mistake at construction time.
	ErrProductRepositoryMissing = errors.New("funnel: product repository is required")
)

// EventLogger is the narrow logging hook services accept; wired to zap via
// observability.ServiceLogger in production and to a recorder in tests.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func noopEventLogger(context.Context, string, map[string]any) {}

// SegmentClassifier maps behavioural signals to one catalog segment. The
// classification never fails: every degraded path lands on a rule-based
// fallback inside the call.
type SegmentClassifier interface {
	Classify(ctx context.Context, visitor domain.VisitorSignal) domain.CustomerSegment
}

// FunnelStepSelector picks the best-converting step for a segment at a
// funnel position. A nil step is a valid outcome meaning "no offer".
type FunnelStepSelector interface {
	SelectStep(segment domain.CustomerSegment, triggerProductID string, position domain.FunnelPosition) *domain.FunnelStep
}

// RecommendationResolver produces ordered product candidates. All three
// entry modes cap their result at limit, deduplicate, and never include the
// trigger product.
type RecommendationResolver interface {
	// RecommendForStep resolves a funnel step's offer list, sorted by
	// descending margin percentage.
	RecommendForStep(ctx context.Context, step domain.FunnelStep, limit int) ([]domain.Product, error)
	// RecommendPersonalized merges segment targets with the trigger's
	// category, sorted by target membership, popularity, then rating.
	RecommendPersonalized(ctx context.Context, segment domain.CustomerSegment, triggerProductID string, limit int) ([]domain.Product, error)
	// RecommendRelated is the oracle-assisted path with the deterministic
	// same-category / complementary / top-rated fallback chain.
	RecommendRelated(ctx context.Context, segment domain.CustomerSegment, visitor domain.VisitorSignal, triggerProductID string, limit int) ([]domain.Product, error)
}

// PriceQuote carries both the list price and the segment-adjusted price, in
// cents.
type PriceQuote struct {
	OriginalPrice int64
	DynamicPrice  int64
}

// PricingEngine computes segment-adjusted prices. The two methods are
// deliberately separate formulas with different bounds and inputs; see the
// engine documentation before attempting to merge them.
type PricingEngine interface {
	// PriceForSegment applies the (segment, category) pricing-rule table
	// with a minimum-margin floor. Used for catalog and offer pricing.
	PriceForSegment(product domain.Product, segment domain.CustomerSegment) PriceQuote
	// CheckoutPrice applies a flat segment multiplier with bounded scarcity
	// and demand factors, clamped to [0.9, 1.15] of base. Used at checkout.
	CheckoutPrice(product domain.Product, segment domain.CustomerSegment) PriceQuote
}

// RevenueStatus reports promotional posture derived from revenue counters.
type RevenueStatus struct {
	Status                string
	AdSpendMultiplier     float64
	ShouldOfferPromotions bool
	DailyPercentage       float64
	MonthlyPercentage     float64
}

// RevenueGovernor tracks cumulative revenue against daily/monthly caps.
// State is in-memory only; persistence across restarts is a possible future
// extension, not a requirement.
type RevenueGovernor interface {
	// AddRevenue records an order amount and reports whether both counters
	// remain within their caps.
	AddRevenue(amount int64) bool
	// Status buckets the worse of the daily/monthly percentages against the
	// contractual thresholds.
	Status() RevenueStatus
}

// ViewTrackingMessage is the payload delivered to the background worker that
// performs view bookkeeping.
type ViewTrackingMessage struct {
	JobID      string    `json:"jobId"`
	SessionID  string    `json:"sessionId,omitempty"`
	ProductIDs []string  `json:"productIds"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ViewTrackingPublisher enqueues view-tracking messages for deferred
// processing.
type ViewTrackingPublisher interface {
	PublishViewTracking(ctx context.Context, message ViewTrackingMessage) (string, error)
}

// Offer is one storefront-facing offer row.
type Offer struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Image              string  `json:"image,omitempty"`
	Message            string  `json:"message,omitempty"`
	CallToAction       string  `json:"cta,omitempty"`
	OriginalPrice      int64   `json:"originalPrice"`
	OfferPrice         int64   `json:"offerPrice,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
}

// PersonalizedOffersCommand asks for offers at a funnel position.
type PersonalizedOffersCommand struct {
	ProductID        string
	ViewedProductIDs []string
	UserID           string
	SessionID        string
	Position         domain.FunnelPosition
	Limit            int
}

// PersonalizedOffersResult is the payload for the storefront offer widget.
type PersonalizedOffersResult struct {
	Offers       []Offer `json:"offers"`
	Message      string  `json:"message"`
	CallToAction string  `json:"cta"`
	Segment      string  `json:"segment"`
}

// CheckoutOffersCommand asks for last-chance offers for a cart.
type CheckoutOffersCommand struct {
	CartProductIDs []string
	UserID         string
	SessionID      string
	Limit          int
}

// CheckoutOffersResult lists offers excluding anything already in the cart.
type CheckoutOffersResult struct {
	Offers []Offer `json:"offers"`
}

// UserSegmentResult names the resolved segment.
type UserSegmentResult struct {
	Segment string `json:"segment"`
	Name    string `json:"name"`
}

// TrackViewsResult acknowledges a fire-and-forget tracking call.
type TrackViewsResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecordRevenueResult reports governor state after recording an order.
type RecordRevenueResult struct {
	Success           bool    `json:"success"`
	WithinLimits      bool    `json:"withinLimits"`
	DailyPercentage   float64 `json:"dailyPercentage"`
	MonthlyPercentage float64 `json:"monthlyPercentage"`
	RevenueStatus     string  `json:"revenueStatus"`
}

// OffersService is the surface the HTTP layer consumes.
type OffersService interface {
	GetPersonalizedOffers(ctx context.Context, cmd PersonalizedOffersCommand) (PersonalizedOffersResult, error)
	GetCheckoutOffers(ctx context.Context, cmd CheckoutOffersCommand) (CheckoutOffersResult, error)
	GetUserSegment(ctx context.Context, userID string, browsingHistory []string) (UserSegmentResult, error)
	TrackProductViews(ctx context.Context, sessionID string, productIDs []string) (TrackViewsResult, error)
	RecordOrderRevenue(ctx context.Context, orderID string, amountCents int64) (RecordRevenueResult, error)
}
