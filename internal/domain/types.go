package domain

import (
	"strings"
	"time"
)

// FunnelPosition identifies where in the shopping journey an offer is shown.
type FunnelPosition string

const (
	PositionBrowsing          FunnelPosition = "browsing"
	PositionProductPage       FunnelPosition = "product_page"
	PositionCart              FunnelPosition = "cart"
	PositionCheckout          FunnelPosition = "checkout"
	PositionOrderConfirmation FunnelPosition = "order_confirmation"
)

// ParsePosition normalises a wire value into a FunnelPosition, defaulting to browsing.
func ParsePosition(value string) FunnelPosition {
	switch FunnelPosition(strings.ToLower(strings.TrimSpace(value))) {
	case PositionProductPage:
		return PositionProductPage
	case PositionCart:
		return PositionCart
	case PositionCheckout:
		return PositionCheckout
	case PositionOrderConfirmation:
		return PositionOrderConfirmation
	default:
		return PositionBrowsing
	}
}

// OfferType categorises what a funnel step proposes to the shopper.
type OfferType string

const (
	OfferCrossSell OfferType = "cross_sell"
	OfferUpsell    OfferType = "upsell"
	OfferBundle    OfferType = "bundle"
	OfferDiscount  OfferType = "discount"
)

// DiscountStrategy describes how a segment's discount value is applied.
type DiscountStrategy string

const (
	DiscountNone       DiscountStrategy = "none"
	DiscountPercentage DiscountStrategy = "percentage"
	DiscountFixed      DiscountStrategy = "fixed"
	DiscountBundle     DiscountStrategy = "bundle"
)

// CustomerSegment is immutable reference data describing one visitor category.
// DiscountValue is percentage points for the percentage strategy and cents
// for the fixed strategy.
type CustomerSegment struct {
	ID               string
	Name             string
	Description      string
	TargetProductIDs []string
	Discount         DiscountStrategy
	DiscountValue    float64
	ConversionRate   float64
	MessageTemplate  string
}

// TargetsProduct reports whether the segment's target list contains the product.
func (s CustomerSegment) TargetsProduct(productID string) bool {
	for _, id := range s.TargetProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// ProductAssociations binds a funnel step to the products that trigger it and
// the products it offers, in offer order.
type ProductAssociations struct {
	TriggerProductIDs []string
	OfferProductIDs   []string
}

// Triggers reports whether the product id is one of the step's triggers.
func (a ProductAssociations) Triggers(productID string) bool {
	for _, id := range a.TriggerProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// FunnelStep is immutable reference data describing one positioned,
// segment-targeted offer definition.
type FunnelStep struct {
	ID               string
	Name             string
	Description      string
	CallToAction     string
	Position         FunnelPosition
	OfferType        OfferType
	TargetSegmentIDs []string
	ConversionRate   float64
	Associations     ProductAssociations
}

// TargetsSegment reports whether the step applies to the given segment.
func (s FunnelStep) TargetsSegment(segmentID string) bool {
	for _, id := range s.TargetSegmentIDs {
		if id == segmentID {
			return true
		}
	}
	return false
}

// PricingRule adjusts prices for one (segment, category) pair. All
// percentages are whole points (40 means +40%).
type PricingRule struct {
	SegmentID               string
	CategoryID              int
	BaseMarkupPercentage    float64
	MinimumMarginPercentage float64
	PopularityBoost         float64
	LowInventoryBoost       float64
}

// Product is the catalog view the funnel core consumes. Prices are cents;
// CompareAtPrice is zero when the product has no reference price.
type Product struct {
	ID             string
	Name           string
	Description    string
	Price          int64
	CompareAtPrice int64
	CategoryID     int
	BrandID        string
	ImageURL       string
	InventoryCount int
	IsPopular      bool
	Rating         float64
	ReviewCount    int
}

// MarginPercent is the offer-sort key (price - compareAtPrice) / price.
// A missing compare-at price counts as zero, which ranks the product first.
func (p Product) MarginPercent() float64 {
	if p.Price <= 0 {
		return 0
	}
	return float64(p.Price-p.CompareAtPrice) / float64(p.Price)
}

// Order is the slice of order data segmentation needs: who bought what.
type Order struct {
	ID         string
	UserID     string
	Total      int64
	ProductIDs []string
	CreatedAt  time.Time
}

// VisitorSignal is the ephemeral, per-request behavioural input to
// classification. It is never persisted by the core.
type VisitorSignal struct {
	UserID                    string
	ViewedProductIDs          []string
	CartAbandonProductIDs     []string
	PurchaseHistoryProductIDs []string
	Device                    string
	Referrer                  string
}

// DistinctViewed returns the viewed product ids with duplicates removed,
// preserving first-seen order.
func (v VisitorSignal) DistinctViewed() []string {
	if len(v.ViewedProductIDs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(v.ViewedProductIDs))
	out := make([]string, 0, len(v.ViewedProductIDs))
	for _, id := range v.ViewedProductIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PsychologicalPrice truncates to whole dollars and prices at .99.
func PsychologicalPrice(cents int64) int64 {
	if cents <= 0 {
		return cents
	}
	return (cents/100)*100 + 99
}
