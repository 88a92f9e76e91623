package services

import (
	"math"

	domain "github.com/summit-offroad/api/internal/domain"
)

// Cost basis estimate when the catalog carries no explicit cost.
const assumedCostRatio = 0.6

// Checkout-path bounds. These are contractual values, not tuning knobs.
const (
	scarcityFloor = 0.90
	scarcityCeil  = 1.10
	demandFloor   = 0.95
	demandCeil    = 1.15
	checkoutFloor = 0.90
	checkoutCeil  = 1.15
)

// defaultSegmentMultipliers is the flat per-segment factor for the checkout
// path, kept within [0.95, 1.05].
var defaultSegmentMultipliers = map[string]float64{
	domain.SegmentNewVisitor:        0.97,
	domain.SegmentReturningCustomer: 0.98,
	domain.SegmentPriceSensitive:    0.95,
	domain.SegmentFeatureFocused:    1.02,
	domain.SegmentMudEnthusiast:     1.05,
}

// PricingEngineDeps wires the engine's rule table and multipliers; zero
// values fall back to the built-in catalogs.
type PricingEngineDeps struct {
	Rules              []domain.PricingRule
	SegmentMultipliers map[string]float64
	Logger             EventLogger
}

type ruleKey struct {
	segmentID  string
	categoryID int
}

// StandardPricingEngine implements both pricing paths.
//
// The two formulas are intentionally separate. PriceForSegment is the
// rule-table path used for catalog and offer pricing: it rebuilds the price
// from an estimated cost basis with a hard margin floor. CheckoutPrice is
// the multiplier path used at checkout time: it perturbs the list price
// within a clamped window and has no cost model. They take different inputs,
// honour different bounds, and serve different call sites; merging them
// would change observable prices on both surfaces.
type StandardPricingEngine struct {
	rules       map[ruleKey]domain.PricingRule
	multipliers map[string]float64
	logger      EventLogger
}

// NewPricingEngine constructs the engine. The rule table holds at most one
// rule per (segment, category) pair; later duplicates are ignored.
func NewPricingEngine(deps PricingEngineDeps) *StandardPricingEngine {
	rules := deps.Rules
	if len(rules) == 0 {
		rules = domain.PricingRules()
	}
	indexed := make(map[ruleKey]domain.PricingRule, len(rules))
	for _, rule := range rules {
		key := ruleKey{segmentID: rule.SegmentID, categoryID: rule.CategoryID}
		if _, dup := indexed[key]; !dup {
			indexed[key] = rule
		}
	}

	multipliers := deps.SegmentMultipliers
	if len(multipliers) == 0 {
		multipliers = defaultSegmentMultipliers
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopEventLogger
	}
	return &StandardPricingEngine{rules: indexed, multipliers: multipliers, logger: logger}
}

// PriceForSegment applies the (segment, category) rule with a minimum-margin
// floor. Without a matching rule the price passes through unmodified.
func (e *StandardPricingEngine) PriceForSegment(product domain.Product, segment domain.CustomerSegment) PriceQuote {
	rule, ok := e.rules[ruleKey{segmentID: segment.ID, categoryID: product.CategoryID}]
	if !ok {
		return PriceQuote{OriginalPrice: product.Price, DynamicPrice: product.Price}
	}

	base := float64(product.Price)
	cost := base * assumedCostRatio

	calculated := cost * (1 + rule.BaseMarkupPercentage/100)
	if product.IsPopular {
		calculated *= 1 + rule.PopularityBoost/100
	}
	if product.InventoryCount < 10 {
		calculated *= 1 + rule.LowInventoryBoost/100
	}
	if floor := cost * (1 + rule.MinimumMarginPercentage/100); calculated < floor {
		calculated = floor
	}

	return PriceQuote{
		OriginalPrice: product.Price,
		DynamicPrice:  domain.PsychologicalPrice(int64(calculated)),
	}
}

// CheckoutPrice applies the flat segment multiplier with bounded scarcity
// and demand factors, clamped to [0.9, 1.15] of the list price.
func (e *StandardPricingEngine) CheckoutPrice(product domain.Product, segment domain.CustomerSegment) PriceQuote {
	base := float64(product.Price)
	if base <= 0 {
		return PriceQuote{OriginalPrice: product.Price, DynamicPrice: product.Price}
	}

	multiplier, ok := e.multipliers[segment.ID]
	if !ok {
		multiplier = 1.0
	}

	price := base * multiplier * scarcityFactor(product.InventoryCount) * demandFactor(product)
	price = math.Max(price, base*checkoutFloor)
	price = math.Min(price, base*checkoutCeil)

	return PriceQuote{
		OriginalPrice: product.Price,
		DynamicPrice:  domain.PsychologicalPrice(int64(price)),
	}
}

func scarcityFactor(inventory int) float64 {
	switch {
	case inventory < 5:
		return scarcityCeil
	case inventory < 10:
		return 1.05
	case inventory < 25:
		return 1.0
	case inventory < 100:
		return 0.95
	default:
		return scarcityFloor
	}
}

func demandFactor(product domain.Product) float64 {
	if product.ReviewCount == 0 {
		return demandFloor
	}
	factor := 1.0
	if product.IsPopular {
		factor += 0.10
	}
	if product.Rating >= 4.5 {
		factor += 0.05
	}
	return math.Min(math.Max(factor, demandFloor), demandCeil)
}
