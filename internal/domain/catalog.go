package domain

import "strings"

// Product category identifiers shared with the storefront database.
const (
	CategoryWheels      = 1
	CategorySuspension  = 2
	CategoryDrivetrain  = 3
	CategoryPerformance = 4
	CategoryStorage     = 5
	CategoryAudio       = 6
	CategoryImplements  = 7
	CategoryLighting    = 8
)

// Segment identifiers. The catalog below is the only source of truth; these
// constants exist so services never spell ids inline.
const (
	SegmentNewVisitor        = "new_visitor"
	SegmentReturningCustomer = "returning_customer"
	SegmentPriceSensitive    = "price_sensitive"
	SegmentFeatureFocused    = "feature_focused"
	SegmentMudEnthusiast     = "mud_enthusiast"
)

var segmentCatalog = []CustomerSegment{
	{
		ID:               SegmentNewVisitor,
		Name:             "New UTV Owner",
		Description:      "First-time visitors and fresh machine owners getting set up.",
		TargetProductIDs: []string{"sx-1010", "sx-1020", "sx-5010"},
		Discount:         DiscountPercentage,
		DiscountValue:    10,
		ConversionRate:   0.08,
		MessageTemplate:  "Welcome aboard! Here's what most new owners bolt on first.",
	},
	{
		ID:               SegmentReturningCustomer,
		Name:             "Returning Rider",
		Description:      "Shoppers with at least one completed order.",
		TargetProductIDs: []string{"sx-3010", "sx-4010", "sx-4020"},
		Discount:         DiscountPercentage,
		DiscountValue:    5,
		ConversionRate:   0.22,
		MessageTemplate:  "Good to see you back. These pair well with your last build.",
	},
	{
		ID:               SegmentPriceSensitive,
		Name:             "Value Builder",
		Description:      "Abandoned a cart or shops utility/storage categories on a budget.",
		TargetProductIDs: []string{"sx-5010", "sx-5020", "sx-7010"},
		Discount:         DiscountFixed,
		DiscountValue:    2500,
		ConversionRate:   0.12,
		MessageTemplate:  "Still thinking it over? These picks stretch every dollar.",
	},
	{
		ID:               SegmentFeatureFocused,
		Name:             "Performance Enthusiast",
		Description:      "Researches heavily across drivetrain and engine upgrades.",
		TargetProductIDs: []string{"sx-3010", "sx-3020", "sx-4010"},
		Discount:         DiscountBundle,
		DiscountValue:    15,
		ConversionRate:   0.18,
		MessageTemplate:  "Chasing horsepower? Riders who compared these bought together.",
	},
	{
		ID:               SegmentMudEnthusiast,
		Name:             "Mud & Trail Enthusiast",
		Description:      "Rides hard: suspension, wheels, and trail electronics.",
		TargetProductIDs: []string{"sx-2010", "sx-2020", "sx-1010"},
		Discount:         DiscountPercentage,
		DiscountValue:    8,
		ConversionRate:   0.16,
		MessageTemplate:  "Built for the pit. Gear that survives what you put it through.",
	},
}

// Segments returns the static segment catalog in declaration order.
func Segments() []CustomerSegment {
	out := make([]CustomerSegment, len(segmentCatalog))
	copy(out, segmentCatalog)
	return out
}

// SegmentByID looks up a segment by id.
func SegmentByID(id string) (CustomerSegment, bool) {
	for _, s := range segmentCatalog {
		if s.ID == id {
			return s, true
		}
	}
	return CustomerSegment{}, false
}

// SegmentByName looks up a segment by human name, case-insensitively. Used to
// validate oracle classifications, which answer with names rather than ids.
func SegmentByName(name string) (CustomerSegment, bool) {
	name = strings.TrimSpace(name)
	for _, s := range segmentCatalog {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.ID, name) {
			return s, true
		}
	}
	return CustomerSegment{}, false
}

// categorySegments maps a visitor's dominant browsing category to a segment
// when no user id is available.
var categorySegments = map[int]string{
	CategoryWheels:      SegmentMudEnthusiast,
	CategorySuspension:  SegmentMudEnthusiast,
	CategoryAudio:       SegmentMudEnthusiast,
	CategoryDrivetrain:  SegmentFeatureFocused,
	CategoryPerformance: SegmentFeatureFocused,
	CategoryStorage:     SegmentPriceSensitive,
	CategoryImplements:  SegmentPriceSensitive,
}

// SegmentForCategory resolves the behaviour-based segment for a product
// category; unmapped categories land on the new-visitor segment.
func SegmentForCategory(categoryID int) CustomerSegment {
	if id, ok := categorySegments[categoryID]; ok {
		if segment, found := SegmentByID(id); found {
			return segment
		}
	}
	segment, _ := SegmentByID(SegmentNewVisitor)
	return segment
}

var funnelStepCatalog = []FunnelStep{
	{
		ID:               "pp-axle-protect",
		Name:             "Axle & Driveline Protection",
		Description:      "Boots and guards for riders eyeing drivetrain parts.",
		CallToAction:     "Protect your investment",
		Position:         PositionProductPage,
		OfferType:        OfferCrossSell,
		TargetSegmentIDs: []string{SegmentNewVisitor, SegmentFeatureFocused},
		ConversionRate:   0.28,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-3010", "sx-3020"},
			OfferProductIDs:   []string{"sx-3030", "sx-3040", "sx-8010"},
		},
	},
	{
		ID:               "pp-lift-bundle",
		Name:             "Lift Kit Trail Bundle",
		Description:      "Suspension buyers almost always need arched arms and tires.",
		CallToAction:     "Complete the lift",
		Position:         PositionProductPage,
		OfferType:        OfferBundle,
		TargetSegmentIDs: []string{SegmentMudEnthusiast, SegmentReturningCustomer},
		ConversionRate:   0.24,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-2010", "sx-2020"},
			OfferProductIDs:   []string{"sx-1010", "sx-1020", "sx-2030"},
		},
	},
	{
		ID:               "pp-starter-kit",
		Name:             "New Owner Starter Kit",
		Description:      "Generic product-page fallback for first-time visitors.",
		CallToAction:     "See what riders add first",
		Position:         PositionProductPage,
		OfferType:        OfferCrossSell,
		TargetSegmentIDs: []string{SegmentNewVisitor},
		ConversionRate:   0.15,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-1010"},
			OfferProductIDs:   []string{"sx-5010", "sx-8010", "sx-6010"},
		},
	},
	{
		ID:               "cart-winch-upsell",
		Name:             "Winch Upgrade",
		Description:      "Upsell a synthetic-rope winch when recovery gear is carted.",
		CallToAction:     "Upgrade your recovery setup",
		Position:         PositionCart,
		OfferType:        OfferUpsell,
		TargetSegmentIDs: []string{SegmentMudEnthusiast, SegmentFeatureFocused, SegmentReturningCustomer},
		ConversionRate:   0.19,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-7010", "sx-7020"},
			OfferProductIDs:   []string{"sx-7030", "sx-7040"},
		},
	},
	{
		ID:               "cart-value-addons",
		Name:             "Budget Add-ons",
		Description:      "Low-ticket add-ons that keep price-watchers moving.",
		CallToAction:     "Add for less",
		Position:         PositionCart,
		OfferType:        OfferDiscount,
		TargetSegmentIDs: []string{SegmentPriceSensitive, SegmentNewVisitor},
		ConversionRate:   0.14,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-5010", "sx-5020"},
			OfferProductIDs:   []string{"sx-8010", "sx-8020", "sx-5030"},
		},
	},
	{
		ID:               "checkout-install-gear",
		Name:             "Install Day Essentials",
		Description:      "Last-chance consumables before payment.",
		CallToAction:     "Don't forget install day",
		Position:         PositionCheckout,
		OfferType:        OfferCrossSell,
		TargetSegmentIDs: []string{SegmentNewVisitor, SegmentReturningCustomer, SegmentPriceSensitive, SegmentFeatureFocused, SegmentMudEnthusiast},
		ConversionRate:   0.11,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-2010", "sx-3010", "sx-4010"},
			OfferProductIDs:   []string{"sx-8030", "sx-8040"},
		},
	},
	{
		ID:               "post-maintenance-plan",
		Name:             "First Service Reminder",
		Description:      "Post-purchase cross-sell of maintenance consumables.",
		CallToAction:     "Stock up for the first service",
		Position:         PositionOrderConfirmation,
		OfferType:        OfferCrossSell,
		TargetSegmentIDs: []string{SegmentReturningCustomer, SegmentNewVisitor},
		ConversionRate:   0.09,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{"sx-4010", "sx-4020"},
			OfferProductIDs:   []string{"sx-4030", "sx-4040"},
		},
	},
	{
		ID:               "browse-featured-drop",
		Name:             "Featured Gear Drop",
		Description:      "Browsing-position banner fed by featured products.",
		CallToAction:     "Shop the drop",
		Position:         PositionBrowsing,
		OfferType:        OfferDiscount,
		TargetSegmentIDs: []string{SegmentNewVisitor, SegmentPriceSensitive, SegmentMudEnthusiast},
		ConversionRate:   0.07,
		Associations: ProductAssociations{
			TriggerProductIDs: []string{},
			OfferProductIDs:   []string{"sx-1010", "sx-2010", "sx-5010"},
		},
	},
}

// FunnelSteps returns the static funnel-step catalog in declaration order.
// Declaration order is the documented tie-break for equal conversion rates.
func FunnelSteps() []FunnelStep {
	out := make([]FunnelStep, len(funnelStepCatalog))
	copy(out, funnelStepCatalog)
	return out
}

var pricingRuleCatalog = []PricingRule{
	{SegmentID: SegmentReturningCustomer, CategoryID: CategoryDrivetrain, BaseMarkupPercentage: 40, MinimumMarginPercentage: 25, PopularityBoost: 5, LowInventoryBoost: 8},
	{SegmentID: SegmentReturningCustomer, CategoryID: CategoryPerformance, BaseMarkupPercentage: 45, MinimumMarginPercentage: 25, PopularityBoost: 5, LowInventoryBoost: 6},
	{SegmentID: SegmentFeatureFocused, CategoryID: CategoryDrivetrain, BaseMarkupPercentage: 48, MinimumMarginPercentage: 30, PopularityBoost: 6, LowInventoryBoost: 8},
	{SegmentID: SegmentFeatureFocused, CategoryID: CategoryPerformance, BaseMarkupPercentage: 50, MinimumMarginPercentage: 30, PopularityBoost: 8, LowInventoryBoost: 10},
	{SegmentID: SegmentMudEnthusiast, CategoryID: CategorySuspension, BaseMarkupPercentage: 46, MinimumMarginPercentage: 28, PopularityBoost: 6, LowInventoryBoost: 9},
	{SegmentID: SegmentMudEnthusiast, CategoryID: CategoryWheels, BaseMarkupPercentage: 42, MinimumMarginPercentage: 26, PopularityBoost: 5, LowInventoryBoost: 7},
	{SegmentID: SegmentPriceSensitive, CategoryID: CategoryStorage, BaseMarkupPercentage: 32, MinimumMarginPercentage: 20, PopularityBoost: 3, LowInventoryBoost: 4},
	{SegmentID: SegmentNewVisitor, CategoryID: CategoryLighting, BaseMarkupPercentage: 38, MinimumMarginPercentage: 22, PopularityBoost: 4, LowInventoryBoost: 5},
}

// PricingRules returns the static pricing-rule catalog.
func PricingRules() []PricingRule {
	out := make([]PricingRule, len(pricingRuleCatalog))
	copy(out, pricingRuleCatalog)
	return out
}
