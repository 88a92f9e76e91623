package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/summit-offroad/api/internal/domain"
	"github.com/summit-offroad/api/internal/oracle"
	"github.com/summit-offroad/api/internal/platform/observability"
	"github.com/summit-offroad/api/internal/repositories"
)

// Cap on per-request catalog lookups while building a profile or counting
// categories. Anything beyond this adds latency without changing the outcome.
const maxProfileLookups = 12

// SegmentServiceDeps wires the classifier's collaborators.
type SegmentServiceDeps struct {
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository
	Oracle   oracle.RankingOracle
	Metrics  *observability.FunnelMetrics
	Logger   EventLogger
	Clock    func() time.Time
}

// SegmentService resolves a visitor's segment. The oracle path runs first
// when configured and the signal is non-trivial; every other path is
// deterministic over the static catalog.
type SegmentService struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	oracle   oracle.RankingOracle
	metrics  *observability.FunnelMetrics
	logger   EventLogger
	clock    func() time.Time
	segments []domain.CustomerSegment
}

// NewSegmentService constructs the classifier.
func NewSegmentService(deps SegmentServiceDeps) (*SegmentService, error) {
	if deps.Products == nil {
		return nil, ErrProductRepositoryMissing
	}
	if deps.Logger == nil {
		deps.Logger = noopEventLogger
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &SegmentService{
		products: deps.Products,
		orders:   deps.Orders,
		oracle:   deps.Oracle,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		clock:    deps.Clock,
		segments: domain.Segments(),
	}, nil
}

// Classify resolves the visitor's segment. It never fails: oracle and
// repository problems degrade to the rule-based paths inside the call.
func (s *SegmentService) Classify(ctx context.Context, visitor domain.VisitorSignal) domain.CustomerSegment {
	visitor = s.withOrderHistory(ctx, visitor)

	viewed := visitor.DistinctViewed()
	if s.oracle != nil && (len(viewed) > 0 || len(visitor.PurchaseHistoryProductIDs) > 0) {
		if segment, ok := s.classifyWithOracle(ctx, visitor, viewed); ok {
			return segment
		}
	}
	return s.classifyByRules(ctx, visitor, viewed)
}

// withOrderHistory backfills purchase history from the order store when the
// caller supplied a user id but no explicit history.
func (s *SegmentService) withOrderHistory(ctx context.Context, visitor domain.VisitorSignal) domain.VisitorSignal {
	if s.orders == nil || visitor.UserID == "" || len(visitor.PurchaseHistoryProductIDs) > 0 {
		return visitor
	}
	orders, err := s.orders.ListByUser(ctx, visitor.UserID)
	if err != nil {
		// Missing history only weakens the signal; classification proceeds.
		s.logger(ctx, "segmentation.orders_unavailable", map[string]any{
			"userId": visitor.UserID,
			"error":  err.Error(),
		})
		return visitor
	}
	for _, order := range orders {
		visitor.PurchaseHistoryProductIDs = append(visitor.PurchaseHistoryProductIDs, order.ProductIDs...)
	}
	return visitor
}

func (s *SegmentService) classifyWithOracle(ctx context.Context, visitor domain.VisitorSignal, viewed []string) (domain.CustomerSegment, bool) {
	profile := s.buildProfile(ctx, visitor, viewed)

	name, err := s.oracle.ClassifySegment(ctx, profile)
	if err != nil {
		s.metrics.RecordOracleFallback(ctx, "classify")
		s.logger(ctx, "segmentation.oracle_fallback", map[string]any{"error": err.Error()})
		return domain.CustomerSegment{}, false
	}
	segment, ok := domain.SegmentByName(name)
	if !ok {
		s.metrics.RecordOracleFallback(ctx, "classify")
		s.logger(ctx, "segmentation.oracle_unrecognised", map[string]any{"answer": name})
		return domain.CustomerSegment{}, false
	}
	s.logger(ctx, "segmentation.oracle_match", map[string]any{"segment": segment.ID})
	return segment, true
}

// buildProfile serialises the behavioural signal into the natural-language
// profile the oracle classifies. The allowed segment names are embedded so
// the answer can be validated against the catalog.
func (s *SegmentService) buildProfile(ctx context.Context, visitor domain.VisitorSignal, viewed []string) string {
	var names []string
	categoryCounts := map[int]int{}
	for i, id := range viewed {
		if i >= maxProfileLookups {
			break
		}
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			continue
		}
		names = append(names, product.Name)
		categoryCounts[product.CategoryID]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Segments: %s.\n", strings.Join(s.segmentNames(), ", "))
	fmt.Fprintf(&b, "Visitor viewed %d distinct products", len(viewed))
	if len(names) > 0 {
		fmt.Fprintf(&b, ", including: %s", strings.Join(names, "; "))
	}
	b.WriteString(".\n")
	if len(categoryCounts) > 0 {
		fmt.Fprintf(&b, "Category spread: %v.\n", categoryCounts)
	}
	fmt.Fprintf(&b, "Completed purchases: %d products.\n", len(visitor.PurchaseHistoryProductIDs))
	fmt.Fprintf(&b, "Abandoned cart items: %d.\n", len(visitor.CartAbandonProductIDs))
	if visitor.Device != "" {
		fmt.Fprintf(&b, "Device: %s.\n", visitor.Device)
	}
	if visitor.Referrer != "" {
		fmt.Fprintf(&b, "Referrer: %s.\n", visitor.Referrer)
	}
	return b.String()
}

func (s *SegmentService) segmentNames() []string {
	names := make([]string, 0, len(s.segments))
	for _, segment := range s.segments {
		names = append(names, segment.Name)
	}
	return names
}

// classifyByRules is the deterministic fallback. Rules apply in strict
// priority order; the category-affinity path only applies to anonymous
// visitors with view history.
func (s *SegmentService) classifyByRules(ctx context.Context, visitor domain.VisitorSignal, viewed []string) domain.CustomerSegment {
	switch {
	case len(visitor.PurchaseHistoryProductIDs) > 0:
		return s.segmentByID(domain.SegmentReturningCustomer)
	case len(visitor.CartAbandonProductIDs) > 0:
		return s.segmentByID(domain.SegmentPriceSensitive)
	case len(viewed) > 5:
		return s.segmentByID(domain.SegmentFeatureFocused)
	case visitor.UserID == "" && len(viewed) > 0:
		return s.classifyByCategory(ctx, viewed)
	default:
		return s.segmentByID(domain.SegmentNewVisitor)
	}
}

// classifyByCategory maps the most-viewed product category to a segment.
// Ties break toward the category seen first in the view history.
func (s *SegmentService) classifyByCategory(ctx context.Context, viewed []string) domain.CustomerSegment {
	counts := map[int]int{}
	var firstSeen []int
	for i, id := range viewed {
		if i >= maxProfileLookups {
			break
		}
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			if !repositories.IsNotFound(err) {
				s.logger(ctx, "segmentation.catalog_unavailable", map[string]any{"productId": id, "error": err.Error()})
			}
			continue
		}
		if _, seen := counts[product.CategoryID]; !seen {
			firstSeen = append(firstSeen, product.CategoryID)
		}
		counts[product.CategoryID]++
	}
	if len(firstSeen) == 0 {
		return s.segmentByID(domain.SegmentNewVisitor)
	}

	best := firstSeen[0]
	for _, categoryID := range firstSeen[1:] {
		if counts[categoryID] > counts[best] {
			best = categoryID
		}
	}
	return domain.SegmentForCategory(best)
}

func (s *SegmentService) segmentByID(id string) domain.CustomerSegment {
	if segment, ok := domain.SegmentByID(id); ok {
		return segment
	}
	// The catalog always carries the new-visitor segment.
	segment, _ := domain.SegmentByID(domain.SegmentNewVisitor)
	return segment
}
