package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	domain "github.com/summit-offroad/api/internal/domain"
	"github.com/summit-offroad/api/internal/oracle"
	"github.com/summit-offroad/api/internal/platform/cache"
	"github.com/summit-offroad/api/internal/platform/observability"
	"github.com/summit-offroad/api/internal/repositories"
)

const (
	// DefaultOfferLimit applies when the caller does not ask for a count.
	DefaultOfferLimit = 3

	// How far the complementary filter lets a price drift from the trigger.
	complementaryPriceBand = 0.30

	// Pool sizes for the rule-based fallback. Wide enough to fill any
	// realistic limit after filtering.
	sameCategoryPool = 12
	featuredPool     = 50
)

// RecommendationServiceDeps wires the resolver's collaborators. Both caches
// are optional; nil disables memoization for that tier.
type RecommendationServiceDeps struct {
	Products    repositories.ProductRepository
	Oracle      oracle.RankingOracle
	Cache       *cache.Store
	OracleCache *cache.Store
	Metrics     *observability.FunnelMetrics
	Logger      EventLogger
}

// RecommendationService resolves product candidates for offers. The oracle
// path is best-effort; the rule-based chain always stands behind it.
type RecommendationService struct {
	products    repositories.ProductRepository
	oracle      oracle.RankingOracle
	cache       *cache.Store
	oracleCache *cache.Store
	metrics     *observability.FunnelMetrics
	logger      EventLogger
}

// NewRecommendationService constructs the resolver.
func NewRecommendationService(deps RecommendationServiceDeps) (*RecommendationService, error) {
	if deps.Products == nil {
		return nil, ErrProductRepositoryMissing
	}
	if deps.Logger == nil {
		deps.Logger = noopEventLogger
	}
	return &RecommendationService{
		products:    deps.Products,
		oracle:      deps.Oracle,
		cache:       deps.Cache,
		oracleCache: deps.OracleCache,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}, nil
}

// RecommendForStep resolves the step's configured offer list to products,
// highest margin first.
func (s *RecommendationService) RecommendForStep(ctx context.Context, step domain.FunnelStep, limit int) ([]domain.Product, error) {
	limit, err := normaliseLimit(limit)
	if err != nil {
		return nil, err
	}

	products := s.resolveIDs(ctx, step.Associations.OfferProductIDs, "")
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].MarginPercent() > products[j].MarginPercent()
	})
	return truncate(products, limit), nil
}

// RecommendPersonalized merges the segment's target products with the
// trigger's category neighbours, ordered by target membership, popularity,
// then rating.
func (s *RecommendationService) RecommendPersonalized(ctx context.Context, segment domain.CustomerSegment, triggerProductID string, limit int) ([]domain.Product, error) {
	limit, err := normaliseLimit(limit)
	if err != nil {
		return nil, err
	}

	candidates := s.resolveIDs(ctx, segment.TargetProductIDs, triggerProductID)

	if triggerProductID != "" {
		if trigger, err := s.products.GetByID(ctx, triggerProductID); err == nil {
			neighbours, err := s.products.ListByCategory(ctx, trigger.CategoryID, sameCategoryPool)
			if err != nil {
				s.logger(ctx, "recommend.category_unavailable", map[string]any{"categoryId": trigger.CategoryID, "error": err.Error()})
			}
			candidates = mergeProducts(candidates, neighbours, triggerProductID)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aTarget, bTarget := segment.TargetsProduct(a.ID), segment.TargetsProduct(b.ID)
		if aTarget != bTarget {
			return aTarget
		}
		if a.IsPopular != b.IsPopular {
			return a.IsPopular
		}
		return a.Rating > b.Rating
	})
	return truncate(candidates, limit), nil
}

// RecommendRelated is the oracle-assisted resolver used for cross-sell
// surfaces. Results are memoized for a day under the request signature;
// oracle rankings are additionally memoized for thirty minutes so a cold
// request cache does not force a re-ask.
func (s *RecommendationService) RecommendRelated(ctx context.Context, segment domain.CustomerSegment, visitor domain.VisitorSignal, triggerProductID string, limit int) ([]domain.Product, error) {
	limit, err := normaliseLimit(limit)
	if err != nil {
		return nil, err
	}

	signature := relatedSignature(triggerProductID, visitor.DistinctViewed(), limit)
	if cached, ok := s.cache.Get(signature); ok {
		if products, ok := cached.([]domain.Product); ok {
			return truncate(products, limit), nil
		}
	}

	var trigger *domain.Product
	if triggerProductID != "" {
		product, err := s.products.GetByID(ctx, triggerProductID)
		switch {
		case err == nil:
			trigger = &product
		case repositories.IsNotFound(err):
			// Unknown trigger renders as "nothing to offer", not a failure.
			return nil, nil
		default:
			return nil, err
		}
	}

	var products []domain.Product
	if s.oracle != nil && trigger != nil {
		products = s.recommendWithOracle(ctx, segment, visitor, *trigger, signature, limit)
	}
	if len(products) == 0 {
		products = s.recommendByRules(ctx, trigger, limit)
	}

	products = truncate(products, limit)
	if len(products) > 0 {
		s.cache.Set(signature, products)
	}
	return products, nil
}

func (s *RecommendationService) recommendWithOracle(ctx context.Context, segment domain.CustomerSegment, visitor domain.VisitorSignal, trigger domain.Product, signature string, limit int) []domain.Product {
	var ids []string
	if cached, ok := s.oracleCache.Get(signature); ok {
		ids, _ = cached.([]string)
	}
	if len(ids) == 0 {
		ranked, err := s.oracle.RankProducts(ctx, rankPrompt(segment, visitor, trigger, limit))
		if err != nil {
			s.metrics.RecordOracleFallback(ctx, "recommend")
			s.logger(ctx, "recommend.oracle_fallback", map[string]any{"productId": trigger.ID, "error": err.Error()})
			return nil
		}
		ids = ranked
		s.oracleCache.Set(signature, ids)
	}

	return s.resolveIDs(ctx, ids, trigger.ID)
}

// rankPrompt describes the trigger product and shopper so the oracle can
// order the catalog around it.
func rankPrompt(segment domain.CustomerSegment, visitor domain.VisitorSignal, trigger domain.Product, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shopper segment: %s.\n", segment.Name)
	fmt.Fprintf(&b, "Trigger product: %s (id %s), category %d, brand %s, price $%.2f.\n",
		trigger.Name, trigger.ID, trigger.CategoryID, trigger.BrandID, float64(trigger.Price)/100)
	if trigger.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", trigger.Description)
	}
	fmt.Fprintf(&b, "Shopper has viewed %d distinct products and purchased %d.\n",
		len(visitor.DistinctViewed()), len(visitor.PurchaseHistoryProductIDs))
	fmt.Fprintf(&b, "Return up to %d complementary product ids, excluding the trigger.", limit)
	return b.String()
}

// recommendByRules is the deterministic chain: same-category first,
// complementary by price band second, top-rated fill last.
func (s *RecommendationService) recommendByRules(ctx context.Context, trigger *domain.Product, limit int) []domain.Product {
	var selected []domain.Product
	seen := map[string]struct{}{}
	if trigger != nil {
		seen[trigger.ID] = struct{}{}
	}
	take := func(products []domain.Product, max int, keep func(domain.Product) bool) {
		for _, p := range products {
			if max == 0 || len(selected) >= limit {
				return
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			if keep != nil && !keep(p) {
				continue
			}
			seen[p.ID] = struct{}{}
			selected = append(selected, p)
			max--
		}
	}

	if trigger != nil {
		sameCategory, err := s.products.ListByCategory(ctx, trigger.CategoryID, sameCategoryPool)
		if err != nil {
			s.logger(ctx, "recommend.category_unavailable", map[string]any{"categoryId": trigger.CategoryID, "error": err.Error()})
		}
		take(sameCategory, 2, nil)
	}

	featured, err := s.products.ListFeatured(ctx, featuredPool)
	if err != nil {
		s.logger(ctx, "recommend.featured_unavailable", map[string]any{"error": err.Error()})
	}

	if trigger != nil {
		lo := int64(math.Floor(float64(trigger.Price) * (1 - complementaryPriceBand)))
		hi := int64(math.Ceil(float64(trigger.Price) * (1 + complementaryPriceBand)))
		take(featured, 2, func(p domain.Product) bool {
			return p.CategoryID != trigger.CategoryID && p.Price >= lo && p.Price <= hi
		})
	}

	remaining := make([]domain.Product, 0, len(featured))
	for _, p := range featured {
		if _, dup := seen[p.ID]; !dup {
			remaining = append(remaining, p)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		a, b := remaining[i], remaining[j]
		// Unreviewed products always rank behind reviewed ones.
		if (a.ReviewCount == 0) != (b.ReviewCount == 0) {
			return b.ReviewCount == 0
		}
		return a.Rating > b.Rating
	})
	take(remaining, limit, nil)

	return selected
}

// resolveIDs loads products by id, skipping unknowns, duplicates, and the
// excluded id. Backend outages for individual ids degrade to omission.
func (s *RecommendationService) resolveIDs(ctx context.Context, ids []string, excludeID string) []domain.Product {
	var products []domain.Product
	seen := map[string]struct{}{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == excludeID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			if !repositories.IsNotFound(err) {
				s.logger(ctx, "recommend.catalog_unavailable", map[string]any{"productId": id, "error": err.Error()})
			}
			continue
		}
		products = append(products, product)
	}
	return products
}

func relatedSignature(triggerProductID string, viewed []string, limit int) string {
	sorted := make([]string, len(viewed))
	copy(sorted, viewed)
	sort.Strings(sorted)
	return fmt.Sprintf("related:v1|%s|%s|%d", triggerProductID, strings.Join(sorted, ","), limit)
}

func normaliseLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, limit)
	}
	if limit == 0 {
		return DefaultOfferLimit, nil
	}
	return limit, nil
}

func truncate(products []domain.Product, limit int) []domain.Product {
	if len(products) > limit {
		return products[:limit]
	}
	return products
}

func mergeProducts(base, extra []domain.Product, excludeID string) []domain.Product {
	seen := make(map[string]struct{}, len(base))
	for _, p := range base {
		seen[p.ID] = struct{}{}
	}
	for _, p := range extra {
		if p.ID == excludeID {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		base = append(base, p)
	}
	return base
}
