package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/summit-offroad/api/internal/domain"
	"github.com/summit-offroad/api/internal/platform/cache"
)

func crossSellCatalog() *fakeProductRepo {
	repo := newFakeProductRepo(
		domain.Product{ID: "trigger", Name: "Portal Gear Lift", CategoryID: 3, Price: 10000, Rating: 4.6, ReviewCount: 40},
		domain.Product{ID: "same-a", CategoryID: 3, Price: 9000, Rating: 4.1, ReviewCount: 12},
		domain.Product{ID: "same-b", CategoryID: 3, Price: 12000, Rating: 4.8, ReviewCount: 30},
		domain.Product{ID: "same-c", CategoryID: 3, Price: 8000, Rating: 3.9, ReviewCount: 5},
		domain.Product{ID: "comp-in-band", CategoryID: 5, Price: 11000, Rating: 4.0, ReviewCount: 8},
		domain.Product{ID: "comp-too-dear", CategoryID: 5, Price: 20000, Rating: 4.9, ReviewCount: 90},
		domain.Product{ID: "filler-top", CategoryID: 8, Price: 3000, Rating: 4.9, ReviewCount: 25},
		domain.Product{ID: "filler-unreviewed", CategoryID: 8, Price: 2500, Rating: 5.0, ReviewCount: 0},
	)
	repo.featured = []string{"comp-too-dear", "comp-in-band", "filler-unreviewed", "filler-top"}
	return repo
}

func newRecommendationService(t *testing.T, deps RecommendationServiceDeps) *RecommendationService {
	t.Helper()
	svc, err := NewRecommendationService(deps)
	if err != nil {
		t.Fatalf("NewRecommendationService: %v", err)
	}
	return svc
}

func productIDs(products []domain.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func assertIDs(t *testing.T, got []domain.Product, want ...string) {
	t.Helper()
	gotIDs := productIDs(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("want %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("want %v, got %v", want, gotIDs)
		}
	}
}

func TestRecommendForStepSortsByMargin(t *testing.T) {
	repo := newFakeProductRepo(
		domain.Product{ID: "thin", Price: 10000, CompareAtPrice: 9000},
		domain.Product{ID: "fat", Price: 10000, CompareAtPrice: 4000},
		domain.Product{ID: "no-compare", Price: 10000},
	)
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: repo})

	step := domain.FunnelStep{Associations: domain.ProductAssociations{
		OfferProductIDs: []string{"thin", "ghost", "fat", "no-compare"},
	}}
	got, err := svc.RecommendForStep(context.Background(), step, 5)
	if err != nil {
		t.Fatalf("RecommendForStep: %v", err)
	}
	// Missing compareAtPrice counts as zero margin spent, so it ranks first.
	assertIDs(t, got, "no-compare", "fat", "thin")
}

func TestRecommendForStepTruncates(t *testing.T) {
	repo := newFakeProductRepo(
		domain.Product{ID: "a", Price: 100},
		domain.Product{ID: "b", Price: 100},
		domain.Product{ID: "c", Price: 100},
	)
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: repo})

	step := domain.FunnelStep{Associations: domain.ProductAssociations{OfferProductIDs: []string{"a", "b", "c"}}}
	got, err := svc.RecommendForStep(context.Background(), step, 2)
	if err != nil {
		t.Fatalf("RecommendForStep: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 products, got %d", len(got))
	}
}

func TestRecommendPersonalizedOrdering(t *testing.T) {
	repo := newFakeProductRepo(
		domain.Product{ID: "target-plain", CategoryID: 2, Rating: 3.0},
		domain.Product{ID: "neighbour-popular", CategoryID: 2, IsPopular: true, Rating: 4.0},
		domain.Product{ID: "neighbour-rated", CategoryID: 2, Rating: 4.9},
		domain.Product{ID: "trigger", CategoryID: 2, Rating: 4.2},
	)
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: repo})

	segment := domain.CustomerSegment{ID: "seg", TargetProductIDs: []string{"target-plain"}}
	got, err := svc.RecommendPersonalized(context.Background(), segment, "trigger", 10)
	if err != nil {
		t.Fatalf("RecommendPersonalized: %v", err)
	}
	// Target membership outranks popularity, which outranks rating.
	assertIDs(t, got, "target-plain", "neighbour-popular", "neighbour-rated")
}

func TestRecommendRelatedFallbackChain(t *testing.T) {
	repo := crossSellCatalog()
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: repo})

	got, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), domain.VisitorSignal{}, "trigger", 5)
	if err != nil {
		t.Fatalf("RecommendRelated: %v", err)
	}
	// Two same-category, one complementary inside the price band, then
	// top-rated fill with the unreviewed product last.
	assertIDs(t, got, "same-a", "same-b", "comp-in-band", "comp-too-dear", "filler-top")
}

func TestRecommendRelatedProperties(t *testing.T) {
	repo := crossSellCatalog()
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: repo})

	for _, limit := range []int{1, 2, 3, 5, 10} {
		got, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), domain.VisitorSignal{}, "trigger", limit)
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		if len(got) > limit {
			t.Fatalf("limit %d exceeded: %d products", limit, len(got))
		}
		seen := map[string]struct{}{}
		for _, p := range got {
			if p.ID == "trigger" {
				t.Fatal("trigger product recommended to itself")
			}
			if _, dup := seen[p.ID]; dup {
				t.Fatalf("duplicate product %s", p.ID)
			}
			seen[p.ID] = struct{}{}
		}
	}
}

func TestRecommendRelatedOracle(t *testing.T) {
	t.Run("ranked ids resolved in order, trigger excluded", func(t *testing.T) {
		repo := crossSellCatalog()
		svc := newRecommendationService(t, RecommendationServiceDeps{
			Products: repo,
			Oracle:   &fakeOracle{rankedIDs: []string{"filler-top", "trigger", "same-c", "ghost"}},
		})

		got, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentMudEnthusiast), domain.VisitorSignal{}, "trigger", 5)
		if err != nil {
			t.Fatalf("RecommendRelated: %v", err)
		}
		assertIDs(t, got, "filler-top", "same-c")
	})

	t.Run("oracle failure falls back within the same call", func(t *testing.T) {
		repo := crossSellCatalog()
		svc := newRecommendationService(t, RecommendationServiceDeps{
			Products: repo,
			Oracle:   &fakeOracle{err: errors.New("quota exceeded")},
		})

		got, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentMudEnthusiast), domain.VisitorSignal{}, "trigger", 3)
		if err != nil {
			t.Fatalf("RecommendRelated: %v", err)
		}
		if len(got) == 0 {
			t.Fatal("fallback produced no recommendations")
		}
	})
}

func TestRecommendRelatedCaching(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := crossSellCatalog()
	svc := newRecommendationService(t, RecommendationServiceDeps{
		Products:    repo,
		Cache:       cache.New(cache.RecommendationTTL, cache.WithClock(clock)),
		OracleCache: cache.New(cache.OracleResponseTTL, cache.WithClock(clock)),
	})

	visitor := domain.VisitorSignal{ViewedProductIDs: []string{"same-a", "same-b"}}
	first, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), visitor, "trigger", 3)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	callsAfterFirst := repo.calls()

	second, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), visitor, "trigger", 3)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if repo.calls() != callsAfterFirst {
		t.Fatalf("cached call hit the repository: %d -> %d", callsAfterFirst, repo.calls())
	}
	assertIDs(t, second, productIDs(first)...)

	// Same trigger, different view history: different signature.
	other := domain.VisitorSignal{ViewedProductIDs: []string{"filler-top"}}
	if _, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), other, "trigger", 3); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if repo.calls() == callsAfterFirst {
		t.Fatal("distinct signature unexpectedly served from cache")
	}
}

func TestRecommendRelatedUnknownTrigger(t *testing.T) {
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: newFakeProductRepo()})

	got, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), domain.VisitorSignal{}, "ghost", 3)
	if err != nil {
		t.Fatalf("unknown trigger should not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %v", productIDs(got))
	}
}

func TestRecommendRejectsNegativeLimit(t *testing.T) {
	svc := newRecommendationService(t, RecommendationServiceDeps{Products: newFakeProductRepo()})

	_, err := svc.RecommendRelated(context.Background(), mustSegment(domain.SegmentNewVisitor), domain.VisitorSignal{}, "", -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	_, err = svc.RecommendForStep(context.Background(), domain.FunnelStep{}, -2)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
