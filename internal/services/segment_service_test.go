package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/summit-offroad/api/internal/domain"
)

func newSegmentService(t *testing.T, deps SegmentServiceDeps) *SegmentService {
	t.Helper()
	if deps.Products == nil {
		deps.Products = newFakeProductRepo()
	}
	svc, err := NewSegmentService(deps)
	if err != nil {
		t.Fatalf("NewSegmentService: %v", err)
	}
	return svc
}

func TestClassifyRuleBased(t *testing.T) {
	cases := []struct {
		name    string
		visitor domain.VisitorSignal
		want    string
	}{
		{
			name: "purchase history wins regardless of other signals",
			visitor: domain.VisitorSignal{
				UserID:                    "u-1",
				PurchaseHistoryProductIDs: []string{"sx-4010"},
				CartAbandonProductIDs:     []string{"sx-5010"},
				ViewedProductIDs:          []string{"a", "b", "c", "d", "e", "f", "g"},
			},
			want: domain.SegmentReturningCustomer,
		},
		{
			name: "cart abandon without purchases",
			visitor: domain.VisitorSignal{
				UserID:                "u-2",
				CartAbandonProductIDs: []string{"sx-5010"},
			},
			want: domain.SegmentPriceSensitive,
		},
		{
			name: "more than five distinct views",
			visitor: domain.VisitorSignal{
				UserID:           "u-3",
				ViewedProductIDs: []string{"a", "b", "c", "d", "e", "f"},
			},
			want: domain.SegmentFeatureFocused,
		},
		{
			name: "duplicate views do not count twice",
			visitor: domain.VisitorSignal{
				UserID:           "u-4",
				ViewedProductIDs: []string{"a", "a", "a", "a", "a", "a", "b"},
			},
			want: domain.SegmentNewVisitor,
		},
		{
			name:    "empty signal",
			visitor: domain.VisitorSignal{},
			want:    domain.SegmentNewVisitor,
		},
	}

	svc := newSegmentService(t, SegmentServiceDeps{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Classify(context.Background(), tc.visitor)
			if got.ID != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got.ID)
			}
		})
	}
}

func TestClassifyAnonymousCategoryPath(t *testing.T) {
	repo := newFakeProductRepo(
		domain.Product{ID: "w-1", CategoryID: domain.CategoryWheels},
		domain.Product{ID: "w-2", CategoryID: domain.CategoryWheels},
		domain.Product{ID: "s-1", CategoryID: domain.CategoryStorage},
		domain.Product{ID: "d-1", CategoryID: domain.CategoryDrivetrain},
	)
	svc := newSegmentService(t, SegmentServiceDeps{Products: repo})

	cases := []struct {
		name   string
		viewed []string
		want   string
	}{
		{
			name:   "dominant category wins",
			viewed: []string{"s-1", "w-1", "w-2"},
			want:   domain.SegmentMudEnthusiast,
		},
		{
			name:   "ties break toward first-seen category",
			viewed: []string{"d-1", "w-1"},
			want:   domain.SegmentFeatureFocused,
		},
		{
			name:   "unknown products leave the new-visitor default",
			viewed: []string{"ghost-1", "ghost-2"},
			want:   domain.SegmentNewVisitor,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Classify(context.Background(), domain.VisitorSignal{ViewedProductIDs: tc.viewed})
			if got.ID != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got.ID)
			}
		})
	}
}

func TestClassifyCategoryPathSkippedForKnownUsers(t *testing.T) {
	repo := newFakeProductRepo(domain.Product{ID: "w-1", CategoryID: domain.CategoryWheels})
	svc := newSegmentService(t, SegmentServiceDeps{Products: repo})

	got := svc.Classify(context.Background(), domain.VisitorSignal{
		UserID:           "u-9",
		ViewedProductIDs: []string{"w-1"},
	})
	if got.ID != domain.SegmentNewVisitor {
		t.Fatalf("want new_visitor for identified user, got %s", got.ID)
	}
}

func TestClassifyBackfillsOrderHistory(t *testing.T) {
	orders := &fakeOrderRepo{orders: map[string][]domain.Order{
		"u-7": {{ID: "o-1", UserID: "u-7", ProductIDs: []string{"sx-3010"}}},
	}}
	svc := newSegmentService(t, SegmentServiceDeps{Orders: orders})

	got := svc.Classify(context.Background(), domain.VisitorSignal{UserID: "u-7"})
	if got.ID != domain.SegmentReturningCustomer {
		t.Fatalf("want returning_customer from order history, got %s", got.ID)
	}
}

func TestClassifyOrderLookupFailureDegrades(t *testing.T) {
	svc := newSegmentService(t, SegmentServiceDeps{
		Orders: &fakeOrderRepo{err: unavailableError{}},
	})

	got := svc.Classify(context.Background(), domain.VisitorSignal{UserID: "u-8"})
	if got.ID != domain.SegmentNewVisitor {
		t.Fatalf("want new_visitor when orders are unavailable, got %s", got.ID)
	}
}

func TestClassifyOraclePath(t *testing.T) {
	t.Run("matching name supersedes rules", func(t *testing.T) {
		svc := newSegmentService(t, SegmentServiceDeps{
			Oracle: &fakeOracle{segmentName: "Mud & Trail Enthusiast"},
		})
		got := svc.Classify(context.Background(), domain.VisitorSignal{
			PurchaseHistoryProductIDs: []string{"sx-4010"},
		})
		if got.ID != domain.SegmentMudEnthusiast {
			t.Fatalf("want mud_enthusiast from oracle, got %s", got.ID)
		}
	})

	t.Run("id answers are accepted case-insensitively", func(t *testing.T) {
		svc := newSegmentService(t, SegmentServiceDeps{
			Oracle: &fakeOracle{segmentName: "Feature_Focused"},
		})
		got := svc.Classify(context.Background(), domain.VisitorSignal{
			ViewedProductIDs: []string{"sx-3010"},
		})
		if got.ID != domain.SegmentFeatureFocused {
			t.Fatalf("want feature_focused, got %s", got.ID)
		}
	})

	t.Run("errors fall through to rules in the same call", func(t *testing.T) {
		svc := newSegmentService(t, SegmentServiceDeps{
			Oracle: &fakeOracle{err: errors.New("boom")},
		})
		got := svc.Classify(context.Background(), domain.VisitorSignal{
			PurchaseHistoryProductIDs: []string{"sx-4010"},
		})
		if got.ID != domain.SegmentReturningCustomer {
			t.Fatalf("want rule-based returning_customer, got %s", got.ID)
		}
	})

	t.Run("unrecognised names fall through", func(t *testing.T) {
		svc := newSegmentService(t, SegmentServiceDeps{
			Oracle: &fakeOracle{segmentName: "Weekend Warrior"},
		})
		got := svc.Classify(context.Background(), domain.VisitorSignal{
			CartAbandonProductIDs: []string{"sx-5010"},
		})
		if got.ID != domain.SegmentPriceSensitive {
			t.Fatalf("want price_sensitive fallback, got %s", got.ID)
		}
	})

	t.Run("trivial signal skips the oracle", func(t *testing.T) {
		fake := &fakeOracle{segmentName: "Returning Rider"}
		svc := newSegmentService(t, SegmentServiceDeps{Oracle: fake})

		svc.Classify(context.Background(), domain.VisitorSignal{})
		if fake.classifyCalls != 0 {
			t.Fatalf("oracle consulted %d times for an empty signal", fake.classifyCalls)
		}
	})
}
