package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/summit-offroad/api/internal/domain"
)

type stubClassifier struct{ segment domain.CustomerSegment }

func (s stubClassifier) Classify(context.Context, domain.VisitorSignal) domain.CustomerSegment {
	return s.segment
}

type stubSelector struct{ step *domain.FunnelStep }

func (s stubSelector) SelectStep(domain.CustomerSegment, string, domain.FunnelPosition) *domain.FunnelStep {
	return s.step
}

type stubRecommender struct {
	step         []domain.Product
	personalized []domain.Product
	related      []domain.Product
	err          error
}

func (s stubRecommender) RecommendForStep(context.Context, domain.FunnelStep, int) ([]domain.Product, error) {
	return s.step, s.err
}

func (s stubRecommender) RecommendPersonalized(context.Context, domain.CustomerSegment, string, int) ([]domain.Product, error) {
	return s.personalized, s.err
}

func (s stubRecommender) RecommendRelated(context.Context, domain.CustomerSegment, domain.VisitorSignal, string, int) ([]domain.Product, error) {
	return s.related, s.err
}

// stubPricing discounts every product by a fixed amount on both paths.
type stubPricing struct{ discount int64 }

func (s stubPricing) PriceForSegment(p domain.Product, _ domain.CustomerSegment) PriceQuote {
	return PriceQuote{OriginalPrice: p.Price, DynamicPrice: p.Price - s.discount}
}

func (s stubPricing) CheckoutPrice(p domain.Product, _ domain.CustomerSegment) PriceQuote {
	return PriceQuote{OriginalPrice: p.Price, DynamicPrice: p.Price - s.discount}
}

type stubGovernor struct {
	status RevenueStatus
	within bool
	added  []int64
}

func (s *stubGovernor) AddRevenue(amount int64) bool {
	s.added = append(s.added, amount)
	return s.within
}

func (s *stubGovernor) Status() RevenueStatus { return s.status }

type stubPublisher struct {
	mu        sync.Mutex
	published chan ViewTrackingMessage
	err       error
}

func (s *stubPublisher) PublishViewTracking(_ context.Context, message ViewTrackingMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.published <- message
	return message.JobID, nil
}

func newOffersService(t *testing.T, deps OffersServiceDeps) *FunnelOffersService {
	t.Helper()
	if deps.Classifier == nil {
		deps.Classifier = stubClassifier{segment: mustSegment(domain.SegmentNewVisitor)}
	}
	if deps.Selector == nil {
		deps.Selector = stubSelector{}
	}
	if deps.Recommender == nil {
		deps.Recommender = stubRecommender{}
	}
	if deps.Pricing == nil {
		deps.Pricing = stubPricing{}
	}
	if deps.Governor == nil {
		deps.Governor = &stubGovernor{status: RevenueStatus{Status: RevenueUnderTarget, ShouldOfferPromotions: true}, within: true}
	}
	svc, err := NewFunnelOffersService(deps)
	if err != nil {
		t.Fatalf("NewFunnelOffersService: %v", err)
	}
	return svc
}

func TestGetPersonalizedOffersWithStep(t *testing.T) {
	step := domain.FunnelStep{ID: "pp-1", CallToAction: "Protect your investment"}
	svc := newOffersService(t, OffersServiceDeps{
		Classifier: stubClassifier{segment: mustSegment(domain.SegmentFeatureFocused)},
		Selector:   stubSelector{step: &step},
		Recommender: stubRecommender{step: []domain.Product{
			{ID: "sx-3030", Name: "Axle Boot Kit", Price: 4500},
		}},
		Pricing: stubPricing{discount: 500},
	})

	result, err := svc.GetPersonalizedOffers(context.Background(), PersonalizedOffersCommand{
		ProductID: "sx-3010",
		Position:  domain.PositionProductPage,
	})
	if err != nil {
		t.Fatalf("GetPersonalizedOffers: %v", err)
	}
	if result.Segment != domain.SegmentFeatureFocused {
		t.Fatalf("want feature_focused, got %s", result.Segment)
	}
	if result.CallToAction != "Protect your investment" {
		t.Fatalf("step CTA not used: %q", result.CallToAction)
	}
	if len(result.Offers) != 1 {
		t.Fatalf("want 1 offer, got %d", len(result.Offers))
	}
	offer := result.Offers[0]
	if offer.OriginalPrice != 4500 || offer.OfferPrice != 4000 {
		t.Fatalf("unexpected prices %+v", offer)
	}
	if offer.DiscountPercentage != 11.1 {
		t.Fatalf("want 11.1%% discount, got %v", offer.DiscountPercentage)
	}
}

func TestGetPersonalizedOffersWithoutStepUsesPersonalizedMode(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{
		Recommender: stubRecommender{personalized: []domain.Product{{ID: "sx-1010", Price: 2000}}},
	})

	result, err := svc.GetPersonalizedOffers(context.Background(), PersonalizedOffersCommand{Position: domain.PositionBrowsing})
	if err != nil {
		t.Fatalf("GetPersonalizedOffers: %v", err)
	}
	if len(result.Offers) != 1 || result.Offers[0].ID != "sx-1010" {
		t.Fatalf("personalized mode not used: %+v", result.Offers)
	}
	if result.CallToAction != defaultOfferCTA {
		t.Fatalf("want default CTA, got %q", result.CallToAction)
	}
}

func TestGetPersonalizedOffersSuppressesDiscountsWithoutPromotions(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{
		Recommender: stubRecommender{personalized: []domain.Product{{ID: "sx-1010", Price: 2000}}},
		Pricing:     stubPricing{discount: 300},
		Governor:    &stubGovernor{status: RevenueStatus{Status: RevenueNearLimit, ShouldOfferPromotions: false}, within: true},
	})

	result, err := svc.GetPersonalizedOffers(context.Background(), PersonalizedOffersCommand{})
	if err != nil {
		t.Fatalf("GetPersonalizedOffers: %v", err)
	}
	offer := result.Offers[0]
	if offer.OfferPrice != 0 || offer.DiscountPercentage != 0 {
		t.Fatalf("discount leaked while promotions are off: %+v", offer)
	}
	if offer.OriginalPrice != 2000 {
		t.Fatalf("list price missing: %+v", offer)
	}
}

func TestGetPersonalizedOffersSanitisesCopy(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{
		Recommender: stubRecommender{personalized: []domain.Product{{
			ID:          "sx-1010",
			Name:        `Roof<script>alert("x")</script> Rack`,
			Description: "<b>Heavy duty</b> steel",
			Price:       2000,
		}}},
	})

	result, err := svc.GetPersonalizedOffers(context.Background(), PersonalizedOffersCommand{})
	if err != nil {
		t.Fatalf("GetPersonalizedOffers: %v", err)
	}
	offer := result.Offers[0]
	if offer.Name != "Roof Rack" {
		t.Fatalf("script not stripped: %q", offer.Name)
	}
	if offer.Description != "Heavy duty steel" {
		t.Fatalf("markup not stripped: %q", offer.Description)
	}
}

func TestGetPersonalizedOffersRejectsBadInput(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{})

	if _, err := svc.GetPersonalizedOffers(context.Background(), PersonalizedOffersCommand{Limit: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for negative limit, got %v", err)
	}
	cmd := PersonalizedOffersCommand{ViewedProductIDs: []string{"ok", "  "}}
	if _, err := svc.GetPersonalizedOffers(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for blank id, got %v", err)
	}
}

func TestGetCheckoutOffersExcludesCart(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{
		Recommender: stubRecommender{related: []domain.Product{
			{ID: "in-cart", Price: 1000},
			{ID: "new-offer", Price: 2000},
		}},
		Pricing: stubPricing{discount: 100},
	})

	result, err := svc.GetCheckoutOffers(context.Background(), CheckoutOffersCommand{
		CartProductIDs: []string{"in-cart"},
	})
	if err != nil {
		t.Fatalf("GetCheckoutOffers: %v", err)
	}
	if len(result.Offers) != 1 || result.Offers[0].ID != "new-offer" {
		t.Fatalf("cart product not excluded: %+v", result.Offers)
	}
	if result.Offers[0].CallToAction == "" || result.Offers[0].Message == "" {
		t.Fatalf("checkout offers need copy: %+v", result.Offers[0])
	}
}

func TestGetUserSegment(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{
		Classifier: stubClassifier{segment: mustSegment(domain.SegmentMudEnthusiast)},
	})

	result, err := svc.GetUserSegment(context.Background(), "u-1", []string{"sx-2010"})
	if err != nil {
		t.Fatalf("GetUserSegment: %v", err)
	}
	if result.Segment != domain.SegmentMudEnthusiast || result.Name != "Mud & Trail Enthusiast" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTrackProductViewsPublishes(t *testing.T) {
	publisher := &stubPublisher{published: make(chan ViewTrackingMessage, 1)}
	svc := newOffersService(t, OffersServiceDeps{
		Publisher: publisher,
		Clock:     func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
	})

	result, err := svc.TrackProductViews(context.Background(), "sess-1", []string{"sx-1010", "sx-1010", "sx-2010"})
	if err != nil {
		t.Fatalf("TrackProductViews: %v", err)
	}
	if !result.Success {
		t.Fatalf("want success, got %+v", result)
	}

	select {
	case message := <-publisher.published:
		if message.SessionID != "sess-1" {
			t.Fatalf("session not carried: %+v", message)
		}
		if len(message.ProductIDs) != 2 {
			t.Fatalf("views not deduplicated: %v", message.ProductIDs)
		}
		if message.JobID == "" {
			t.Fatal("missing job id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish never happened")
	}
}

func TestTrackProductViewsPublishFailureStaysInternal(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("broker down")}
	svc := newOffersService(t, OffersServiceDeps{Publisher: publisher})

	result, err := svc.TrackProductViews(context.Background(), "", []string{"sx-1010"})
	if err != nil {
		t.Fatalf("publish failures must not surface: %v", err)
	}
	if !result.Success {
		t.Fatalf("want success despite broker failure, got %+v", result)
	}
}

func TestTrackProductViewsRejectsEmptyList(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{})

	if _, err := svc.TrackProductViews(context.Background(), "sess-1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if _, err := svc.TrackProductViews(context.Background(), "sess-1", []string{" ", ""}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for blank ids, got %v", err)
	}
}

func TestRecordOrderRevenue(t *testing.T) {
	governor := &stubGovernor{
		status: RevenueStatus{Status: RevenueOnTarget, DailyPercentage: 62.5, MonthlyPercentage: 40, ShouldOfferPromotions: true},
		within: true,
	}
	svc := newOffersService(t, OffersServiceDeps{Governor: governor})

	result, err := svc.RecordOrderRevenue(context.Background(), "order-77", 12_500)
	if err != nil {
		t.Fatalf("RecordOrderRevenue: %v", err)
	}
	if !result.Success || !result.WithinLimits {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.RevenueStatus != RevenueOnTarget || result.DailyPercentage != 62.5 {
		t.Fatalf("governor status not reported: %+v", result)
	}
	if len(governor.added) != 1 || governor.added[0] != 12_500 {
		t.Fatalf("amount not recorded: %v", governor.added)
	}
}

func TestRecordOrderRevenueRejectsBadInput(t *testing.T) {
	svc := newOffersService(t, OffersServiceDeps{})

	if _, err := svc.RecordOrderRevenue(context.Background(), " ", 100); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for blank order id, got %v", err)
	}
	if _, err := svc.RecordOrderRevenue(context.Background(), "order-1", -5); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for negative amount, got %v", err)
	}
}
