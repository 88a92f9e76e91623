package services

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/summit-offroad/api/internal/domain"
)

// notFoundError mimics the categorised repository error for missing records.
type notFoundError struct{ id string }

func (e notFoundError) Error() string       { return fmt.Sprintf("not found: %s", e.id) }
func (e notFoundError) IsNotFound() bool    { return true }
func (e notFoundError) IsUnavailable() bool { return false }

// unavailableError mimics a backend outage.
type unavailableError struct{}

func (unavailableError) Error() string       { return "backend unavailable" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

// fakeProductRepo serves a fixed catalog in declaration order.
type fakeProductRepo struct {
	mu       sync.Mutex
	catalog  []domain.Product
	featured []string
	getCalls int
	failAll  bool
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	return &fakeProductRepo{catalog: products}
}

func (f *fakeProductRepo) GetByID(_ context.Context, productID string) (domain.Product, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.failAll {
		return domain.Product{}, unavailableError{}
	}
	for _, p := range f.catalog {
		if p.ID == productID {
			return p, nil
		}
	}
	return domain.Product{}, notFoundError{id: productID}
}

func (f *fakeProductRepo) ListByCategory(_ context.Context, categoryID int, limit int) ([]domain.Product, error) {
	if f.failAll {
		return nil, unavailableError{}
	}
	var out []domain.Product
	for _, p := range f.catalog {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProductRepo) ListFeatured(_ context.Context, limit int) ([]domain.Product, error) {
	if f.failAll {
		return nil, unavailableError{}
	}
	var out []domain.Product
	for _, id := range f.featured {
		for _, p := range f.catalog {
			if p.ID == id {
				out = append(out, p)
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProductRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// fakeOrderRepo returns canned orders per user.
type fakeOrderRepo struct {
	orders map[string][]domain.Order
	err    error
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[userID], nil
}

// fakeOracle answers with canned values or a canned error.
type fakeOracle struct {
	mu            sync.Mutex
	segmentName   string
	rankedIDs     []string
	err           error
	classifyCalls int
	rankCalls     int
}

func (f *fakeOracle) ClassifySegment(context.Context, string) (string, error) {
	f.mu.Lock()
	f.classifyCalls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.segmentName, nil
}

func (f *fakeOracle) RankProducts(context.Context, string) ([]string, error) {
	f.mu.Lock()
	f.rankCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rankedIDs, nil
}

func mustSegment(id string) domain.CustomerSegment {
	segment, ok := domain.SegmentByID(id)
	if !ok {
		panic("unknown segment " + id)
	}
	return segment
}
