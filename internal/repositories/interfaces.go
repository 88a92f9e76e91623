// Package repositories defines the persistence contracts the funnel core
// consumes. The core never owns data durability; unknown ids surface as
// categorised not-found errors, which services translate into empty results.
package repositories

import (
	"context"
	"errors"

	domain "github.com/summit-offroad/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}

// IsNotFound reports whether the error is a categorised missing-record error.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsUnavailable reports whether the error is a categorised backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// ProductRepository reads the product catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, productID string) (domain.Product, error)
	ListByCategory(ctx context.Context, categoryID int, limit int) ([]domain.Product, error)
	ListFeatured(ctx context.Context, limit int) ([]domain.Product, error)
}

// OrderRepository reads order history for segmentation. Only counts and
// referenced product ids are consumed.
type OrderRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}
