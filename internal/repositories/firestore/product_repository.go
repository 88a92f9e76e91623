package firestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/summit-offroad/api/internal/domain"
	pfirestore "github.com/summit-offroad/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository reads the product catalog from Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{provider: provider}, nil
}

// GetByID fetches a single product document.
func (r *ProductRepository) GetByID(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}

	snap, err := client.Collection(productCollection).Doc(productID).Get(ctx)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}
	return decodeProductDocument(snap)
}

// ListByCategory returns up to limit products in the given category.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID int, limit int) ([]domain.Product, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("products.listByCategory", err)
	}

	query := client.Collection(productCollection).
		Where("categoryId", "==", categoryID).
		OrderBy("rating", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return collectProducts(ctx, query, "products.listByCategory")
}

// ListFeatured returns up to limit featured products.
func (r *ProductRepository) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("products.listFeatured", err)
	}

	query := client.Collection(productCollection).
		Where("isFeatured", "==", true).
		OrderBy("rating", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return collectProducts(ctx, query, "products.listFeatured")
}

func collectProducts(ctx context.Context, query firestore.Query, op string) ([]domain.Product, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError(op, err)
		}
		product, err := decodeProductDocument(snap)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

type productDocument struct {
	Name           string `firestore:"name"`
	Description    string `firestore:"description"`
	Price          any    `firestore:"price"`
	CompareAtPrice any    `firestore:"compareAtPrice"`
	CategoryID     int    `firestore:"categoryId"`
	BrandID        string `firestore:"brandId"`
	ImageURL       string `firestore:"imageUrl"`
	InventoryCount int    `firestore:"inventoryCount"`
	IsPopular      bool   `firestore:"isPopular"`
	Rating         float64 `firestore:"rating"`
	ReviewCount    int    `firestore:"reviewCount"`
}

func decodeProductDocument(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}

	price, err := normalizePrice(doc.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", snap.Ref.ID, err)
	}
	compareAt, err := normalizePrice(doc.CompareAtPrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", snap.Ref.ID, err)
	}

	return domain.Product{
		ID:             snap.Ref.ID,
		Name:           doc.Name,
		Description:    doc.Description,
		Price:          price,
		CompareAtPrice: compareAt,
		CategoryID:     doc.CategoryID,
		BrandID:        doc.BrandID,
		ImageURL:       doc.ImageURL,
		InventoryCount: doc.InventoryCount,
		IsPopular:      doc.IsPopular,
		Rating:         doc.Rating,
		ReviewCount:    doc.ReviewCount,
	}, nil
}

// normalizePrice flattens the legacy price shapes into cents. Integer values
// are already cents; legacy rows stored decimal-dollar strings.
func normalizePrice(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(math.Round(v)), nil
	case string:
		trimmed := strings.TrimSpace(strings.TrimPrefix(v, "$"))
		if trimmed == "" {
			return 0, nil
		}
		dollars, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable price %q", v)
		}
		return int64(math.Round(dollars * 100)), nil
	default:
		return 0, fmt.Errorf("unsupported price type %T", value)
	}
}
