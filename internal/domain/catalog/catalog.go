// Package catalog manages categories and products.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	// ErrProductNotFound is returned when no product matches.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound is returned when no category matches.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSKUTaken is returned on a unique SKU violation.
	ErrSKUTaken = errors.New("sku already in use")
	// ErrProductInUse is returned when deleting a product that was ordered.
	ErrProductInUse = errors.New("product referenced by an order")
)

// Category groups products. Categories nest through ParentID.
type Category struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	ParentID    *string
	IsActive    bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Children    []Category
}

// Image is a product image reference.
type Image struct {
	ID        string
	URL       string
	IsPrimary bool
	SortOrder int
}

// Product is a sellable catalog item.
type Product struct {
	ID           string
	Name         string
	Description  string
	Price        decimal.Decimal
	Stock        int
	CategoryID   *string
	CategoryName string
	IsActive     bool
	SKU          string
	Images       []Image
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Pricing is the best active promotion, computed at read time.
	Pricing *pricing.Pricing
}

// Sort orders product listings.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortNameAsc   Sort = "name_asc"
	SortNameDesc  Sort = "name_desc"
)

// ParseSort maps a query value to a Sort, defaulting to SortNewest.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortOldest, SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return Sort(s)
	default:
		return SortNewest
	}
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID      string
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Sort            Sort
	IncludeInactive bool
}

// ProductRepository persists products.
type ProductRepository interface {
	List(ctx context.Context, f ProductFilter, page paging.Page) ([]Product, int, error)
	Get(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	// Update saves p. Images are replaced only when replaceImages is set.
	Update(ctx context.Context, p *Product, replaceImages bool) error
	Delete(ctx context.Context, id string) error
	SKUExists(ctx context.Context, sku, excludeID string) (bool, error)
	LowStock(ctx context.Context, threshold int) ([]Product, error)
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	List(ctx context.Context, page paging.Page) ([]Category, int, error)
	ListActive(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
	CountChildren(ctx context.Context, id string) (int, error)
	CountProducts(ctx context.Context, id string) (int, error)
}

// PromotionSource returns the promotion rules attached to products.
type PromotionSource interface {
	RulesForProducts(ctx context.Context, productIDs []string) (map[string][]pricing.Rule, error)
}

// Invalidator drops cached responses whose key contains any substring.
type Invalidator interface {
	InvalidateContaining(substrs ...string) int
}
