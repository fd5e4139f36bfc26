// Package promotion manages time-windowed discounts attached to products.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	// ErrNotFound is returned when no promotion matches.
	ErrNotFound = errors.New("promotion not found")
	// ErrUnknownProduct is returned when an association references a
	// product that does not exist.
	ErrUnknownProduct = errors.New("unknown product")
)

// ProductSummary is the product view embedded in a promotion.
type ProductSummary struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Promotion is a discount rule applicable to a set of products.
type Promotion struct {
	ID            string
	Name          string
	Description   string
	DiscountType  pricing.DiscountType
	DiscountValue decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Products      []ProductSummary
}

// Rule converts the promotion into a pricing rule.
func (p Promotion) Rule() pricing.Rule {
	return pricing.Rule{
		PromotionID:  p.ID,
		Name:         p.Name,
		DiscountType: p.DiscountType,
		Value:        p.DiscountValue,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		IsActive:     p.IsActive,
	}
}

// Filter narrows admin listings.
type Filter struct {
	IsActive *bool
}

// Store is the transactional subset of Repository.
type Store interface {
	Get(ctx context.Context, id string) (*Promotion, error)
	Insert(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id string) error
	SetProducts(ctx context.Context, id string, productIDs []string) error
	AddProducts(ctx context.Context, id string, productIDs []string) error
	RemoveProducts(ctx context.Context, id string, productIDs []string) error
}

// Repository persists promotions and their product associations.
type Repository interface {
	Store
	// ListActive returns active promotions whose window contains now,
	// newest first.
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)
	List(ctx context.Context, f Filter, page paging.Page) ([]Promotion, int, error)
	Products(ctx context.Context, id string, page paging.Page) ([]catalog.Product, int, error)
	// RulesForProducts returns every promotion attached to the given
	// products keyed by product id. Window filtering is left to the caller.
	RulesForProducts(ctx context.Context, productIDs []string) (map[string][]pricing.Rule, error)
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
