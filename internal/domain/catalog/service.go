package catalog

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/pkg/paging"
)

// ProductInput carries product fields. Nil fields are left untouched on
// update. A non-nil empty CategoryID detaches the product from its category.
type ProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *string
	SKU         *string
	IsActive    *bool
	Images      *[]Image
}

// CategoryInput carries category fields. Nil fields are left untouched on
// update. A non-nil empty ParentID makes the category a root.
type CategoryInput struct {
	Name        *string
	Description *string
	ImageURL    *string
	ParentID    *string
	IsActive    *bool
	SortOrder   *int
}

// Service implements catalog reads and admin writes.
type Service struct {
	products   ProductRepository
	categories CategoryRepository
	promos     PromotionSource
	cache      Invalidator
	now        func() time.Time
}

// NewService creates a catalog Service.
func NewService(products ProductRepository, categories CategoryRepository, promos PromotionSource, cache Invalidator) *Service {
	return &Service{
		products:   products,
		categories: categories,
		promos:     promos,
		cache:      cache,
		now:        time.Now,
	}
}

// ListProducts returns a page of products with promotional pricing.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter, page paging.Page) ([]Product, paging.Meta, error) {
	list, total, err := s.products.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list products")
	}
	if err := s.AttachPricing(ctx, list); err != nil {
		return nil, paging.Meta{}, err
	}
	return list, paging.NewMeta(page, total), nil
}

// SearchProducts matches active products by name or description.
func (s *Service) SearchProducts(ctx context.Context, query string, page paging.Page) ([]Product, paging.Meta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, paging.Meta{}, apperr.Invalid("Search query is required")
	}
	return s.ListProducts(ctx, ProductFilter{Search: query, Sort: SortNameAsc}, page)
}

// GetProduct returns a product with its images and pricing.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, mapProductErr(err)
	}
	one := []Product{*p}
	if err := s.AttachPricing(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// AttachPricing fills Pricing on every product from its active promotions.
func (s *Service) AttachPricing(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	rules, err := s.promos.RulesForProducts(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "load promotion rules")
	}
	now := s.now()
	for i := range products {
		products[i].Pricing = pricing.Effective(products[i].Price, rules[products[i].ID], now)
	}
	return nil
}

// CreateProduct adds a product. The SKU defaults to "P" followed by the last
// eight digits of the current unix millisecond time.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	p := &Product{IsActive: true}
	if err := s.applyProduct(ctx, p, in); err != nil {
		return nil, err
	}
	if p.Name == "" || in.Price == nil {
		return nil, apperr.Invalid("Product name and price are required")
	}
	if p.SKU == "" {
		p.SKU = GenerateSKU(s.now())
	}
	if err := s.checkSKU(ctx, p.SKU, ""); err != nil {
		return nil, err
	}
	if in.Images != nil {
		p.Images = normalizeImages(*in.Images)
	}

	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, ErrSKUTaken) {
			return nil, apperr.Invalid("SKU already in use")
		}
		return nil, errors.Wrap(err, "create product")
	}
	s.invalidate()
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct edits a product.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, mapProductErr(err)
	}
	prevSKU := p.SKU
	if err := s.applyProduct(ctx, p, in); err != nil {
		return nil, err
	}
	if p.SKU != prevSKU {
		if err := s.checkSKU(ctx, p.SKU, p.ID); err != nil {
			return nil, err
		}
	}
	if in.Images != nil {
		p.Images = normalizeImages(*in.Images)
	}

	if err := s.products.Update(ctx, p, in.Images != nil); err != nil {
		if errors.Is(err, ErrSKUTaken) {
			return nil, apperr.Invalid("SKU already in use")
		}
		return nil, errors.Wrap(err, "update product")
	}
	s.invalidate()
	return s.GetProduct(ctx, p.ID)
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return mapProductErr(err)
	}
	s.invalidate()
	return nil
}

// LowStock lists active products with stock below threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	list, err := s.products.LowStock(ctx, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "list low stock products")
	}
	return list, nil
}

func (s *Service) applyProduct(ctx context.Context, p *Product, in ProductInput) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return apperr.Invalid("Price must be a positive number")
		}
		p.Price = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return apperr.Invalid("Stock must be a non-negative integer")
		}
		p.Stock = *in.Stock
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			p.CategoryID = nil
			return nil
		}
		if _, err := s.categories.Get(ctx, *in.CategoryID); err != nil {
			return mapCategoryErr(err)
		}
		id := *in.CategoryID
		p.CategoryID = &id
	}
	return nil
}

func (s *Service) checkSKU(ctx context.Context, sku, excludeID string) error {
	exists, err := s.products.SKUExists(ctx, sku, excludeID)
	if err != nil {
		return errors.Wrap(err, "check sku")
	}
	if exists {
		return apperr.Invalid("SKU already in use")
	}
	return nil
}

func (s *Service) invalidate() {
	s.cache.InvalidateContaining("/products", "/promotions")
}

// GenerateSKU derives a SKU from the unix millisecond time.
func GenerateSKU(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "P" + ms
}

// normalizeImages ensures exactly one primary image, the first one unless
// another is flagged, and assigns sort order by position when unset.
func normalizeImages(in []Image) []Image {
	out := make([]Image, len(in))
	copy(out, in)
	primary := -1
	for i := range out {
		if out[i].IsPrimary && primary < 0 {
			primary = i
		}
		out[i].IsPrimary = false
		if out[i].SortOrder == 0 {
			out[i].SortOrder = i
		}
	}
	if len(out) > 0 {
		if primary < 0 {
			primary = 0
		}
		out[primary].IsPrimary = true
	}
	return out
}

func mapProductErr(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return apperr.NotFound("Product not found")
	case errors.Is(err, ErrProductInUse):
		return apperr.Invalid("Product has been ordered and cannot be deleted")
	}
	return errors.Wrap(err, "product")
}

func mapCategoryErr(err error) error {
	if errors.Is(err, ErrCategoryNotFound) {
		return apperr.NotFound("Category not found")
	}
	return errors.Wrap(err, "category")
}
