package promotion

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/pkg/paging"
)

// Pricer attaches promotional pricing to products.
type Pricer interface {
	AttachPricing(ctx context.Context, products []catalog.Product) error
}

// Input carries promotion fields. Nil fields are left untouched on update.
// A non-nil ProductIDs replaces the full association list.
type Input struct {
	Name          *string
	Description   *string
	DiscountType  *pricing.DiscountType
	DiscountValue *decimal.Decimal
	StartDate     *time.Time
	EndDate       *time.Time
	IsActive      *bool
	ProductIDs    *[]string
}

// Service implements promotion reads and admin writes. Every successful
// mutation drops cached product and promotion responses.
type Service struct {
	repo   Repository
	pricer Pricer
	cache  catalog.Invalidator
	now    func() time.Time
}

// NewService creates a promotion Service.
func NewService(repo Repository, pricer Pricer, cache catalog.Invalidator) *Service {
	return &Service{
		repo:   repo,
		pricer: pricer,
		cache:  cache,
		now:    time.Now,
	}
}

// Active lists promotions currently in effect.
func (s *Service) Active(ctx context.Context) ([]Promotion, error) {
	list, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}
	return list, nil
}

// Get returns a promotion with its products.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// Products lists the products of a promotion with their effective pricing.
func (s *Service) Products(ctx context.Context, id string, page paging.Page) ([]catalog.Product, paging.Meta, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, paging.Meta{}, err
	}
	list, total, err := s.repo.Products(ctx, id, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list promotion products")
	}
	if err := s.pricer.AttachPricing(ctx, list); err != nil {
		return nil, paging.Meta{}, err
	}
	return list, paging.NewMeta(page, total), nil
}

// List returns a page of promotions for administration.
func (s *Service) List(ctx context.Context, f Filter, page paging.Page) ([]Promotion, paging.Meta, error) {
	list, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list promotions")
	}
	return list, paging.NewMeta(page, total), nil
}

// Create adds a promotion and, optionally, its products in one transaction.
func (s *Service) Create(ctx context.Context, in Input) (*Promotion, error) {
	p := &Promotion{IsActive: true}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Invalid("Promotion name is required")
	}
	if in.DiscountType == nil {
		return nil, apperr.Invalid("Discount type is required")
	}
	if in.DiscountValue == nil {
		return nil, apperr.Invalid("Discount value is required")
	}
	if in.StartDate == nil {
		return nil, apperr.Invalid("Start date is required")
	}
	if in.EndDate == nil {
		return nil, apperr.Invalid("End date is required")
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}

	err := s.repo.WithinTx(ctx, func(st Store) error {
		if err := st.Insert(ctx, p); err != nil {
			return errors.Wrap(err, "insert promotion")
		}
		if in.ProductIDs != nil && len(*in.ProductIDs) > 0 {
			if err := st.SetProducts(ctx, p.ID, dedupe(*in.ProductIDs)); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return s.Get(ctx, p.ID)
}

// Update edits a promotion. Dates are validated against the merged result.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Promotion, error) {
	err := s.repo.WithinTx(ctx, func(st Store) error {
		p, err := st.Get(ctx, id)
		if err != nil {
			return mapErr(err)
		}
		if err := apply(p, in); err != nil {
			return err
		}
		if err := st.Update(ctx, p); err != nil {
			return errors.Wrap(err, "update promotion")
		}
		if in.ProductIDs != nil {
			if err := st.SetProducts(ctx, id, dedupe(*in.ProductIDs)); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return s.Get(ctx, id)
}

// Delete removes a promotion and its associations.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapErr(err)
	}
	s.invalidate()
	return nil
}

// AddProducts associates products with a promotion. Existing associations
// are kept.
func (s *Service) AddProducts(ctx context.Context, id string, productIDs []string) (*Promotion, error) {
	return s.changeProducts(ctx, id, productIDs, Store.AddProducts)
}

// RemoveProducts detaches products from a promotion.
func (s *Service) RemoveProducts(ctx context.Context, id string, productIDs []string) (*Promotion, error) {
	return s.changeProducts(ctx, id, productIDs, Store.RemoveProducts)
}

func (s *Service) changeProducts(
	ctx context.Context,
	id string,
	productIDs []string,
	op func(Store, context.Context, string, []string) error,
) (*Promotion, error) {
	if len(productIDs) == 0 {
		return nil, apperr.Invalid("Product IDs array is required")
	}
	err := s.repo.WithinTx(ctx, func(st Store) error {
		if _, err := st.Get(ctx, id); err != nil {
			return mapErr(err)
		}
		if err := op(st, ctx, id, dedupe(productIDs)); err != nil {
			return mapErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return s.Get(ctx, id)
}

func (s *Service) invalidate() {
	s.cache.InvalidateContaining("/products", "/promotions")
}

func apply(p *Promotion, in Input) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if n := utf8.RuneCountInString(name); n < 2 || n > 255 {
			return apperr.Invalid("Name must be between 2 and 255 characters")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.DiscountType != nil {
		if !in.DiscountType.Valid() {
			return apperr.Invalid("Discount type must be either percentage or fixed_amount")
		}
		p.DiscountType = *in.DiscountType
	}
	if in.DiscountValue != nil {
		if in.DiscountValue.IsNegative() {
			return apperr.Invalid("Discount value must be a positive number")
		}
		p.DiscountValue = *in.DiscountValue
	}
	if in.StartDate != nil {
		p.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = *in.EndDate
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if !p.EndDate.After(p.StartDate) {
		return apperr.Invalid("End date must be after start date")
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Promotion not found")
	case errors.Is(err, ErrUnknownProduct):
		return apperr.Invalid("One or more products not found")
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return errors.Wrap(err, "promotion")
}
