// Package offering manages the floral services the shop offers, such as
// event decoration or subscriptions.
package offering

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/apperr"
)

// ErrNotFound is returned when no service matches.
var ErrNotFound = errors.New("service not found")

// Image is a service image reference.
type Image struct {
	ID        string
	URL       string
	IsPrimary bool
	SortOrder int
}

// Offering is a bookable floral service.
type Offering struct {
	ID          string
	Name        string
	Description string
	BasePrice   decimal.Decimal
	IsAvailable bool
	Images      []Image
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries service fields. Nil fields are left untouched on update.
// A non-nil Images replaces every image.
type Input struct {
	Name        *string
	Description *string
	BasePrice   *decimal.Decimal
	IsAvailable *bool
	Images      *[]Image
}

// Repository persists services.
type Repository interface {
	// ListAvailable returns available services by ascending base price.
	ListAvailable(ctx context.Context) ([]Offering, error)
	Get(ctx context.Context, id string) (*Offering, error)
	Create(ctx context.Context, o *Offering) error
	Update(ctx context.Context, o *Offering, replaceImages bool) error
	Delete(ctx context.Context, id string) error
}

// Service implements the service catalog.
type Service struct {
	repo Repository
}

// NewService creates an offering Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Available lists bookable services.
func (s *Service) Available(ctx context.Context) ([]Offering, error) {
	list, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list services")
	}
	return list, nil
}

// Get returns a service.
func (s *Service) Get(ctx context.Context, id string) (*Offering, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return o, nil
}

// Create adds a service.
func (s *Service) Create(ctx context.Context, in Input) (*Offering, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Invalid("Service name is required")
	}
	if in.BasePrice == nil {
		return nil, apperr.Invalid("Base price is required")
	}
	o := &Offering{IsAvailable: true}
	if err := apply(o, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create service")
	}
	return o, nil
}

// Update edits a service.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Offering, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(o, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o, in.Images != nil); err != nil {
		return nil, mapErr(err)
	}
	return o, nil
}

// Delete removes a service and its images.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapErr(err)
	}
	return nil
}

func apply(o *Offering, in Input) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.Invalid("Service name cannot be empty")
		}
		o.Name = name
	}
	if in.Description != nil {
		o.Description = *in.Description
	}
	if in.BasePrice != nil {
		if in.BasePrice.IsNegative() {
			return apperr.Invalid("Base price must be a positive number")
		}
		o.BasePrice = *in.BasePrice
	}
	if in.IsAvailable != nil {
		o.IsAvailable = *in.IsAvailable
	}
	if in.Images != nil {
		o.Images = append([]Image(nil), (*in.Images)...)
		primary := false
		for i := range o.Images {
			if o.Images[i].IsPrimary {
				if primary {
					o.Images[i].IsPrimary = false
				}
				primary = true
			}
			if o.Images[i].SortOrder == 0 {
				o.Images[i].SortOrder = i
			}
		}
		if !primary && len(o.Images) > 0 {
			o.Images[0].IsPrimary = true
		}
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Service not found")
	}
	return errors.Wrap(err, "service")
}
