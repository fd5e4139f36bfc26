package address

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

// Input carries the editable address fields. Nil fields are left untouched
// on update.
type Input struct {
	AddressName  *string
	FirstName    *string
	LastName     *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	PostalCode   *string
	Country      *string
	Phone        *string
	IsDefault    *bool
}

func (in Input) apply(a *Address) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.AddressName, in.AddressName)
	set(&a.FirstName, in.FirstName)
	set(&a.LastName, in.LastName)
	set(&a.AddressLine1, in.AddressLine1)
	set(&a.AddressLine2, in.AddressLine2)
	set(&a.City, in.City)
	set(&a.PostalCode, in.PostalCode)
	set(&a.Country, in.Country)
	set(&a.Phone, in.Phone)
}

func validate(a *Address) error {
	if a.FirstName == "" || a.LastName == "" || a.AddressLine1 == "" ||
		a.City == "" || a.PostalCode == "" || a.Country == "" {
		return apperr.Invalid("First name, last name, address line 1, city, postal code and country are required")
	}
	return nil
}

// Service implements the address book operations.
type Service struct {
	repo Repository
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's addresses, default first then newest.
func (s *Service) List(ctx context.Context, userID string, page paging.Page) ([]Address, paging.Meta, error) {
	list, total, err := s.repo.List(ctx, userID, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list addresses")
	}
	return list, paging.NewMeta(page, total), nil
}

// Get returns one of the user's addresses.
func (s *Service) Get(ctx context.Context, userID, id string) (*Address, error) {
	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

// Create adds an address. The user's first address always becomes default.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Address, error) {
	a := &Address{UserID: userID}
	in.apply(a)
	if err := validate(a); err != nil {
		return nil, err
	}

	err := s.repo.WithinTx(ctx, func(st Store) error {
		n, err := st.Count(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "count addresses")
		}
		a.IsDefault = n == 0 || (in.IsDefault != nil && *in.IsDefault)
		if a.IsDefault {
			if err := st.ClearDefault(ctx, userID, ""); err != nil {
				return errors.Wrap(err, "clear default")
			}
		}
		return errors.Wrap(st.Insert(ctx, a), "insert address")
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Update edits an address. Passing IsDefault=true moves the default flag to
// it. The current default cannot be unset directly; set another one instead.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*Address, error) {
	var out *Address
	err := s.repo.WithinTx(ctx, func(st Store) error {
		a, err := st.Get(ctx, userID, id)
		if err != nil {
			return mapNotFound(err)
		}
		in.apply(a)
		if err := validate(a); err != nil {
			return err
		}
		if in.IsDefault != nil && *in.IsDefault && !a.IsDefault {
			if err := st.ClearDefault(ctx, userID, a.ID); err != nil {
				return errors.Wrap(err, "clear default")
			}
			a.IsDefault = true
		}
		if err := st.Update(ctx, a); err != nil {
			return errors.Wrap(err, "update address")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an address. Deleting the default promotes the most recently
// created remaining address. The sole remaining address cannot be deleted
// while it is the default.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.WithinTx(ctx, func(st Store) error {
		a, err := st.Get(ctx, userID, id)
		if err != nil {
			return mapNotFound(err)
		}
		if !a.IsDefault {
			return mapDeleteErr(st.Delete(ctx, userID, id))
		}

		n, err := st.Count(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "count addresses")
		}
		if n <= 1 {
			return apperr.Invalid("Cannot delete default address")
		}
		if err := st.Delete(ctx, userID, id); err != nil {
			return mapDeleteErr(err)
		}
		next, err := st.MostRecent(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "find replacement default")
		}
		return errors.Wrap(st.SetDefault(ctx, userID, next.ID), "promote default")
	})
}

// SetDefault makes the address the user's default.
func (s *Service) SetDefault(ctx context.Context, userID, id string) (*Address, error) {
	var out *Address
	err := s.repo.WithinTx(ctx, func(st Store) error {
		a, err := st.Get(ctx, userID, id)
		if err != nil {
			return mapNotFound(err)
		}
		if err := st.ClearDefault(ctx, userID, id); err != nil {
			return errors.Wrap(err, "clear default")
		}
		if err := st.SetDefault(ctx, userID, id); err != nil {
			return errors.Wrap(err, "set default")
		}
		a.IsDefault = true
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mapDeleteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInUse):
		return apperr.Invalid("Address is used by an order")
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Address not found")
	default:
		return errors.Wrap(err, "delete address")
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Address not found")
	}
	return errors.Wrap(err, "get address")
}
