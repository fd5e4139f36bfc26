package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/internal/domain/apperr"
)

// Service implements cart operations. Stock checks here are advisory;
// checkout re-checks under lock.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a cart Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's cart, creating an empty one if needed.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	id, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "ensure cart")
	}
	c, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// Add puts quantity units of a product into the cart. An existing line is
// merged and its unit price refreshed to the current product price.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, apperr.Invalid("Quantity must be at least 1")
	}

	var cartID string
	err := s.repo.WithinTx(ctx, func(st Store) error {
		p, err := st.Product(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return apperr.NotFound("Product not found")
			}
			return errors.Wrap(err, "get product")
		}
		if !p.IsActive {
			return apperr.Invalid("Product is not available")
		}
		if p.Stock < quantity {
			return apperr.Invalid("Not enough product in stock")
		}

		cartID, err = st.Ensure(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "ensure cart")
		}

		existing, err := st.FindItem(ctx, cartID, productID)
		switch {
		case errors.Is(err, ErrItemNotFound):
			if err := st.InsertItem(ctx, &Item{
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: p.Price,
			}); err != nil {
				return errors.Wrap(err, "insert item")
			}
		case err != nil:
			return errors.Wrap(err, "find item")
		default:
			merged := existing.Quantity + quantity
			if merged > p.Stock {
				return apperr.Invalidf("Only %d items available in stock", p.Stock)
			}
			if err := st.SetItem(ctx, existing.ID, merged, p.Price); err != nil {
				return errors.Wrap(err, "update item")
			}
		}
		return errors.Wrap(st.Touch(ctx, cartID, s.now()), "touch cart")
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

// Update sets a line's quantity. A quantity of zero or less removes it.
func (s *Service) Update(ctx context.Context, userID, itemID string, quantity int) (*Cart, error) {
	var cartID string
	err := s.repo.WithinTx(ctx, func(st Store) error {
		it, err := st.ItemForUser(ctx, userID, itemID)
		if err != nil {
			return mapItemErr(err)
		}
		cartID = it.CartID

		if quantity <= 0 {
			if err := st.DeleteItem(ctx, it.ID); err != nil {
				return errors.Wrap(err, "delete item")
			}
		} else {
			p, err := st.Product(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, ErrProductNotFound) {
					return apperr.NotFound("Product not found")
				}
				return errors.Wrap(err, "get product")
			}
			if quantity > p.Stock {
				return apperr.Invalidf("Only %d items available in stock", p.Stock)
			}
			if err := st.SetItem(ctx, it.ID, quantity, it.UnitPrice); err != nil {
				return errors.Wrap(err, "update item")
			}
		}
		return errors.Wrap(st.Touch(ctx, cartID, s.now()), "touch cart")
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

// Remove deletes a line from the user's cart.
func (s *Service) Remove(ctx context.Context, userID, itemID string) (*Cart, error) {
	var cartID string
	err := s.repo.WithinTx(ctx, func(st Store) error {
		it, err := st.ItemForUser(ctx, userID, itemID)
		if err != nil {
			return mapItemErr(err)
		}
		cartID = it.CartID
		if err := st.DeleteItem(ctx, it.ID); err != nil {
			return errors.Wrap(err, "delete item")
		}
		return errors.Wrap(st.Touch(ctx, cartID, s.now()), "touch cart")
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	var cartID string
	err := s.repo.WithinTx(ctx, func(st Store) error {
		var err error
		cartID, err = st.Ensure(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "ensure cart")
		}
		if err := st.ClearItems(ctx, cartID); err != nil {
			return errors.Wrap(err, "clear items")
		}
		return errors.Wrap(st.Touch(ctx, cartID, s.now()), "touch cart")
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *Service) load(ctx context.Context, cartID string) (*Cart, error) {
	c, err := s.repo.Load(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

func mapItemErr(err error) error {
	if errors.Is(err, ErrItemNotFound) {
		return apperr.NotFound("Cart item not found")
	}
	return errors.Wrap(err, "get cart item")
}
