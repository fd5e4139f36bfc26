// Package cart maintains the single active cart of each user.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when the referenced product is missing.
	ErrProductNotFound = errors.New("product not found")
	// ErrItemNotFound is returned when no cart line matches.
	ErrItemNotFound = errors.New("cart item not found")
)

// Product is the product state a cart needs for validation and display.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int
	IsActive bool
	ImageURL string
}

// Item is a cart line. UnitPrice is the product price captured when the line
// was added or last merged.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Product   Product
	CreatedAt time.Time
}

// Subtotal returns Quantity × UnitPrice.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a user's pre-checkout collection.
type Cart struct {
	ID        string
	UserID    string
	Items     []Item
	UpdatedAt time.Time
}

// Total sums the line subtotals rounded to cents.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

// ItemCount is the number of distinct lines.
func (c Cart) ItemCount() int {
	return len(c.Items)
}

// Store is the transactional subset of Repository.
type Store interface {
	// Ensure returns the id of the user's cart, creating it on first use.
	Ensure(ctx context.Context, userID string) (string, error)
	Load(ctx context.Context, cartID string) (*Cart, error)
	Product(ctx context.Context, productID string) (*Product, error)
	FindItem(ctx context.Context, cartID, productID string) (*Item, error)
	// ItemForUser returns the line only if it belongs to the user's cart.
	ItemForUser(ctx context.Context, userID, itemID string) (*Item, error)
	InsertItem(ctx context.Context, it *Item) error
	SetItem(ctx context.Context, itemID string, quantity int, unitPrice decimal.Decimal) error
	DeleteItem(ctx context.Context, itemID string) error
	ClearItems(ctx context.Context, cartID string) error
	Touch(ctx context.Context, cartID string, at time.Time) error
}

// Repository persists carts.
type Repository interface {
	Store
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
