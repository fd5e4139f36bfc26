// Package order turns carts into immutable orders and tracks their lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	// ErrNotFound is returned when no order matches.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateNumber is returned when an order number is already taken.
	ErrDuplicateNumber = errors.New("order number already taken")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// Cancellable reports whether a customer may still cancel.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Item is an order line with the price captured at checkout.
type Item struct {
	ID          string
	ProductID   string
	ProductName string
	ImageURL    string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns Quantity × UnitPrice.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a completed checkout.
type Order struct {
	ID                string
	UserID            string
	OrderNumber       string
	Status            Status
	PaymentStatus     PaymentStatus
	PaymentMethod     string
	TotalAmount       decimal.Decimal
	ShippingAddressID string
	BillingAddressID  string
	Notes             string
	Items             []Item
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Populated on detail reads.
	ShippingAddress *address.Address
	BillingAddress  *address.Address
}

// CartLine is a cart entry read at checkout together with the live stock of
// its product.
type CartLine struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Stock       int
}

// Filter narrows order listings. Empty fields match everything.
type Filter struct {
	UserID        string
	Status        Status
	PaymentStatus PaymentStatus
	OrderNumber   string
}

// Tx is the set of operations available inside a checkout or cancellation
// transaction.
type Tx interface {
	AddressOwned(ctx context.Context, userID, addressID string) (bool, error)
	// CartLines returns the user's cart lines, locking the product rows.
	CartLines(ctx context.Context, userID string) ([]CartLine, error)
	// Insert stores the order and its items. It returns ErrDuplicateNumber
	// without aborting the transaction when the number is taken.
	Insert(ctx context.Context, o *Order) error
	AdjustStock(ctx context.Context, productID string, delta int) error
	ClearCart(ctx context.Context, userID string) error
	// Lock returns the order with items, locking the row.
	Lock(ctx context.Context, id string) (*Order, error)
	SetStatus(ctx context.Context, id string, status Status, payment PaymentStatus) error
}

// Repository persists orders.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	List(ctx context.Context, f Filter, page paging.Page) ([]Order, int, error)
	// Get returns the order with items and addresses.
	Get(ctx context.Context, id string) (*Order, error)
}
