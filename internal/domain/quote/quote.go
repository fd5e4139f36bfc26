// Package quote implements custom event quotes priced by the shop.
package quote

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/pkg/paging"
)

// ErrNotFound is returned when no quote matches.
var ErrNotFound = errors.New("quote not found")

// Status is the position of a quote in its lifecycle.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusAccepted   Status = "accepted"
	StatusDeclined   Status = "declined"
	StatusExpired    Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusProcessing, StatusSent, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Item is a priced line attached by the shop.
type Item struct {
	ID          string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns Quantity × UnitPrice.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer identifies the requester on admin views.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
}

// Quote is a client request for a custom arrangement.
type Quote struct {
	ID            string
	UserID        string
	Status        Status
	Description   string
	EventType     string
	EventDate     *time.Time
	Budget        *decimal.Decimal
	ClientComment string
	AdminComment  string
	ValidityDate  *time.Time
	Items         []Item
	Customer      *Customer
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Total sums item subtotals rounded to cents.
func (q Quote) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

// Filter narrows quote listings. Zero fields match everything.
type Filter struct {
	UserID    string
	Status    Status
	EventType string
	From      *time.Time
	To        *time.Time
}

// Store is the transactional subset of Repository.
type Store interface {
	// Lock returns the quote with items, locking the row.
	Lock(ctx context.Context, id string) (*Quote, error)
	Insert(ctx context.Context, q *Quote) error
	Update(ctx context.Context, q *Quote) error
	ReplaceItems(ctx context.Context, quoteID string, items []Item) error
}

// Repository persists quotes.
type Repository interface {
	Store
	// Get returns the quote with items and customer.
	Get(ctx context.Context, id string) (*Quote, error)
	List(ctx context.Context, f Filter, page paging.Page) ([]Quote, int, error)
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
