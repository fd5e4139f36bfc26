// Package address manages user address books.
//
// Each user has at most one default address. The invariant is kept by the
// service inside a single transaction per write.
package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/pkg/paging"
)

// ErrNotFound is returned when the address does not exist or belongs to
// another user.
var ErrNotFound = errors.New("address not found")

// ErrInUse is returned when deleting an address an order still references.
var ErrInUse = errors.New("address referenced by an order")

// Address is a postal address in a user's address book.
type Address struct {
	ID           string
	UserID       string
	AddressName  string
	FirstName    string
	LastName     string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	Country      string
	Phone        string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the transaction-scoped view of the address table.
type Store interface {
	Get(ctx context.Context, userID, id string) (*Address, error)
	Count(ctx context.Context, userID string) (int, error)
	Insert(ctx context.Context, a *Address) error
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, userID, id string) error
	// ClearDefault unsets is_default on every address of userID except
	// exceptID (which may be empty).
	ClearDefault(ctx context.Context, userID, exceptID string) error
	SetDefault(ctx context.Context, userID, id string) error
	// MostRecent returns the newest address of userID, or ErrNotFound.
	MostRecent(ctx context.Context, userID string) (*Address, error)
}

// Repository persists addresses.
type Repository interface {
	Store
	List(ctx context.Context, userID string, page paging.Page) ([]Address, int, error)
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
