package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/pkg/paging"
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool, db: pool}
}

// WithinTx runs fn with a Store bound to a single transaction.
func (r *AddressRepository) WithinTx(ctx context.Context, fn func(s address.Store) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&AddressRepository{pool: r.pool, db: tx})
	})
}

const addressColumns = `id, user_id, address_name, first_name, last_name, address_line1, address_line2,
	city, postal_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.AddressName, &a.FirstName, &a.LastName, &a.AddressLine1,
		&a.AddressLine2, &a.City, &a.PostalCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err, address.ErrNotFound)
	}
	return &a, nil
}

func collectAddresses(rows pgx.Rows) ([]address.Address, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (address.Address, error) {
		a, err := scanAddress(row)
		if err != nil {
			return address.Address{}, err
		}
		return *a, nil
	})
}

// List returns the user's addresses, default first, then newest.
func (r *AddressRepository) List(ctx context.Context, userID string, page paging.Page) ([]address.Address, int, error) {
	total, err := r.Count(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
		LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list addresses")
	}
	list, err := collectAddresses(rows)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan addresses")
	}
	return list, total, nil
}

// Get locks the row when called inside a transaction.
func (r *AddressRepository) Get(ctx context.Context, userID, id string) (*address.Address, error) {
	lock := ""
	if _, ok := r.db.(pgx.Tx); ok {
		lock = " FOR UPDATE"
	}
	return scanAddress(r.db.QueryRow(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE id = $1 AND user_id = $2`+lock, id, userID))
}

func (r *AddressRepository) Count(ctx context.Context, userID string) (int, error) {
	return count(ctx, r.db, `SELECT count(*) FROM addresses WHERE user_id = $1`, userID)
}

func (r *AddressRepository) Insert(ctx context.Context, a *address.Address) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO addresses (id, user_id, address_name, first_name, last_name, address_line1,
			address_line2, city, postal_code, country, phone, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.AddressName, a.FirstName, a.LastName, a.AddressLine1,
		a.AddressLine2, a.City, a.PostalCode, a.Country, a.Phone, a.IsDefault,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return errors.Wrap(err, "insert address")
}

func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	err := r.db.QueryRow(ctx, `
		UPDATE addresses SET address_name = $3, first_name = $4, last_name = $5, address_line1 = $6,
			address_line2 = $7, city = $8, postal_code = $9, country = $10, phone = $11,
			is_default = $12, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		a.ID, a.UserID, a.AddressName, a.FirstName, a.LastName, a.AddressLine1,
		a.AddressLine2, a.City, a.PostalCode, a.Country, a.Phone, a.IsDefault,
	).Scan(&a.UpdatedAt)
	return notFound(errors.Wrap(err, "update address"), address.ErrNotFound)
}

func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if isForeignKeyViolation(err) {
		return address.ErrInUse
	}
	if err != nil {
		return errors.Wrap(err, "delete address")
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

// ClearDefault unsets is_default on all of the user's addresses except
// exceptID.
func (r *AddressRepository) ClearDefault(ctx context.Context, userID, exceptID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE addresses SET is_default = FALSE, updated_at = now()
		WHERE user_id = $1 AND id <> $2 AND is_default`, userID, exceptID)
	return errors.Wrap(err, "clear default")
}

func (r *AddressRepository) SetDefault(ctx context.Context, userID, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE addresses SET is_default = TRUE, updated_at = now()
		WHERE id = $1 AND user_id = $2`, id, userID)
	return errors.Wrap(err, "set default")
}

func (r *AddressRepository) MostRecent(ctx context.Context, userID string) (*address.Address, error) {
	return scanAddress(r.db.QueryRow(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, userID))
}
