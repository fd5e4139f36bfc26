package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool, db: pool}
}

// WithinTx runs fn with a Store bound to a single transaction.
func (r *CartRepository) WithinTx(ctx context.Context, fn func(s cart.Store) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&CartRepository{pool: r.pool, db: tx})
	})
}

// Ensure returns the user's cart id, creating the cart on first use.
func (r *CartRepository) Ensure(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`, uuid.NewString(), userID).Scan(&id)
	return id, errors.Wrap(err, "ensure cart")
}

const cartItemSelect = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price, ci.created_at,
		p.id, p.name, p.price, p.stock, p.is_active,
		COALESCE((SELECT image_url FROM product_images pi
			WHERE pi.product_id = p.id ORDER BY pi.is_primary DESC, pi.sort_order LIMIT 1), '')
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

func scanCartItem(row pgx.Row) (*cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.CreatedAt,
		&it.Product.ID, &it.Product.Name, &it.Product.Price, &it.Product.Stock, &it.Product.IsActive,
		&it.Product.ImageURL)
	if err != nil {
		return nil, notFound(err, cart.ErrItemNotFound)
	}
	return &it, nil
}

// Load returns the cart with its items in insertion order.
func (r *CartRepository) Load(ctx context.Context, cartID string) (*cart.Cart, error) {
	c := cart.Cart{ID: cartID, Items: []cart.Item{}}
	err := r.db.QueryRow(ctx, `SELECT user_id, updated_at FROM carts WHERE id = $1`, cartID).
		Scan(&c.UserID, &c.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	rows, err := r.db.Query(ctx, cartItemSelect+`
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		it, err := scanCartItem(row)
		if err != nil {
			return cart.Item{}, err
		}
		return *it, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan cart items")
	}
	return &c, nil
}

// Product reads the product row with a share lock so its stock cannot change
// under the cart mutation.
func (r *CartRepository) Product(ctx context.Context, productID string) (*cart.Product, error) {
	var p cart.Product
	err := r.db.QueryRow(ctx, `
		SELECT id, name, price, stock, is_active FROM products
		WHERE id = $1 FOR SHARE`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive)
	if err != nil {
		return nil, notFound(err, cart.ErrProductNotFound)
	}
	return &p, nil
}

func (r *CartRepository) FindItem(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	return scanCartItem(r.db.QueryRow(ctx, cartItemSelect+`
		WHERE ci.cart_id = $1 AND ci.product_id = $2`, cartID, productID))
}

func (r *CartRepository) ItemForUser(ctx context.Context, userID, itemID string) (*cart.Item, error) {
	return scanCartItem(r.db.QueryRow(ctx, cartItemSelect+`
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2`, itemID, userID))
}

func (r *CartRepository) InsertItem(ctx context.Context, it *cart.Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		it.ID, it.CartID, it.ProductID, it.Quantity, it.UnitPrice,
	).Scan(&it.CreatedAt)
	return errors.Wrap(err, "insert cart item")
}

func (r *CartRepository) SetItem(ctx context.Context, itemID string, quantity int, unitPrice decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $2, unit_price = $3, updated_at = now()
		WHERE id = $1`, itemID, quantity, unitPrice)
	return errors.Wrap(err, "update cart item")
}

func (r *CartRepository) DeleteItem(ctx context.Context, itemID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	return errors.Wrap(err, "delete cart item")
}

func (r *CartRepository) ClearItems(ctx context.Context, cartID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return errors.Wrap(err, "clear cart")
}

func (r *CartRepository) Touch(ctx context.Context, cartID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, at)
	return errors.Wrap(err, "touch cart")
}
