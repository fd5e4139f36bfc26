package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/internal/domain/order"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Tx         = (*orderTx)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithinTx runs fn inside a single transaction.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

const orderColumns = `id, user_id, order_number, status, payment_status, payment_method, total_amount,
	shipping_address_id, billing_address_id, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.TotalAmount, &o.ShippingAddressID, &o.BillingAddressID, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err, order.ErrNotFound)
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter, page paging.Page) ([]order.Order, int, error) {
	var w where
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		w.add("payment_status = ?", f.PaymentStatus)
	}
	if f.OrderNumber != "" {
		w.add("order_number ILIKE ?", likePattern(f.OrderNumber))
	}

	total, err := count(ctx, r.pool, `SELECT count(*) FROM orders`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	sql := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		` ORDER BY created_at DESC, id` + w.page(page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return order.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}
	if err := attachOrderItems(ctx, r.pool, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get returns the order with its items and both addresses.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	one := []order.Order{*o}
	if err := attachOrderItems(ctx, r.pool, one); err != nil {
		return nil, err
	}
	o = &one[0]

	addresses := &AddressRepository{pool: r.pool, db: r.pool}
	o.ShippingAddress, err = addresses.Get(ctx, o.UserID, o.ShippingAddressID)
	if err != nil && !errors.Is(err, address.ErrNotFound) {
		return nil, errors.Wrap(err, "get shipping address")
	}
	o.BillingAddress, err = addresses.Get(ctx, o.UserID, o.BillingAddressID)
	if err != nil && !errors.Is(err, address.ErrNotFound) {
		return nil, errors.Wrap(err, "get billing address")
	}
	return o, nil
}

func attachOrderItems(ctx context.Context, q querier, list []order.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
		list[i].Items = []order.Item{}
	}
	rows, err := q.Query(ctx, `
		SELECT oi.order_id, oi.id, oi.product_id, oi.product_name, oi.quantity, oi.unit_price,
			COALESCE((SELECT image_url FROM product_images pi
				WHERE pi.product_id = oi.product_id ORDER BY pi.is_primary DESC, pi.sort_order LIMIT 1), '')
		FROM order_items oi
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.product_name, oi.id`, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice,
			&it.ImageURL); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := idx[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return errors.Wrap(rows.Err(), "iterate order items")
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) AddressOwned(ctx context.Context, userID, addressID string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`, addressID, userID,
	).Scan(&ok)
	return ok, errors.Wrap(err, "check address")
}

// CartLines reads the user's cart and locks every referenced product row
// until the transaction ends.
func (t *orderTx) CartLines(ctx context.Context, userID string) ([]order.CartLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT p.id, p.name, ci.quantity, ci.unit_price, p.stock
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY ci.created_at, ci.id
		FOR UPDATE OF p`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart lines")
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.CartLine, error) {
		var l order.CartLine
		err := row.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Stock)
		return l, err
	})
	return lines, errors.Wrap(err, "scan cart lines")
}

// Insert writes the order and its items. A taken order number yields
// order.ErrDuplicateNumber without aborting the transaction.
func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, order_number, status, payment_status, payment_method, total_amount,
			shipping_address_id, billing_address_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.OrderNumber, o.Status, o.PaymentStatus, o.PaymentMethod, o.TotalAmount,
		o.ShippingAddressID, o.BillingAddressID, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrDuplicateNumber
	}
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice)
	}
	return errors.Wrap(t.tx.SendBatch(ctx, batch).Close(), "insert order items")
}

func (t *orderTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, delta)
	if err != nil {
		return errors.Wrap(err, "adjust stock")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("product %s not found", productID)
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`, userID)
	return errors.Wrap(err, "clear cart")
}

// Lock reads the order with its items, holding a row lock on the order.
func (t *orderTx) Lock(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	one := []order.Order{*o}
	if err := attachOrderItems(ctx, t.tx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (t *orderTx) SetStatus(ctx context.Context, id string, status order.Status, payment order.PaymentStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1`, id, status, payment)
	if err != nil {
		return errors.Wrap(err, "set order status")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
