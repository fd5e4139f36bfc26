package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/quote"
	"github.com/xenking/chezflora/pkg/paging"
)

var _ quote.Repository = (*QuoteRepository)(nil)

// QuoteRepository implements quote.Repository backed by PostgreSQL.
type QuoteRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// NewQuoteRepository returns a QuoteRepository that uses the given pool.
func NewQuoteRepository(pool *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{pool: pool, db: pool}
}

// WithinTx runs fn with a Store bound to a single transaction.
func (r *QuoteRepository) WithinTx(ctx context.Context, fn func(s quote.Store) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&QuoteRepository{pool: r.pool, db: tx})
	})
}

const quoteSelect = `
	SELECT q.id, q.user_id, q.status, q.description, q.event_type, q.event_date, q.budget,
		q.client_comment, q.admin_comment, q.validity_date, q.created_at, q.updated_at,
		u.first_name, u.last_name, u.email
	FROM quotes q
	JOIN users u ON u.id = q.user_id`

func scanQuote(row pgx.Row) (*quote.Quote, error) {
	var (
		q quote.Quote
		c quote.Customer
	)
	err := row.Scan(&q.ID, &q.UserID, &q.Status, &q.Description, &q.EventType, &q.EventDate, &q.Budget,
		&q.ClientComment, &q.AdminComment, &q.ValidityDate, &q.CreatedAt, &q.UpdatedAt,
		&c.FirstName, &c.LastName, &c.Email)
	if err != nil {
		return nil, notFound(err, quote.ErrNotFound)
	}
	q.Customer = &c
	return &q, nil
}

func (r *QuoteRepository) one(ctx context.Context, sql string, args ...any) (*quote.Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, err
	}
	list := []quote.Quote{*q}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *QuoteRepository) attachItems(ctx context.Context, list []quote.Quote) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, q := range list {
		ids[i] = q.ID
		idx[q.ID] = i
		list[i].Items = []quote.Item{}
	}
	rows, err := r.db.Query(ctx, `
		SELECT quote_id, id, description, quantity, unit_price
		FROM quote_items
		WHERE quote_id = ANY($1)
		ORDER BY position, id`, ids)
	if err != nil {
		return errors.Wrap(err, "list quote items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			quoteID string
			it      quote.Item
		)
		if err := rows.Scan(&quoteID, &it.ID, &it.Description, &it.Quantity, &it.UnitPrice); err != nil {
			return errors.Wrap(err, "scan quote item")
		}
		i := idx[quoteID]
		list[i].Items = append(list[i].Items, it)
	}
	return errors.Wrap(rows.Err(), "iterate quote items")
}

func (r *QuoteRepository) Get(ctx context.Context, id string) (*quote.Quote, error) {
	return r.one(ctx, quoteSelect+` WHERE q.id = $1`, id)
}

// Lock reads the quote holding a row lock until the transaction ends.
func (r *QuoteRepository) Lock(ctx context.Context, id string) (*quote.Quote, error) {
	return r.one(ctx, quoteSelect+` WHERE q.id = $1 FOR UPDATE OF q`, id)
}

func (r *QuoteRepository) List(ctx context.Context, f quote.Filter, page paging.Page) ([]quote.Quote, int, error) {
	var w where
	if f.UserID != "" {
		w.add("q.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		w.add("q.status = ?", f.Status)
	}
	if f.EventType != "" {
		w.add("q.event_type = ?", f.EventType)
	}
	if f.From != nil {
		w.add("q.created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("q.created_at <= ?", *f.To)
	}

	total, err := count(ctx, r.db, `SELECT count(*) FROM quotes q`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	sql := quoteSelect + w.String() + ` ORDER BY q.created_at DESC, q.id` + w.page(page.Limit, page.Offset())
	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list quotes")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quote.Quote, error) {
		q, err := scanQuote(row)
		if err != nil {
			return quote.Quote{}, err
		}
		return *q, nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan quotes")
	}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *QuoteRepository) Insert(ctx context.Context, q *quote.Quote) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotes (id, user_id, status, description, event_type, event_date, budget,
			client_comment, admin_comment, validity_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		q.ID, q.UserID, q.Status, q.Description, q.EventType, q.EventDate, q.Budget,
		q.ClientComment, q.AdminComment, q.ValidityDate,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	return errors.Wrap(err, "insert quote")
}

func (r *QuoteRepository) Update(ctx context.Context, q *quote.Quote) error {
	err := r.db.QueryRow(ctx, `
		UPDATE quotes SET status = $2, description = $3, event_type = $4, event_date = $5, budget = $6,
			client_comment = $7, admin_comment = $8, validity_date = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		q.ID, q.Status, q.Description, q.EventType, q.EventDate, q.Budget,
		q.ClientComment, q.AdminComment, q.ValidityDate,
	).Scan(&q.UpdatedAt)
	return notFound(errors.Wrap(err, "update quote"), quote.ErrNotFound)
}

// ReplaceItems deletes every item of the quote and inserts items in order.
func (r *QuoteRepository) ReplaceItems(ctx context.Context, quoteID string, items []quote.Item) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return errors.Wrap(err, "delete quote items")
	}
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO quote_items (id, quote_id, description, quantity, unit_price, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, quoteID, it.Description, it.Quantity, it.UnitPrice, i)
		if err != nil {
			return errors.Wrap(err, "insert quote item")
		}
	}
	return nil
}
