package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/internal/domain/promotion"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	_ promotion.Repository     = (*PromotionRepository)(nil)
	_ catalog.PromotionSource = (*PromotionRepository)(nil)
)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// NewPromotionRepository returns a PromotionRepository that uses the given
// pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool, db: pool}
}

// WithinTx runs fn with a Store bound to a single transaction.
func (r *PromotionRepository) WithinTx(ctx context.Context, fn func(s promotion.Store) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PromotionRepository{pool: r.pool, db: tx})
	})
}

const promotionColumns = `id, name, description, discount_type, discount_value, start_date, end_date,
	is_active, created_at, updated_at`

func scanPromotion(row pgx.Row) (*promotion.Promotion, error) {
	var p promotion.Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DiscountType, &p.DiscountValue, &p.StartDate,
		&p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, promotion.ErrNotFound)
	}
	return &p, nil
}

func (r *PromotionRepository) collect(ctx context.Context, rows pgx.Rows) ([]promotion.Promotion, error) {
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.Promotion, error) {
		p, err := scanPromotion(row)
		if err != nil {
			return promotion.Promotion{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan promotions")
	}
	if err := r.attachProducts(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PromotionRepository) attachProducts(ctx context.Context, list []promotion.Promotion) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, p := range list {
		ids[i] = p.ID
		idx[p.ID] = i
		list[i].Products = []promotion.ProductSummary{}
	}
	rows, err := r.db.Query(ctx, `
		SELECT pp.promotion_id, p.id, p.name, p.price, p.stock
		FROM product_promotions pp
		JOIN products p ON p.id = pp.product_id
		WHERE pp.promotion_id = ANY($1)
		ORDER BY p.name`, ids)
	if err != nil {
		return errors.Wrap(err, "list promotion products")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			promoID string
			s       promotion.ProductSummary
		)
		if err := rows.Scan(&promoID, &s.ID, &s.Name, &s.Price, &s.Stock); err != nil {
			return errors.Wrap(err, "scan promotion product")
		}
		i := idx[promoID]
		list[i].Products = append(list[i].Products, s)
	}
	return errors.Wrap(rows.Err(), "iterate promotion products")
}

// ListActive returns promotions whose window contains now, newest first.
func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+promotionColumns+` FROM promotions
		WHERE is_active AND start_date <= $1 AND end_date >= $1
		ORDER BY created_at DESC`, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}
	return r.collect(ctx, rows)
}

func (r *PromotionRepository) List(ctx context.Context, f promotion.Filter, page paging.Page) ([]promotion.Promotion, int, error) {
	var w where
	if f.IsActive != nil {
		w.add("is_active = ?", *f.IsActive)
	}
	total, err := count(ctx, r.db, `SELECT count(*) FROM promotions`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	sql := `SELECT ` + promotionColumns + ` FROM promotions` + w.String() +
		` ORDER BY created_at DESC` + w.page(page.Limit, page.Offset())
	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list promotions")
	}
	list, err := r.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Products returns a page of the active products attached to a promotion.
func (r *PromotionRepository) Products(ctx context.Context, id string, page paging.Page) ([]catalog.Product, int, error) {
	total, err := count(ctx, r.db, `
		SELECT count(*) FROM product_promotions pp
		JOIN products p ON p.id = pp.product_id
		WHERE pp.promotion_id = $1 AND p.is_active`, id)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, productSelect+`
		JOIN product_promotions pp ON pp.product_id = p.id
		WHERE pp.promotion_id = $1 AND p.is_active
		ORDER BY p.name, p.id
		LIMIT $2 OFFSET $3`, id, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list promotion products")
	}
	list, err := collectProducts(rows)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan products")
	}
	products := &ProductRepository{pool: r.pool}
	if err := products.attachImages(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// RulesForProducts returns the enabled promotion rules attached to each of
// productIDs. Window filtering is left to the pricing engine.
func (r *PromotionRepository) RulesForProducts(ctx context.Context, productIDs []string) (map[string][]pricing.Rule, error) {
	out := make(map[string][]pricing.Rule)
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT pp.product_id, pr.id, pr.name, pr.discount_type, pr.discount_value,
			pr.start_date, pr.end_date, pr.is_active
		FROM product_promotions pp
		JOIN promotions pr ON pr.id = pp.promotion_id
		WHERE pp.product_id = ANY($1) AND pr.is_active
		ORDER BY pr.created_at`, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "load promotion rules")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID string
			rule      pricing.Rule
		)
		if err := rows.Scan(&productID, &rule.PromotionID, &rule.Name, &rule.DiscountType, &rule.Value,
			&rule.StartDate, &rule.EndDate, &rule.IsActive); err != nil {
			return nil, errors.Wrap(err, "scan rule")
		}
		out[productID] = append(out[productID], rule)
	}
	return out, errors.Wrap(rows.Err(), "iterate rules")
}

// Get locks the row when called inside a transaction.
func (r *PromotionRepository) Get(ctx context.Context, id string) (*promotion.Promotion, error) {
	lock := ""
	if _, ok := r.db.(pgx.Tx); ok {
		lock = " FOR UPDATE"
	}
	p, err := scanPromotion(r.db.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`+lock, id))
	if err != nil {
		return nil, err
	}
	one := []promotion.Promotion{*p}
	if err := r.attachProducts(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (r *PromotionRepository) Insert(ctx context.Context, p *promotion.Promotion) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO promotions (id, name, description, discount_type, discount_value, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.DiscountType, p.DiscountValue, p.StartDate, p.EndDate, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return errors.Wrap(err, "insert promotion")
}

func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	err := r.db.QueryRow(ctx, `
		UPDATE promotions SET name = $2, description = $3, discount_type = $4, discount_value = $5,
			start_date = $6, end_date = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.DiscountType, p.DiscountValue, p.StartDate, p.EndDate, p.IsActive,
	).Scan(&p.UpdatedAt)
	return notFound(errors.Wrap(err, "update promotion"), promotion.ErrNotFound)
}

func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete promotion")
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// SetProducts replaces the promotion's product set.
func (r *PromotionRepository) SetProducts(ctx context.Context, id string, productIDs []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_promotions WHERE promotion_id = $1`, id); err != nil {
		return errors.Wrap(err, "clear promotion products")
	}
	return r.AddProducts(ctx, id, productIDs)
}

// AddProducts links products to the promotion. Already linked products are
// skipped.
func (r *PromotionRepository) AddProducts(ctx context.Context, id string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO product_promotions (promotion_id, product_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, id, productIDs)
	if isForeignKeyViolation(err) {
		return promotion.ErrUnknownProduct
	}
	return errors.Wrap(err, "link promotion products")
}

func (r *PromotionRepository) RemoveProducts(ctx context.Context, id string, productIDs []string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM product_promotions
		WHERE promotion_id = $1 AND product_id = ANY($2)`, id, productIDs)
	return errors.Wrap(err, "unlink promotion products")
}
