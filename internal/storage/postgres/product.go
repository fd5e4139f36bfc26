package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/pkg/paging"
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by
// PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, p.stock, p.category_id, COALESCE(c.name, ''),
		p.is_active, p.sku, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.CategoryName,
		&p.IsActive, &p.SKU, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, catalog.ErrProductNotFound)
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		p, err := scanProduct(row)
		if err != nil {
			return catalog.Product{}, err
		}
		return *p, nil
	})
}

var productOrder = map[catalog.Sort]string{
	catalog.SortNewest:    "p.created_at DESC",
	catalog.SortOldest:    "p.created_at ASC",
	catalog.SortPriceAsc:  "p.price ASC",
	catalog.SortPriceDesc: "p.price DESC",
	catalog.SortNameAsc:   "p.name ASC",
	catalog.SortNameDesc:  "p.name DESC",
}

func (r *ProductRepository) List(ctx context.Context, f catalog.ProductFilter, page paging.Page) ([]catalog.Product, int, error) {
	var w where
	if !f.IncludeInactive {
		w.add("p.is_active")
	}
	if f.CategoryID != "" {
		w.add("p.category_id = ?", f.CategoryID)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		w.add("(p.name ILIKE ? OR p.description ILIKE ?)", pattern, pattern)
	}
	if f.MinPrice != nil {
		w.add("p.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("p.price <= ?", *f.MaxPrice)
	}

	total, err := count(ctx, r.pool, `SELECT count(*) FROM products p`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder[catalog.SortNewest]
	}
	sql := productSelect + w.String() + " ORDER BY " + order + ", p.id" + w.page(page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	list, err := collectProducts(rows)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan products")
	}
	if err := r.attachImages(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	one := []catalog.Product{*p}
	if err := r.attachImages(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (r *ProductRepository) attachImages(ctx context.Context, list []catalog.Product) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, p := range list {
		ids[i] = p.ID
		idx[p.ID] = i
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, id, image_url, is_primary, sort_order
		FROM product_images
		WHERE product_id = ANY($1)
		ORDER BY sort_order, id`, ids)
	if err != nil {
		return errors.Wrap(err, "list images")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID string
			img       catalog.Image
		)
		if err := rows.Scan(&productID, &img.ID, &img.URL, &img.IsPrimary, &img.SortOrder); err != nil {
			return errors.Wrap(err, "scan image")
		}
		i := idx[productID]
		list[i].Images = append(list[i].Images, img)
	}
	return errors.Wrap(rows.Err(), "iterate images")
}

func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (id, name, description, price, stock, category_id, is_active, sku)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`,
			p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.IsActive, p.SKU,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if isUniqueViolation(err) {
			return catalog.ErrSKUTaken
		}
		if err != nil {
			return errors.Wrap(err, "insert product")
		}
		return insertProductImages(ctx, tx, p.ID, p.Images)
	})
}

// Update rewrites the product row. The image set is replaced only when
// replaceImages is set.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product, replaceImages bool) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE products SET name = $2, description = $3, price = $4, stock = $5, category_id = $6,
				is_active = $7, sku = $8, updated_at = now()
			WHERE id = $1
			RETURNING updated_at`,
			p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.IsActive, p.SKU,
		).Scan(&p.UpdatedAt)
		switch {
		case isUniqueViolation(err):
			return catalog.ErrSKUTaken
		case err != nil:
			return notFound(errors.Wrap(err, "update product"), catalog.ErrProductNotFound)
		}
		if !replaceImages {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, p.ID); err != nil {
			return errors.Wrap(err, "delete images")
		}
		return insertProductImages(ctx, tx, p.ID, p.Images)
	})
}

func insertProductImages(ctx context.Context, tx pgx.Tx, productID string, images []catalog.Image) error {
	for i := range images {
		img := &images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO product_images (id, product_id, image_url, is_primary, sort_order)
			VALUES ($1, $2, $3, $4, $5)`,
			img.ID, productID, img.URL, img.IsPrimary, img.SortOrder)
		if err != nil {
			return errors.Wrap(err, "insert image")
		}
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return catalog.ErrProductInUse
	}
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) SKUExists(ctx context.Context, sku, excludeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND id <> $2)`, sku, excludeID,
	).Scan(&exists)
	return exists, errors.Wrap(err, "check sku")
}

// LowStock lists active products with stock below threshold, emptiest
// first.
func (r *ProductRepository) LowStock(ctx context.Context, threshold int) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, productSelect+`
		WHERE p.is_active AND p.stock < $1
		ORDER BY p.stock, p.name`, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "list low stock")
	}
	list, err := collectProducts(rows)
	return list, errors.Wrap(err, "scan products")
}

// ListSKUs returns every product SKU, active or not.
func (r *ProductRepository) ListSKUs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku FROM products`)
	if err != nil {
		return nil, errors.Wrap(err, "list skus")
	}
	skus, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return skus, errors.Wrap(err, "scan skus")
}
