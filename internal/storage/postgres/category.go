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

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by
// PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given
// pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

const categoryColumns = `id, name, description, image_url, parent_id, is_active, sort_order, created_at, updated_at`

func scanCategory(row pgx.Row) (*catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.ParentID, &c.IsActive,
		&c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, catalog.ErrCategoryNotFound)
	}
	return &c, nil
}

func collectCategories(rows pgx.Rows) ([]catalog.Category, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		c, err := scanCategory(row)
		if err != nil {
			return catalog.Category{}, err
		}
		return *c, nil
	})
}

func (r *CategoryRepository) List(ctx context.Context, page paging.Page) ([]catalog.Category, int, error) {
	total, err := count(ctx, r.pool, `SELECT count(*) FROM categories`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories
		ORDER BY sort_order, name
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list categories")
	}
	list, err := collectCategories(rows)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan categories")
	}
	return list, total, nil
}

func (r *CategoryRepository) ListActive(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE is_active
		ORDER BY sort_order, name`)
	if err != nil {
		return nil, errors.Wrap(err, "list active categories")
	}
	list, err := collectCategories(rows)
	return list, errors.Wrap(err, "scan categories")
}

func (r *CategoryRepository) Get(ctx context.Context, id string) (*catalog.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
}

func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (id, name, description, image_url, parent_id, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description, c.ImageURL, c.ParentID, c.IsActive, c.SortOrder,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return errors.Wrap(err, "insert category")
}

func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE categories SET name = $2, description = $3, image_url = $4, parent_id = $5,
			is_active = $6, sort_order = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Description, c.ImageURL, c.ParentID, c.IsActive, c.SortOrder,
	).Scan(&c.UpdatedAt)
	return notFound(errors.Wrap(err, "update category"), catalog.ErrCategoryNotFound)
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete category")
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) CountChildren(ctx context.Context, id string) (int, error) {
	return count(ctx, r.pool, `SELECT count(*) FROM categories WHERE parent_id = $1`, id)
}

func (r *CategoryRepository) CountProducts(ctx context.Context, id string) (int, error) {
	return count(ctx, r.pool, `SELECT count(*) FROM products WHERE category_id = $1`, id)
}
