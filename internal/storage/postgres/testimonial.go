package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/testimonial"
	"github.com/xenking/chezflora/pkg/paging"
)

var _ testimonial.Repository = (*TestimonialRepository)(nil)

// TestimonialRepository implements testimonial.Repository backed by
// PostgreSQL.
type TestimonialRepository struct {
	pool *pgxpool.Pool
}

// NewTestimonialRepository returns a TestimonialRepository that uses the
// given pool.
func NewTestimonialRepository(pool *pgxpool.Pool) *TestimonialRepository {
	return &TestimonialRepository{pool: pool}
}

const testimonialSelect = `
	SELECT t.id, t.user_id, t.content, t.rating, t.is_approved, t.created_at, t.updated_at,
		u.id, u.first_name, u.last_name, u.email
	FROM testimonials t
	JOIN users u ON u.id = t.user_id`

func scanTestimonial(row pgx.Row) (*testimonial.Testimonial, error) {
	var t testimonial.Testimonial
	err := row.Scan(&t.ID, &t.UserID, &t.Content, &t.Rating, &t.IsApproved, &t.CreatedAt, &t.UpdatedAt,
		&t.Author.ID, &t.Author.FirstName, &t.Author.LastName, &t.Author.Email)
	if err != nil {
		return nil, notFound(err, testimonial.ErrNotFound)
	}
	return &t, nil
}

func (r *TestimonialRepository) List(ctx context.Context, f testimonial.Filter, page paging.Page) ([]testimonial.Testimonial, int, error) {
	var w where
	if f.IsApproved != nil {
		w.add("t.is_approved = ?", *f.IsApproved)
	}
	total, err := count(ctx, r.pool, `SELECT count(*) FROM testimonials t`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	sql := testimonialSelect + w.String() + ` ORDER BY t.created_at DESC, t.id` + w.page(page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list testimonials")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (testimonial.Testimonial, error) {
		t, err := scanTestimonial(row)
		if err != nil {
			return testimonial.Testimonial{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan testimonials")
	}
	return list, total, nil
}

func (r *TestimonialRepository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM testimonials WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, errors.Wrap(err, "check testimonial")
}

// Create inserts the testimonial. A second one from the same user yields
// testimonial.ErrDuplicate.
func (r *TestimonialRepository) Create(ctx context.Context, t *testimonial.Testimonial) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO testimonials (id, user_id, content, rating, is_approved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.UserID, t.Content, t.Rating, t.IsApproved,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return testimonial.ErrDuplicate
	}
	return errors.Wrap(err, "insert testimonial")
}

func (r *TestimonialRepository) SetApproved(ctx context.Context, id string, approved bool) (*testimonial.Testimonial, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE testimonials SET is_approved = $2, updated_at = now()
		WHERE id = $1`, id, approved)
	if err != nil {
		return nil, errors.Wrap(err, "set approved")
	}
	if tag.RowsAffected() == 0 {
		return nil, testimonial.ErrNotFound
	}
	return scanTestimonial(r.pool.QueryRow(ctx, testimonialSelect+` WHERE t.id = $1`, id))
}

func (r *TestimonialRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM testimonials WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete testimonial")
	}
	if tag.RowsAffected() == 0 {
		return testimonial.ErrNotFound
	}
	return nil
}
