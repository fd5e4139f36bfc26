package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/offering"
)

var _ offering.Repository = (*OfferingRepository)(nil)

// OfferingRepository implements offering.Repository on the services and
// service_images tables.
type OfferingRepository struct {
	pool *pgxpool.Pool
}

// NewOfferingRepository returns an OfferingRepository that uses the given
// pool.
func NewOfferingRepository(pool *pgxpool.Pool) *OfferingRepository {
	return &OfferingRepository{pool: pool}
}

const offeringColumns = `id, name, description, base_price, is_available, created_at, updated_at`

func scanOffering(row pgx.Row) (*offering.Offering, error) {
	var o offering.Offering
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.BasePrice, &o.IsAvailable, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err, offering.ErrNotFound)
	}
	return &o, nil
}

func (r *OfferingRepository) ListAvailable(ctx context.Context) ([]offering.Offering, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offeringColumns+` FROM services
		WHERE is_available
		ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list services")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (offering.Offering, error) {
		o, err := scanOffering(row)
		if err != nil {
			return offering.Offering{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan services")
	}
	if err := r.attachImages(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OfferingRepository) Get(ctx context.Context, id string) (*offering.Offering, error) {
	o, err := scanOffering(r.pool.QueryRow(ctx, `SELECT `+offeringColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	one := []offering.Offering{*o}
	if err := r.attachImages(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (r *OfferingRepository) attachImages(ctx context.Context, list []offering.Offering) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
		list[i].Images = []offering.Image{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT service_id, id, image_url, is_primary, sort_order
		FROM service_images
		WHERE service_id = ANY($1)
		ORDER BY sort_order, id`, ids)
	if err != nil {
		return errors.Wrap(err, "list service images")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			serviceID string
			img       offering.Image
		)
		if err := rows.Scan(&serviceID, &img.ID, &img.URL, &img.IsPrimary, &img.SortOrder); err != nil {
			return errors.Wrap(err, "scan service image")
		}
		i := idx[serviceID]
		list[i].Images = append(list[i].Images, img)
	}
	return errors.Wrap(rows.Err(), "iterate service images")
}

func (r *OfferingRepository) Create(ctx context.Context, o *offering.Offering) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO services (id, name, description, base_price, is_available)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at`,
			o.ID, o.Name, o.Description, o.BasePrice, o.IsAvailable,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert service")
		}
		return insertServiceImages(ctx, tx, o.ID, o.Images)
	})
}

func (r *OfferingRepository) Update(ctx context.Context, o *offering.Offering, replaceImages bool) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE services SET name = $2, description = $3, base_price = $4, is_available = $5,
				updated_at = now()
			WHERE id = $1
			RETURNING updated_at`,
			o.ID, o.Name, o.Description, o.BasePrice, o.IsAvailable,
		).Scan(&o.UpdatedAt)
		if err != nil {
			return notFound(errors.Wrap(err, "update service"), offering.ErrNotFound)
		}
		if !replaceImages {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM service_images WHERE service_id = $1`, o.ID); err != nil {
			return errors.Wrap(err, "delete service images")
		}
		return insertServiceImages(ctx, tx, o.ID, o.Images)
	})
}

func insertServiceImages(ctx context.Context, tx pgx.Tx, serviceID string, images []offering.Image) error {
	for i := range images {
		img := &images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO service_images (id, service_id, image_url, is_primary, sort_order)
			VALUES ($1, $2, $3, $4, $5)`,
			img.ID, serviceID, img.URL, img.IsPrimary, img.SortOrder)
		if err != nil {
			return errors.Wrap(err, "insert service image")
		}
	}
	return nil
}

func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete service")
	}
	if tag.RowsAffected() == 0 {
		return offering.ErrNotFound
	}
	return nil
}
