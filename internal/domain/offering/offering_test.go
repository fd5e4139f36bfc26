package offering

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chezflora/internal/domain/apperr"
)

type memRepo struct {
	rows map[string]Offering
	seq  int
}

func (m *memRepo) ListAvailable(_ context.Context) ([]Offering, error) {
	var out []Offering
	for _, o := range m.rows {
		if o.IsAvailable {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Offering, error) {
	o, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memRepo) Create(_ context.Context, o *Offering) error {
	m.seq++
	o.ID = "s" + strconv.Itoa(m.seq)
	m.rows[o.ID] = *o
	return nil
}

func (m *memRepo) Update(_ context.Context, o *Offering, replaceImages bool) error {
	if !replaceImages {
		o.Images = m.rows[o.ID].Images
	}
	m.rows[o.ID] = *o
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndUpdate(t *testing.T) {
	svc := NewService(&memRepo{rows: make(map[string]Offering)})
	ctx := context.Background()

	o, err := svc.Create(ctx, Input{
		Name:      ptr("Wedding decoration"),
		BasePrice: ptr(decimal.RequireFromString("450")),
		Images:    &[]Image{{URL: "/a.jpg"}, {URL: "/b.jpg"}},
	})
	require.NoError(t, err)
	assert.True(t, o.IsAvailable)
	require.Len(t, o.Images, 2)
	assert.True(t, o.Images[0].IsPrimary)
	assert.Equal(t, 1, o.Images[1].SortOrder)

	got, err := svc.Update(ctx, o.ID, Input{IsAvailable: ptr(false)})
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.Len(t, got.Images, 2)

	list, err := svc.Available(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidation(t *testing.T) {
	svc := NewService(&memRepo{rows: make(map[string]Offering)})
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{BasePrice: ptr(decimal.Zero)})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Service name is required", e.Message)

	_, err = svc.Create(ctx, Input{Name: ptr("x"), BasePrice: ptr(decimal.RequireFromString("-1"))})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Base price must be a positive number", e.Message)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.True(t, apperr.IsKind(svc.Delete(ctx, "missing"), apperr.KindNotFound))
}
