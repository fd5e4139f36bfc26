package testimonial

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

type memRepo struct {
	rows map[string]Testimonial
	seq  int
}

func (m *memRepo) List(_ context.Context, f Filter, _ paging.Page) ([]Testimonial, int, error) {
	var out []Testimonial
	for _, t := range m.rows {
		if f.IsApproved != nil && t.IsApproved != *f.IsApproved {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *memRepo) ExistsForUser(_ context.Context, userID string) (bool, error) {
	for _, t := range m.rows {
		if t.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(_ context.Context, t *Testimonial) error {
	m.seq++
	t.ID = "t" + strconv.Itoa(m.seq)
	m.rows[t.ID] = *t
	return nil
}

func (m *memRepo) SetApproved(_ context.Context, id string, approved bool) (*Testimonial, error) {
	t, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.IsApproved = approved
	m.rows[id] = t
	return &t, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func requireKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, msg, e.Message)
}

func TestSubmit(t *testing.T) {
	svc := NewService(&memRepo{rows: make(map[string]Testimonial)})
	ctx := context.Background()

	got, err := svc.Submit(ctx, "u1", "Beautiful flowers", 5)
	require.NoError(t, err)
	assert.False(t, got.IsApproved)

	_, err = svc.Submit(ctx, "u1", "Again", 4)
	requireKind(t, err, apperr.KindInvalid, "You have already submitted a testimonial")
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		rating  int
		msg     string
	}{
		{"empty content", " ", 3, "Content is required"},
		{"rating too low", "ok", 0, "Rating must be between 1 and 5"},
		{"rating too high", "ok", 6, "Rating must be between 1 and 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&memRepo{rows: make(map[string]Testimonial)})
			_, err := svc.Submit(context.Background(), "u1", tt.content, tt.rating)
			requireKind(t, err, apperr.KindInvalid, tt.msg)
		})
	}
}

func TestModeration(t *testing.T) {
	svc := NewService(&memRepo{rows: make(map[string]Testimonial)})
	ctx := context.Background()
	a, err := svc.Submit(ctx, "u1", "Great", 5)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "u2", "Fine", 3)
	require.NoError(t, err)

	list, _, err := svc.Approved(ctx, paging.Parse("", ""))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.SetApproved(ctx, a.ID, true)
	require.NoError(t, err)

	list, meta, err := svc.Approved(ctx, paging.Parse("", ""))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Great", list[0].Content)
	assert.Equal(t, 1, meta.TotalItems)

	_, err = svc.SetApproved(ctx, "missing", true)
	requireKind(t, err, apperr.KindNotFound, "Testimonial not found")

	require.NoError(t, svc.Delete(ctx, a.ID))
	requireKind(t, svc.Delete(ctx, a.ID), apperr.KindNotFound, "Testimonial not found")
}
