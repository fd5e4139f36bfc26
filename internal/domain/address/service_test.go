package address

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

// --- Mock implementations ---

// memRepo keeps addresses in memory. WithinTx restores the previous state
// when fn fails.
type memRepo struct {
	rows  map[string]Address
	inUse map[string]bool
	seq   int
	clock time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:  make(map[string]Address),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) WithinTx(_ context.Context, fn func(s Store) error) error {
	snapshot := make(map[string]Address, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	if err := fn(m); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

func (m *memRepo) List(_ context.Context, userID string, _ paging.Page) ([]Address, int, error) {
	var out []Address
	for _, a := range m.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, userID, id string) (*Address, error) {
	a, ok := m.rows[id]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memRepo) Count(_ context.Context, userID string) (int, error) {
	n := 0
	for _, a := range m.rows {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Insert(_ context.Context, a *Address) error {
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	a.ID = "a" + strconv.Itoa(m.seq)
	a.CreatedAt = m.clock
	m.rows[a.ID] = *a
	return nil
}

func (m *memRepo) Update(_ context.Context, a *Address) error {
	m.rows[a.ID] = *a
	return nil
}

func (m *memRepo) Delete(_ context.Context, _, id string) error {
	if m.inUse[id] {
		return ErrInUse
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) ClearDefault(_ context.Context, userID, exceptID string) error {
	for id, a := range m.rows {
		if a.UserID == userID && id != exceptID {
			a.IsDefault = false
			m.rows[id] = a
		}
	}
	return nil
}

func (m *memRepo) SetDefault(_ context.Context, _, id string) error {
	a := m.rows[id]
	a.IsDefault = true
	m.rows[id] = a
	return nil
}

func (m *memRepo) MostRecent(_ context.Context, userID string) (*Address, error) {
	var best *Address
	for _, a := range m.rows {
		if a.UserID != userID {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			cp := a
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *memRepo) defaults(userID string) []string {
	var ids []string
	for id, a := range m.rows {
		if a.UserID == userID && a.IsDefault {
			ids = append(ids, id)
		}
	}
	return ids
}

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

func validInput() Input {
	return Input{
		FirstName:    ptr("Alice"),
		LastName:     ptr("Martin"),
		AddressLine1: ptr("1 rue des Fleurs"),
		City:         ptr("Paris"),
		PostalCode:   ptr("75001"),
		Country:      ptr("France"),
	}
}

func create(t *testing.T, svc *Service, userID string, makeDefault bool) *Address {
	t.Helper()
	in := validInput()
	if makeDefault {
		in.IsDefault = ptr(true)
	}
	a, err := svc.Create(context.Background(), userID, in)
	require.NoError(t, err)
	return a
}

// --- Tests ---

func TestCreate_FirstAddressBecomesDefault(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	a := create(t, svc, "u1", false)
	assert.True(t, a.IsDefault)

	b := create(t, svc, "u1", false)
	assert.False(t, b.IsDefault)
	assert.Equal(t, []string{a.ID}, repo.defaults("u1"))
}

func TestCreate_NewDefaultUnsetsOthers(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	create(t, svc, "u1", false)

	b := create(t, svc, "u1", true)

	assert.Equal(t, []string{b.ID}, repo.defaults("u1"))
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	in := validInput()
	in.City = ptr("  ")

	_, err := svc.Create(context.Background(), "u1", in)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestUpdate_SetDefault(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	create(t, svc, "u1", false)
	b := create(t, svc, "u1", false)

	got, err := svc.Update(context.Background(), "u1", b.ID, Input{City: ptr("Lyon"), IsDefault: ptr(true)})

	require.NoError(t, err)
	assert.Equal(t, "Lyon", got.City)
	assert.Equal(t, []string{b.ID}, repo.defaults("u1"))
}

func TestUpdate_OtherUsersAddress(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	a := create(t, svc, "u1", false)

	_, err := svc.Update(context.Background(), "u2", a.ID, Input{City: ptr("Lyon")})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "Address not found", e.Message)
}

func TestDelete_DefaultPromotesMostRecent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	a := create(t, svc, "u1", false)
	create(t, svc, "u1", false)
	c := create(t, svc, "u1", false)

	require.NoError(t, svc.Delete(context.Background(), "u1", a.ID))

	assert.Equal(t, []string{c.ID}, repo.defaults("u1"))
}

func TestDelete_SoleDefaultRejected(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	a := create(t, svc, "u1", false)

	err := svc.Delete(context.Background(), "u1", a.ID)

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Cannot delete default address", e.Message)
	assert.Len(t, repo.rows, 1)
}

func TestDelete_NonDefault(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	a := create(t, svc, "u1", false)
	b := create(t, svc, "u1", false)

	require.NoError(t, svc.Delete(context.Background(), "u1", b.ID))

	assert.Equal(t, []string{a.ID}, repo.defaults("u1"))
	assert.Len(t, repo.rows, 1)
}

func TestDelete_UsedByOrder(t *testing.T) {
	for _, isDefault := range []bool{false, true} {
		t.Run(fmt.Sprintf("default=%v", isDefault), func(t *testing.T) {
			repo := newMemRepo()
			svc := NewService(repo)
			a := create(t, svc, "u1", false)
			b := create(t, svc, "u1", false)
			target := b
			if isDefault {
				target = a
			}
			repo.inUse = map[string]bool{target.ID: true}

			err := svc.Delete(context.Background(), "u1", target.ID)

			e, ok := apperr.As(err)
			require.True(t, ok, "expected apperr, got %v", err)
			assert.Equal(t, apperr.KindInvalid, e.Kind)
			assert.Equal(t, "Address is used by an order", e.Message)
			assert.Len(t, repo.rows, 2)
			assert.Equal(t, []string{a.ID}, repo.defaults("u1"))
		})
	}
}

func TestSetDefault(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	create(t, svc, "u1", false)
	b := create(t, svc, "u1", false)
	other := create(t, svc, "u2", false)

	got, err := svc.SetDefault(context.Background(), "u1", b.ID)

	require.NoError(t, err)
	assert.True(t, got.IsDefault)
	assert.Equal(t, []string{b.ID}, repo.defaults("u1"))
	assert.Equal(t, []string{other.ID}, repo.defaults("u2"))
}

func TestAtMostOneDefault_AfterMixedOperations(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a := create(t, svc, "u1", false)
	b := create(t, svc, "u1", true)
	c := create(t, svc, "u1", false)
	_, err := svc.SetDefault(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", c.ID))
	_, err = svc.Update(ctx, "u1", a.ID, Input{IsDefault: ptr(true)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", b.ID))

	assert.Len(t, repo.defaults("u1"), 1)
}

func TestWithinTx_RollsBackOnFailure(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	a := create(t, svc, "u1", false)

	err := repo.WithinTx(context.Background(), func(s Store) error {
		require.NoError(t, s.ClearDefault(context.Background(), "u1", ""))
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, []string{a.ID}, repo.defaults("u1"))
}
