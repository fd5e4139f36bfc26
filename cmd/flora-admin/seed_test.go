package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/user"
)

type stubUsers struct {
	byEmail map[string]*user.User
	created []*user.User
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (s *stubUsers) Create(_ context.Context, u *user.User) error {
	u.ID = "u-1"
	s.created = append(s.created, u)
	return nil
}

type stubCategories struct {
	existing []catalog.Category
	created  []catalog.CategoryInput
}

func (s *stubCategories) ListActive(context.Context) ([]catalog.Category, error) {
	return s.existing, nil
}

func (s *stubCategories) CreateCategory(_ context.Context, in catalog.CategoryInput) (*catalog.Category, error) {
	s.created = append(s.created, in)
	return &catalog.Category{ID: "id-" + *in.Name, Name: *in.Name}, nil
}

func TestSeedAdmin(t *testing.T) {
	lg = zap.NewNop()
	users := &stubUsers{}

	require.NoError(t, seedAdmin(context.Background(), users, "Boss@ChezFlora.com", "secret1", bcrypt.MinCost))
	require.Len(t, users.created, 1)
	admin := users.created[0]
	assert.Equal(t, "boss@chezflora.com", admin.Email)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.Equal(t, user.StatusActive, admin.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("secret1")))
}

func TestSeedAdmin_Existing(t *testing.T) {
	lg = zap.NewNop()
	users := &stubUsers{byEmail: map[string]*user.User{"admin@chezflora.com": {ID: "u-0"}}}

	require.NoError(t, seedAdmin(context.Background(), users, "admin@chezflora.com", "secret1", bcrypt.MinCost))
	assert.Empty(t, users.created)
}

func TestSeedCategories(t *testing.T) {
	lg = zap.NewNop()
	cats := &stubCategories{existing: []catalog.Category{{ID: "plants", Name: "Plants"}}}

	require.NoError(t, seedCategories(context.Background(), cats, cats))

	names := make([]string, 0, len(cats.created))
	parents := make(map[string]string)
	for _, in := range cats.created {
		names = append(names, *in.Name)
		if in.ParentID != nil {
			parents[*in.Name] = *in.ParentID
		}
	}
	assert.NotContains(t, names, "Plants")
	assert.Contains(t, names, "Bouquets")
	assert.Equal(t, "id-Bouquets", parents["Roses"])
	assert.Equal(t, "plants", parents["Indoor Plants"])
	assert.Equal(t, "id-Accessories", parents["Vases"])
	assert.Len(t, cats.created, 10)
}
