package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/catalog"
)

type stubCatalog struct {
	mu         sync.Mutex
	products   []catalog.ProductInput
	categories []string
	skus       *stubSKUs
	failSKU    string
	err        error
}

func (s *stubCatalog) CreateProduct(_ context.Context, in catalog.ProductInput) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if in.SKU != nil && *in.SKU == s.failSKU {
		return nil, apperr.Invalid("Product name and price are required")
	}
	s.products = append(s.products, in)
	if s.skus != nil {
		s.skus.existing = append(s.skus.existing, *in.SKU)
	}
	return &catalog.Product{ID: strconv.Itoa(len(s.products)), SKU: *in.SKU}, nil
}

func (s *stubCatalog) CreateCategory(_ context.Context, in catalog.CategoryInput) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, *in.Name)
	return &catalog.Category{ID: "new-" + *in.Name, Name: *in.Name}, nil
}

type stubSKUs struct {
	existing []string
	checked  []string
}

func (s *stubSKUs) ListSKUs(context.Context) ([]string, error) {
	return s.existing, nil
}

func (s *stubSKUs) SKUExists(_ context.Context, sku, _ string) (bool, error) {
	s.checked = append(s.checked, sku)
	for _, e := range s.existing {
		if e == sku {
			return true, nil
		}
	}
	return false, nil
}

type stubCategories []catalog.Category

func (s stubCategories) ListActive(context.Context) ([]catalog.Category, error) {
	return s, nil
}

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(`{"sku":"ROSE-1","name":"Rose","price":"12.50","stock":4}

not json
{"sku":"TUL-1","name":"Tulip","price":3}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	var (
		got     []Record
		badLine []int
	)
	err = Decode(context.Background(), &buf, func(line int, rec Record, err error) {
		if err != nil {
			badLine = append(badLine, line)
			return
		}
		got = append(got, rec)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{3}, badLine)
	assert.Equal(t, "ROSE-1", got[0].SKU)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got[0].Price))
	assert.Equal(t, 4, got[0].Stock)
	assert.Equal(t, "Tulip", got[1].Name)
}

func TestDecode_NotGzip(t *testing.T) {
	err := Decode(context.Background(), strings.NewReader(`{"sku":"A"}`), func(int, Record, error) {})
	require.Error(t, err)
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	first := writeFeed(t, dir, "a.jsonl.gz",
		`{"sku":"ROSE-1","name":"Rose","price":"12.50","stock":4,"category":"Bouquets","image_url":"https://cdn.test/rose.jpg"}`,
		`{"sku":"OLD-1","name":"Existing","price":"1"}`,
		`{"sku":"LILY-1","name":"Lily","price":"8","category":"plants"}`,
		`{broken`,
	)
	second := writeFeed(t, dir, "b.jsonl.gz",
		`{"sku":"ROSE-1","name":"Rose again","price":"13"}`,
		`{"sku":"","name":"No SKU","price":"2"}`,
		`{"sku":"BAD-1","name":"","price":"2"}`,
	)

	skus := &stubSKUs{existing: []string{"OLD-1"}}
	cat := &stubCatalog{failSKU: "BAD-1", skus: skus}
	cats := stubCategories{{ID: "cat-plants", Name: "Plants"}}

	stats, err := New(cat, skus, cats, zap.NewNop()).Import(context.Background(), []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, Stats{
		Read:       7,
		Created:    2,
		Duplicates: 2,
		Rejected:   3,
		Categories: 1,
	}, stats)

	require.Len(t, cat.products, 2)
	rose, lily := cat.products[0], cat.products[1]
	assert.Equal(t, "ROSE-1", *rose.SKU)
	assert.Equal(t, "new-Bouquets", *rose.CategoryID)
	require.NotNil(t, rose.Images)
	assert.Equal(t, []catalog.Image{{URL: "https://cdn.test/rose.jpg", IsPrimary: true}}, *rose.Images)
	assert.Equal(t, "cat-plants", *lily.CategoryID)
	assert.Nil(t, lily.Images)
	assert.Equal(t, []string{"Bouquets"}, cat.categories)
	assert.Contains(t, skus.checked, "OLD-1")
}

func TestImport_StorageFailureAborts(t *testing.T) {
	dir := t.TempDir()
	feed := writeFeed(t, dir, "a.jsonl.gz", `{"sku":"ROSE-1","name":"Rose","price":"12.50"}`)

	cat := &stubCatalog{err: errors.New("connection reset")}
	_, err := New(cat, &stubSKUs{}, stubCategories{}, zap.NewNop()).Import(context.Background(), []string{feed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROSE-1")
}

func TestImport_MissingFile(t *testing.T) {
	_, err := New(&stubCatalog{}, &stubSKUs{}, stubCategories{}, zap.NewNop()).
		Import(context.Background(), []string{filepath.Join(t.TempDir(), "nope.jsonl.gz")})
	require.Error(t, err)
}
