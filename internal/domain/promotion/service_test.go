package promotion

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/pkg/paging"
)

// --- Mock implementations ---

type memRepo struct {
	promos   map[string]Promotion
	links    map[string][]string
	products map[string]catalog.Product
	seq      int
}

func newMemRepo() *memRepo {
	return &memRepo{
		promos:   make(map[string]Promotion),
		links:    make(map[string][]string),
		products: make(map[string]catalog.Product),
	}
}

func (m *memRepo) WithinTx(_ context.Context, fn func(s Store) error) error {
	promos := make(map[string]Promotion, len(m.promos))
	for k, v := range m.promos {
		promos[k] = v
	}
	links := make(map[string][]string, len(m.links))
	for k, v := range m.links {
		links[k] = append([]string(nil), v...)
	}
	if err := fn(m); err != nil {
		m.promos, m.links = promos, links
		return err
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Promotion, error) {
	p, ok := m.promos[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Products = nil
	for _, pid := range m.links[id] {
		prod := m.products[pid]
		p.Products = append(p.Products, ProductSummary{ID: prod.ID, Name: prod.Name, Price: prod.Price, Stock: prod.Stock})
	}
	return &p, nil
}

func (m *memRepo) Insert(_ context.Context, p *Promotion) error {
	m.seq++
	p.ID = "promo-" + strconv.Itoa(m.seq)
	m.promos[p.ID] = *p
	return nil
}

func (m *memRepo) Update(_ context.Context, p *Promotion) error {
	m.promos[p.ID] = *p
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.promos[id]; !ok {
		return ErrNotFound
	}
	delete(m.promos, id)
	delete(m.links, id)
	return nil
}

func (m *memRepo) checkProducts(ids []string) error {
	for _, id := range ids {
		if _, ok := m.products[id]; !ok {
			return ErrUnknownProduct
		}
	}
	return nil
}

func (m *memRepo) SetProducts(_ context.Context, id string, ids []string) error {
	if err := m.checkProducts(ids); err != nil {
		return err
	}
	m.links[id] = append([]string(nil), ids...)
	return nil
}

func (m *memRepo) AddProducts(_ context.Context, id string, ids []string) error {
	if err := m.checkProducts(ids); err != nil {
		return err
	}
	for _, pid := range ids {
		found := false
		for _, have := range m.links[id] {
			if have == pid {
				found = true
			}
		}
		if !found {
			m.links[id] = append(m.links[id], pid)
		}
	}
	return nil
}

func (m *memRepo) RemoveProducts(_ context.Context, id string, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, pid := range ids {
		drop[pid] = true
	}
	var kept []string
	for _, pid := range m.links[id] {
		if !drop[pid] {
			kept = append(kept, pid)
		}
	}
	m.links[id] = kept
	return nil
}

func (m *memRepo) ListActive(_ context.Context, now time.Time) ([]Promotion, error) {
	var out []Promotion
	for _, p := range m.promos {
		if p.Rule().ActiveAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context, f Filter, _ paging.Page) ([]Promotion, int, error) {
	var out []Promotion
	for _, p := range m.promos {
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) Products(_ context.Context, id string, _ paging.Page) ([]catalog.Product, int, error) {
	var out []catalog.Product
	for _, pid := range m.links[id] {
		out = append(out, m.products[pid])
	}
	return out, len(out), nil
}

func (m *memRepo) RulesForProducts(_ context.Context, ids []string) (map[string][]pricing.Rule, error) {
	out := make(map[string][]pricing.Rule)
	for promoID, linked := range m.links {
		for _, pid := range linked {
			for _, want := range ids {
				if pid == want {
					out[pid] = append(out[pid], m.promos[promoID].Rule())
				}
			}
		}
	}
	return out, nil
}

type rulesPricer struct {
	repo *memRepo
	now  time.Time
}

func (r rulesPricer) AttachPricing(ctx context.Context, products []catalog.Product) error {
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	rules, err := r.repo.RulesForProducts(ctx, ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].Pricing = pricing.Effective(products[i].Price, rules[products[i].ID], r.now)
	}
	return nil
}

type recordingCache struct {
	calls int
}

func (r *recordingCache) InvalidateContaining(...string) int {
	r.calls++
	return 0
}

// --- Helpers ---

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService() (*Service, *memRepo, *recordingCache) {
	repo := newMemRepo()
	repo.products["rose"] = catalog.Product{ID: "rose", Name: "Roses", Price: dec("40.00"), Stock: 10, IsActive: true}
	repo.products["tulip"] = catalog.Product{ID: "tulip", Name: "Tulips", Price: dec("20.00"), Stock: 4, IsActive: true}
	cache := &recordingCache{}
	svc := NewService(repo, rulesPricer{repo: repo, now: fixedNow}, cache)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, cache
}

func validInput(kind pricing.DiscountType, value string) Input {
	return Input{
		Name:          ptr("Spring sale"),
		DiscountType:  ptr(kind),
		DiscountValue: ptr(dec(value)),
		StartDate:     ptr(fixedNow.AddDate(0, 0, -1)),
		EndDate:       ptr(fixedNow.AddDate(0, 0, 7)),
	}
}

func requireKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, msg, e.Message)
}

// --- Tests ---

func TestCreate_WithProducts(t *testing.T) {
	svc, _, cache := newTestService()
	in := validInput(pricing.Percentage, "10")
	in.ProductIDs = ptr([]string{"rose", "rose", "tulip"})

	p, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Len(t, p.Products, 2)
	assert.Equal(t, 1, cache.calls)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
		msg    string
	}{
		{"missing name", func(in *Input) { in.Name = nil }, "Promotion name is required"},
		{"short name", func(in *Input) { in.Name = ptr("x") }, "Name must be between 2 and 255 characters"},
		{"bad type", func(in *Input) { in.DiscountType = ptr(pricing.DiscountType("bogus")) }, "Discount type must be either percentage or fixed_amount"},
		{"negative value", func(in *Input) { in.DiscountValue = ptr(dec("-1")) }, "Discount value must be a positive number"},
		{"end before start", func(in *Input) { in.EndDate = ptr(fixedNow.AddDate(0, 0, -2)) }, "End date must be after start date"},
		{"end equals start", func(in *Input) { in.EndDate = in.StartDate }, "End date must be after start date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, cache := newTestService()
			in := validInput(pricing.FixedAmount, "5")
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			requireKind(t, err, apperr.KindInvalid, tt.msg)
			assert.Empty(t, repo.promos)
			assert.Zero(t, cache.calls)
		})
	}
}

func TestCreate_ZeroDiscount(t *testing.T) {
	svc, repo, _ := newTestService()

	p, err := svc.Create(context.Background(), validInput(pricing.FixedAmount, "0"))
	require.NoError(t, err)
	assert.True(t, p.DiscountValue.IsZero())
	assert.Len(t, repo.promos, 1)
}

func TestCreate_UnknownProductRollsBack(t *testing.T) {
	svc, repo, cache := newTestService()
	in := validInput(pricing.Percentage, "10")
	in.ProductIDs = ptr([]string{"rose", "ghost"})

	_, err := svc.Create(context.Background(), in)
	requireKind(t, err, apperr.KindInvalid, "One or more products not found")
	assert.Empty(t, repo.promos)
	assert.Empty(t, repo.links)
	assert.Zero(t, cache.calls)
}

func TestUpdate_MergesDates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, validInput(pricing.Percentage, "10"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, Input{EndDate: ptr(fixedNow.AddDate(0, 0, -5))})
	requireKind(t, err, apperr.KindInvalid, "End date must be after start date")

	got, err := svc.Update(ctx, p.ID, Input{IsActive: ptr(false), ProductIDs: ptr([]string{"tulip"})})
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "tulip", got.Products[0].ID)

	_, err = svc.Update(ctx, "missing", Input{})
	requireKind(t, err, apperr.KindNotFound, "Promotion not found")
}

func TestAddRemoveProducts(t *testing.T) {
	svc, _, cache := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, validInput(pricing.FixedAmount, "5"))
	require.NoError(t, err)

	_, err = svc.AddProducts(ctx, p.ID, nil)
	requireKind(t, err, apperr.KindInvalid, "Product IDs array is required")

	got, err := svc.AddProducts(ctx, p.ID, []string{"rose", "tulip"})
	require.NoError(t, err)
	assert.Len(t, got.Products, 2)

	got, err = svc.AddProducts(ctx, p.ID, []string{"rose"})
	require.NoError(t, err)
	assert.Len(t, got.Products, 2)

	got, err = svc.RemoveProducts(ctx, p.ID, []string{"rose"})
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "tulip", got.Products[0].ID)

	_, err = svc.RemoveProducts(ctx, "missing", []string{"rose"})
	requireKind(t, err, apperr.KindNotFound, "Promotion not found")

	assert.Equal(t, 4, cache.calls)
}

func TestProducts_BestDiscountWins(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	pct := validInput(pricing.Percentage, "10")
	pct.ProductIDs = ptr([]string{"rose"})
	_, err := svc.Create(ctx, pct)
	require.NoError(t, err)

	fixed := validInput(pricing.FixedAmount, "5")
	fixed.Name = ptr("Five off")
	fixed.ProductIDs = ptr([]string{"rose"})
	p2, err := svc.Create(ctx, fixed)
	require.NoError(t, err)

	list, meta, err := svc.Products(ctx, p2.ID, paging.Parse("", ""))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Pricing)
	assert.True(t, dec("35.00").Equal(list[0].Pricing.FinalPrice))
	assert.Equal(t, p2.ID, list[0].Pricing.PromotionID)
	assert.Equal(t, 1, meta.TotalItems)
}

func TestActive_FiltersWindow(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput(pricing.Percentage, "10"))
	require.NoError(t, err)

	future := validInput(pricing.Percentage, "10")
	future.StartDate = ptr(fixedNow.AddDate(0, 1, 0))
	future.EndDate = ptr(fixedNow.AddDate(0, 2, 0))
	_, err = svc.Create(ctx, future)
	require.NoError(t, err)

	list, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDelete(t *testing.T) {
	svc, _, cache := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, validInput(pricing.Percentage, "10"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	requireKind(t, svc.Delete(ctx, p.ID), apperr.KindNotFound, "Promotion not found")
	assert.Equal(t, 2, cache.calls)
}
