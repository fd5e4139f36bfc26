//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/internal/domain/cart"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/order"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/internal/domain/promotion"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
	"github.com/xenking/chezflora/pkg/paging"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "flora",
				"POSTGRES_PASSWORD": "flora",
				"POSTGRES_DB":       "flora",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = testcontainers.TerminateContainer(pg) }()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://flora:flora@%s:%s/flora?sslmode=disable", host, port.Port())

	if err := Migrate(ctx, dsn, Up); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	// A second run is a no-op.
	if err := Migrate(ctx, dsn, Up); err != nil {
		log.Fatalf("migrate again: %v", err)
	}

	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	return m.Run()
}

type nopNotifier struct{}

func (nopNotifier) Enqueue(context.Context, notify.Message) {}

func newUser(t *testing.T, email string) *user.User {
	t.Helper()
	u := &user.User{
		FirstName:    "Rose",
		LastName:     "Petal",
		Email:        email,
		PasswordHash: "x",
		Role:         user.RoleClient,
		Status:       user.StatusActive,
	}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), u))
	return u
}

func newProduct(t *testing.T, sku string, price string, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		Name:     "Bouquet " + sku,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
		SKU:      sku,
		Images:   []catalog.Image{{URL: "/img/" + sku + ".jpg", IsPrimary: true}},
	}
	require.NoError(t, NewProductRepository(testPool).Create(context.Background(), p))
	return p
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)
	u := newUser(t, "users@flora.test")

	got, err := repo.GetByEmail(ctx, "USERS@flora.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = repo.Create(ctx, &user.User{FirstName: "Dup", Email: "users@flora.test", PasswordHash: "x",
		Role: user.RoleClient, Status: user.StatusActive})
	require.ErrorIs(t, err, user.ErrEmailTaken)

	now := time.Now()
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "hash", now.Add(-time.Minute)))
	_, err = repo.GetByResetToken(ctx, "hash", now)
	require.ErrorIs(t, err, user.ErrNotFound)
	n, err := repo.ClearExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestProductRepository_SKUAndImages(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)
	p := newProduct(t, "SKU-IMG", "12.50", 4)

	err := repo.Create(ctx, &catalog.Product{Name: "Other", Price: decimal.NewFromInt(1), SKU: "SKU-IMG"})
	require.ErrorIs(t, err, catalog.ErrSKUTaken)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.True(t, got.Images[0].IsPrimary)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.Price))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestAddressRepository_DefaultSwap(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, "addr@flora.test")
	svc := address.NewService(NewAddressRepository(testPool))

	in := func(name string, def bool) address.Input {
		return address.Input{
			AddressName:  &name,
			FirstName:    ptr("Rose"),
			LastName:     ptr("Petal"),
			AddressLine1: ptr("1 Flower St"),
			City:         ptr("Paris"),
			PostalCode:   ptr("75001"),
			Country:      ptr("FR"),
			IsDefault:    &def,
		}
	}
	first, err := svc.Create(ctx, u.ID, in("home", false))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := svc.Create(ctx, u.ID, in("work", true))
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	list, _, err := svc.List(ctx, u.ID, paging.Page{Number: 1, Limit: 10})
	require.NoError(t, err)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	require.NoError(t, svc.Delete(ctx, u.ID, second.ID))
	got, err := svc.Get(ctx, u.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestCheckoutAndCancel(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, "checkout@flora.test")
	a := newProduct(t, "CHK-A", "10.00", 3)
	b := newProduct(t, "CHK-B", "7.35", 1)

	addrs := NewAddressRepository(testPool)
	addr := &address.Address{UserID: u.ID, FirstName: "Rose", LastName: "Petal", AddressLine1: "1 Flower St",
		City: "Paris", PostalCode: "75001", Country: "FR", IsDefault: true}
	require.NoError(t, addrs.Insert(ctx, addr))

	carts := cart.NewService(NewCartRepository(testPool))
	_, err := carts.Add(ctx, u.ID, a.ID, 2)
	require.NoError(t, err)
	c, err := carts.Add(ctx, u.ID, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "27.35", c.Total().StringFixed(2))

	orders, err := order.NewService(NewOrderRepository(testPool), NewUserRepository(testPool), nopNotifier{},
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	o, err := orders.Create(ctx, u.ID, order.CreateRequest{ShippingAddressID: addr.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("27.35").Equal(o.TotalAmount))
	assert.Regexp(t, `^FL-\d{6}-[A-Z0-9]{4}$`, o.OrderNumber)

	products := NewProductRepository(testPool)
	gotA, err := products.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotA.Stock)
	gotB, err := products.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotB.Stock)

	c, err = carts.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	full, err := orders.GetForUser(ctx, u.ID, o.ID)
	require.NoError(t, err)
	require.Len(t, full.Items, 2)
	require.NotNil(t, full.ShippingAddress)

	_, err = orders.Cancel(ctx, u.ID, o.ID)
	require.NoError(t, err)
	gotA, err = products.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotA.Stock)

	require.ErrorIs(t, products.Delete(ctx, a.ID), catalog.ErrProductInUse)
	require.ErrorIs(t, addrs.Delete(ctx, u.ID, addr.ID), address.ErrInUse)
}

func TestPromotionRules(t *testing.T) {
	ctx := context.Background()
	repo := NewPromotionRepository(testPool)
	p := newProduct(t, "PROMO-1", "40.00", 10)
	now := time.Now()

	for _, promo := range []*promotion.Promotion{
		{Name: "Ten percent", DiscountType: pricing.Percentage, DiscountValue: decimal.NewFromInt(10)},
		{Name: "Five off", DiscountType: pricing.FixedAmount, DiscountValue: decimal.NewFromInt(5)},
	} {
		promo.StartDate = now.Add(-time.Hour)
		promo.EndDate = now.Add(time.Hour)
		promo.IsActive = true
		err := repo.WithinTx(ctx, func(s promotion.Store) error {
			if err := s.Insert(ctx, promo); err != nil {
				return err
			}
			return s.SetProducts(ctx, promo.ID, []string{p.ID})
		})
		require.NoError(t, err)
	}

	rules, err := repo.RulesForProducts(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, rules[p.ID], 2)

	got := pricing.Effective(p.Price, rules[p.ID], now)
	require.NotNil(t, got)
	assert.Equal(t, "35.00", got.FinalPrice.StringFixed(2))

	err = repo.WithinTx(ctx, func(s promotion.Store) error {
		return s.AddProducts(ctx, rules[p.ID][0].PromotionID, []string{"missing"})
	})
	require.ErrorIs(t, err, promotion.ErrUnknownProduct)
}

func TestPromotion_ZeroDiscount(t *testing.T) {
	ctx := context.Background()
	repo := NewPromotionRepository(testPool)
	now := time.Now()

	promo := &promotion.Promotion{
		Name:          "Placeholder",
		DiscountType:  pricing.FixedAmount,
		DiscountValue: decimal.Zero,
		StartDate:     now,
		EndDate:       now.Add(time.Hour),
		IsActive:      true,
	}
	err := repo.WithinTx(ctx, func(s promotion.Store) error {
		return s.Insert(ctx, promo)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, promo.ID)
}

func ptr[T any](v T) *T { return &v }
