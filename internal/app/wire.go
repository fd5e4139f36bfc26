package app

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/internal/domain/auth"
	"github.com/xenking/chezflora/internal/domain/blog"
	"github.com/xenking/chezflora/internal/domain/cart"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/offering"
	"github.com/xenking/chezflora/internal/domain/order"
	"github.com/xenking/chezflora/internal/domain/promotion"
	"github.com/xenking/chezflora/internal/domain/quote"
	"github.com/xenking/chezflora/internal/domain/testimonial"
	"github.com/xenking/chezflora/internal/handler"
	"github.com/xenking/chezflora/internal/jobs"
	"github.com/xenking/chezflora/internal/notify"
	"github.com/xenking/chezflora/internal/storage/postgres"
	"github.com/xenking/chezflora/pkg/respcache"
)

// Repositories are the PostgreSQL stores behind the services.
type Repositories struct {
	Users        *postgres.UserRepository
	Addresses    *postgres.AddressRepository
	Products     *postgres.ProductRepository
	Categories   *postgres.CategoryRepository
	Promotions   *postgres.PromotionRepository
	Carts        *postgres.CartRepository
	Orders       *postgres.OrderRepository
	Quotes       *postgres.QuoteRepository
	Blog         *postgres.BlogRepository
	Testimonials *postgres.TestimonialRepository
	Offerings    *postgres.OfferingRepository
}

// NewRepositories creates every repository on pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:        postgres.NewUserRepository(pool),
		Addresses:    postgres.NewAddressRepository(pool),
		Products:     postgres.NewProductRepository(pool),
		Categories:   postgres.NewCategoryRepository(pool),
		Promotions:   postgres.NewPromotionRepository(pool),
		Carts:        postgres.NewCartRepository(pool),
		Orders:       postgres.NewOrderRepository(pool),
		Quotes:       postgres.NewQuoteRepository(pool),
		Blog:         postgres.NewBlogRepository(pool),
		Testimonials: postgres.NewTestimonialRepository(pool),
		Offerings:    postgres.NewOfferingRepository(pool),
	}
}

// NewMailQueue creates the notification queue. Without an SMTP host emails
// are logged instead of sent.
func NewMailQueue(lg *zap.Logger, cfg MailConfig) (*notify.Queue, error) {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, errors.Wrap(err, "load email templates")
	}
	lg = lg.Named("mail")

	var mailer notify.Mailer
	if cfg.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	} else {
		lg.Warn("SMTP host not configured, emails will only be logged")
		mailer = notify.NewLogMailer(lg)
	}
	return notify.NewQueue(mailer, renderer, lg, notify.QueueConfig{
		Workers: cfg.Workers,
		Size:    cfg.QueueSize,
	}), nil
}

// NewServices builds the domain services served by the API. A nil cache
// disables response caching.
func NewServices(
	repos *Repositories,
	queue *notify.Queue,
	cache *respcache.Cache,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
) (handler.Deps, error) {
	inv := invalidator(cache)
	tokens := auth.NewTokenIssuer(
		[]byte(cfg.Auth.AccessSecret),
		[]byte(cfg.Auth.RefreshSecret),
		cfg.Auth.AccessTTL,
		cfg.Auth.RefreshTTL,
	)
	authSvc := auth.NewService(repos.Users, tokens, queue, auth.Config{
		ResetTTL:    cfg.Auth.ResetTTL,
		FrontendURL: cfg.Mail.FrontendURL,
		BcryptCost:  cfg.Auth.BcryptCost,
	})

	catalogSvc := NewCatalog(repos, cache)

	orderSvc, err := order.NewService(repos.Orders, repos.Users, queue, tp, mp)
	if err != nil {
		return handler.Deps{}, errors.Wrap(err, "order service")
	}
	quoteSvc, err := quote.NewService(repos.Quotes, repos.Users, queue, mp, quote.Config{
		AdminEmail: cfg.Mail.AdminEmail,
	})
	if err != nil {
		return handler.Deps{}, errors.Wrap(err, "quote service")
	}

	return handler.Deps{
		Auth:         authSvc,
		Catalog:      catalogSvc,
		Promotions:   promotion.NewService(repos.Promotions, catalogSvc, inv),
		Cart:         cart.NewService(repos.Carts),
		Orders:       orderSvc,
		Quotes:       quoteSvc,
		Addresses:    address.NewService(repos.Addresses),
		Blog:         blog.NewService(repos.Blog),
		Testimonials: testimonial.NewService(repos.Testimonials),
		Offerings:    offering.NewService(repos.Offerings),
		Cache:        cache,
	}, nil
}

// MaintenanceJobs returns the periodic jobs in run order.
func MaintenanceJobs(lg *zap.Logger, repos *Repositories, queue jobs.Notifier, cfg JobsConfig) []jobs.Job {
	return []jobs.Job{
		jobs.LowStock(repos.Products, repos.Users, queue, cfg.LowStockThreshold, lg.Named("low-stock")),
		jobs.CleanupTokens(repos.Users, lg.Named("cleanup-tokens")),
	}
}

// NewScheduler schedules MaintenanceJobs daily at cfg.LowStockHour.
func NewScheduler(lg *zap.Logger, repos *Repositories, queue jobs.Notifier, cfg JobsConfig) *jobs.Scheduler {
	lg = lg.Named("jobs")
	return jobs.NewScheduler(lg, cfg.LowStockHour, MaintenanceJobs(lg, repos, queue, cfg)...)
}

// NewCatalog creates the catalog service. A nil cache skips response cache
// invalidation.
func NewCatalog(repos *Repositories, cache *respcache.Cache) *catalog.Service {
	return catalog.NewService(repos.Products, repos.Categories, repos.Promotions, invalidator(cache))
}

func invalidator(cache *respcache.Cache) catalog.Invalidator {
	if cache == nil {
		return noopInvalidator{}
	}
	return cache
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateContaining(...string) int { return 0 }
