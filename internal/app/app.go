package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/chezflora/internal/handler"
	"github.com/xenking/chezflora/internal/storage/postgres"
	"github.com/xenking/chezflora/pkg/health"
	"github.com/xenking/chezflora/pkg/httpmiddleware"
	"github.com/xenking/chezflora/pkg/respcache"
)

// Run creates all dependencies, starts the HTTP server and background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.Migrate(ctx, cfg.DatabaseURL, postgres.Up); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	queue, err := NewMailQueue(lg, cfg.Mail)
	if err != nil {
		return err
	}

	var cache *respcache.Cache
	if cfg.Cache.TTL > 0 {
		cache = respcache.New(cfg.Cache.TTL)
	}

	repos := NewRepositories(pool)
	deps, err := NewServices(repos, queue, cache, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}
	deps.CORS = handler.CORSConfig{Origins: cfg.CORS.Origins, AllowCredentials: cfg.CORS.AllowCredentials}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddLivenessCheck("goroutines", health.GoroutineCountCheck(10000), health.Options{Timeout: time.Second})
	healthSvc.AddReadinessCheck("postgres", health.PingCheck(pool), health.Options{})
	healthSvc.AddReadinessCheck("mail_queue", health.BacklogCheck(queue, 0.9), health.Options{Timeout: time.Second})

	gin.SetMode(gin.ReleaseMode)
	api := handler.New(deps)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("flora-api", m, "/livez", "/readyz"),
			httpmiddleware.LogRequests(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Exempt: []string{"/livez", "/readyz"},
			}),
		),
	}

	// The queue outlives the server so emails enqueued by in-flight requests
	// are still delivered during shutdown.
	queueCtx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
	defer stopQueue()

	g, gCtx := errgroup.WithContext(ctx)
	queueDone := make(chan struct{})
	g.Go(func() error {
		defer close(queueDone)
		return queue.Run(queueCtx)
	})
	if cfg.Jobs.Enabled {
		scheduler := NewScheduler(lg, repos, queue, cfg.Jobs)
		g.Go(func() error {
			return scheduler.Run(gCtx)
		})
	}
	if cache != nil {
		cache.StartEviction(gCtx)
	}

	healthSvc.Start(gCtx, 10*time.Second)
	healthSvc.SetReady(true)

	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()

		stopQueue()
		select {
		case <-queueDone:
		case <-shutdownCtx.Done():
			lg.Warn("Mail queue did not drain before timeout")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
