// Command flora-admin runs ChezFlora operational tasks against the shop
// database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/app"
	"github.com/xenking/chezflora/internal/storage/postgres"
)

var (
	databaseURL string
	verbose     bool

	cfg *app.Config
	lg  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flora-admin",
	Short: "ChezFlora operations tool",
	Long: `flora-admin manages the ChezFlora database outside the API server.

Configuration is read the same way as the API server (FLORA_ environment
variables and config.yaml). The database URL can also be given with
--database-url or DATABASE_URL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setup(*cobra.Command, []string) error {
	var err error
	cfg, err = app.LoadToolConfig()
	if err != nil {
		return err
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lg, err = zcfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	return nil
}

func openRepositories(ctx context.Context) (*app.Repositories, *pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect")
	}
	return app.NewRepositories(pool), pool, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if lg != nil {
		_ = lg.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
