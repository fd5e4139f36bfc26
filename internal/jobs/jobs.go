// Package jobs runs the shop's periodic maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
)

// DefaultLowStockThreshold is the stock level below which products are
// reported.
const DefaultLowStockThreshold = 5

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Notifier schedules an email for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// StockSource lists products running low.
type StockSource interface {
	LowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
}

// AdminSource lists the accounts that receive operational alerts.
type AdminSource interface {
	ListActiveAdmins(ctx context.Context) ([]user.User, error)
}

// TokenCleaner purges password reset tokens that expired before now.
type TokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// LowStock reports products with stock below threshold to every active
// admin. Nothing is sent when no product is low.
func LowStock(products StockSource, admins AdminSource, notifier Notifier, threshold int, lg *zap.Logger) Job {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return Job{
		Name: "low-stock",
		Run: func(ctx context.Context) error {
			low, err := products.LowStock(ctx, threshold)
			if err != nil {
				return errors.Wrap(err, "list low stock")
			}
			if len(low) == 0 {
				lg.Debug("No low stock products", zap.Int("threshold", threshold))
				return nil
			}

			list, err := admins.ListActiveAdmins(ctx)
			if err != nil {
				return errors.Wrap(err, "list admins")
			}

			lines := make([]notify.LowStockLine, len(low))
			for i, p := range low {
				lines[i] = notify.LowStockLine{Name: p.Name, SKU: p.SKU, Stock: p.Stock}
			}
			for _, a := range list {
				notifier.Enqueue(ctx, notify.Message{
					To:       a.Email,
					Subject:  "Low stock alert",
					Template: notify.TemplateLowStock,
					Data:     notify.LowStockEmail{Threshold: threshold, Products: lines},
				})
			}
			lg.Info("Low stock alert sent",
				zap.Int("products", len(low)),
				zap.Int("recipients", len(list)),
			)
			return nil
		},
	}
}

// CleanupTokens clears expired password reset tokens.
func CleanupTokens(cleaner TokenCleaner, lg *zap.Logger) Job {
	return Job{
		Name: "cleanup-tokens",
		Run: func(ctx context.Context) error {
			n, err := cleaner.ClearExpiredResetTokens(ctx, time.Now())
			if err != nil {
				return errors.Wrap(err, "cleanup reset tokens")
			}
			lg.Info("Expired reset tokens cleared", zap.Int64("count", n))
			return nil
		},
	}
}
