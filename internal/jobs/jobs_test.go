package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
)

type stubStock struct {
	products  []catalog.Product
	threshold int
	err       error
}

func (s *stubStock) LowStock(_ context.Context, threshold int) ([]catalog.Product, error) {
	s.threshold = threshold
	return s.products, s.err
}

type stubAdmins []user.User

func (s stubAdmins) ListActiveAdmins(context.Context) ([]user.User, error) { return s, nil }

type recordingNotifier struct {
	msgs []notify.Message
}

func (r *recordingNotifier) Enqueue(_ context.Context, msg notify.Message) {
	r.msgs = append(r.msgs, msg)
}

type stubCleaner struct {
	n   int64
	err error
}

func (s stubCleaner) ClearExpiredResetTokens(context.Context, time.Time) (int64, error) {
	return s.n, s.err
}

func TestLowStock_EmailsEveryAdmin(t *testing.T) {
	stock := &stubStock{products: []catalog.Product{
		{Name: "Roses", SKU: "P1", Stock: 2},
		{Name: "Tulips", SKU: "P2", Stock: 0},
	}}
	admins := stubAdmins{{Email: "a@flora.test"}, {Email: "b@flora.test"}}
	n := &recordingNotifier{}

	job := LowStock(stock, admins, n, 0, zap.NewNop())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, DefaultLowStockThreshold, stock.threshold)
	require.Len(t, n.msgs, 2)
	assert.Equal(t, "a@flora.test", n.msgs[0].To)
	assert.Equal(t, notify.TemplateLowStock, n.msgs[0].Template)
	data := n.msgs[1].Data.(notify.LowStockEmail)
	assert.Len(t, data.Products, 2)
	assert.Equal(t, 5, data.Threshold)
}

func TestLowStock_NothingLow(t *testing.T) {
	n := &recordingNotifier{}
	job := LowStock(&stubStock{}, stubAdmins{{Email: "a@flora.test"}}, n, 3, zap.NewNop())
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, n.msgs)
}

func TestCleanupTokens(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := CleanupTokens(stubCleaner{n: 4}, zap.New(core))
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(4), logs.All()[0].ContextMap()["count"])

	job = CleanupTokens(stubCleaner{err: errors.New("db down")}, zap.NewNop())
	require.Error(t, job.Run(context.Background()))
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before hour", time.Date(2025, 3, 1, 8, 59, 0, 0, loc), time.Date(2025, 3, 1, 9, 0, 0, 0, loc)},
		{"exactly at hour", time.Date(2025, 3, 1, 9, 0, 0, 0, loc), time.Date(2025, 3, 2, 9, 0, 0, 0, loc)},
		{"after hour", time.Date(2025, 3, 1, 17, 0, 0, 0, loc), time.Date(2025, 3, 2, 9, 0, 0, 0, loc)},
		{"month end", time.Date(2025, 3, 31, 10, 0, 0, 0, loc), time.Date(2025, 4, 1, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRun(tt.now, 9))
		})
	}
}

func TestScheduler_RunsJobsAndContinuesAfterFailure(t *testing.T) {
	var ran atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failing := Job{Name: "failing", Run: func(context.Context) error { return errors.New("boom") }}
	counting := Job{Name: "counting", Run: func(context.Context) error {
		if ran.Add(1) == 2 {
			cancel()
		}
		return nil
	}}

	core, logs := observer.New(zap.ErrorLevel)
	s := NewScheduler(zap.New(core), 9, failing, counting)
	fired := make(chan time.Time)
	close(fired)
	s.after = func(time.Duration) <-chan time.Time { return fired }

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, ran.Load(), int32(2))
	assert.GreaterOrEqual(t, logs.FilterMessage("Job failed").Len(), 2)
}
