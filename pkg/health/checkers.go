package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running,
// which usually means requests or workers are leaking.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// Pinger is a dependency that can be pinged, such as a pgx pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Backlogged is a bounded queue reporting its fill level.
type Backlogged interface {
	Backlog() int
	Capacity() int
}

// BacklogCheck fails when q is filled to at least ratio of its capacity.
// A full notification queue drops messages, so the instance should stop
// taking writes until workers catch up.
func BacklogCheck(q Backlogged, ratio float64) CheckFunc {
	return func(context.Context) error {
		capacity := q.Capacity()
		if capacity <= 0 {
			return nil
		}
		backlog := q.Backlog()
		if float64(backlog) >= ratio*float64(capacity) {
			return errors.Errorf("backlog %d of %d", backlog, capacity)
		}
		return nil
	}
}
