package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h http.HandlerFunc) (int, Report) {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var r Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&r))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	return w.Code, r
}

// drive runs the only registered check n times.
func drive(h *Health, n int) {
	for range n {
		h.runOnce(context.Background(), h.checks[0])
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		fn      CheckFunc
		runs    int
		code    int
		status  string
		failing []string
	}{
		{name: "no checks", code: http.StatusOK, status: "ok"},
		{name: "passing", fn: ok, runs: 1, code: http.StatusOK, status: "ok"},
		{name: "below threshold", fn: failing("slow"), runs: 2, code: http.StatusOK, status: "ok"},
		{name: "at threshold", fn: failing("slow"), runs: 3, code: http.StatusServiceUnavailable, status: "unavailable", failing: []string{"probe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			if tt.fn != nil {
				h.AddLivenessCheck("probe", tt.fn, Options{})
				drive(h, tt.runs)
			}

			code, r := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.failing, r.Failing)
		})
	}
}

func TestReadyEndpoint_ManualFlag(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("postgres", ok, Options{})

	code, r := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", r.Status)

	h.SetReady(true)
	code, r = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, r.Success)
	assert.Contains(t, r.Checks, "postgres")

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_IgnoresLivenessChecks(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("goroutines", failing("leak"), Options{FailureThreshold: 1})
	drive(h, 1)
	h.SetReady(true)

	code, r := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, r.Checks)
	assert.True(t, h.IsReady())
}

func TestCheck_RecoversAfterSuccessThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := New(zap.New(core))

	var fail bool
	h.AddReadinessCheck("db", func(context.Context) error {
		if fail {
			return errors.New("connection refused")
		}
		return nil
	}, Options{FailureThreshold: 1, SuccessThreshold: 2})
	h.SetReady(true)

	fail = true
	drive(h, 1)
	assert.False(t, h.IsReady())
	st := h.checks[0].state.Load()
	assert.Equal(t, "connection refused", st.Error)
	assert.False(t, st.CheckedAt.IsZero())

	fail = false
	drive(h, 1)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	drive(h, 1)
	assert.True(t, h.IsReady())

	assert.Equal(t, 1, logs.FilterMessage("Health check failing").Len())
	assert.Equal(t, 1, logs.FilterMessage("Health check recovered").Len())
}

func TestCheck_Timeout(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, Options{Timeout: 10 * time.Millisecond, FailureThreshold: 1})

	drive(h, 1)
	assert.Contains(t, h.checks[0].state.Load().Error, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New(nil)
	var mu sync.Mutex
	calls := 0
	h.AddLivenessCheck("counter", func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, Options{})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, calls)
}

func TestConcurrentReads(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("flaky", failing("x"), Options{FailureThreshold: 1})
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.IsReady()
			w := httptest.NewRecorder()
			h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pingerFunc(ok))(context.Background()))

	err := PingCheck(pingerFunc(failing("down")))(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

type fakeQueue struct{ backlog, capacity int }

func (q fakeQueue) Backlog() int  { return q.backlog }
func (q fakeQueue) Capacity() int { return q.capacity }

func TestBacklogCheck(t *testing.T) {
	tests := []struct {
		name    string
		q       fakeQueue
		wantErr bool
	}{
		{name: "empty", q: fakeQueue{0, 100}},
		{name: "below ratio", q: fakeQueue{89, 100}},
		{name: "at ratio", q: fakeQueue{90, 100}, wantErr: true},
		{name: "unbounded", q: fakeQueue{5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BacklogCheck(tt.q, 0.9)(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
