// Package health serves liveness and readiness probes.
//
// Every registered check is polled in the background. A check turns
// unhealthy after FailureThreshold consecutive failures and healthy again
// after SuccessThreshold consecutive successes, so probes do not flap on a
// single slow query.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Options tune a single check. Zero values take the defaults.
type Options struct {
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

const (
	defaultTimeout          = 5 * time.Second
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = defaultFailureThreshold
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = defaultSuccessThreshold
	}
	return o
}

type kind string

const (
	kindLiveness  kind = "liveness"
	kindReadiness kind = "readiness"
)

// CheckState is the last observed outcome of a check.
type CheckState struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

type check struct {
	name  string
	kind  kind
	fn    CheckFunc
	opts  Options
	state atomic.Pointer[CheckState]

	// Touched only by the polling goroutine.
	fails, oks int
}

func newCheck(name string, k kind, fn CheckFunc, opts Options) *check {
	c := &check{name: name, kind: k, fn: fn, opts: opts.withDefaults()}
	c.state.Store(&CheckState{Healthy: true})
	return c
}

// run polls the check once and reports whether its health flipped.
func (c *check) run(ctx context.Context, now time.Time) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	err := c.fn(ctx)
	prev := c.state.Load()
	next := CheckState{Healthy: prev.Healthy, CheckedAt: now}
	if err != nil {
		next.Error = err.Error()
		c.oks = 0
		c.fails++
		if c.fails >= c.opts.FailureThreshold {
			next.Healthy = false
		}
	} else {
		c.fails = 0
		c.oks++
		if c.oks >= c.opts.SuccessThreshold {
			next.Healthy = true
		}
	}
	c.state.Store(&next)
	return next.Healthy != prev.Healthy
}

// Health tracks probe state for the process.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool
	now   func() time.Time

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg, now: time.Now}
}

// AddLivenessCheck registers a check that decides whether the process must
// be restarted.
func (h *Health) AddLivenessCheck(name string, fn CheckFunc, opts Options) {
	h.add(newCheck(name, kindLiveness, fn, opts))
}

// AddReadinessCheck registers a check that decides whether the process
// should receive traffic.
func (h *Health) AddReadinessCheck(name string, fn CheckFunc, opts Options) {
	h.add(newCheck(name, kindReadiness, fn, opts))
}

func (h *Health) add(c *check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// Start polls every registered check each interval until Stop or ctx ends.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	for _, c := range checks {
		go h.poll(ctx, c, interval)
	}
}

func (h *Health) poll(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.runOnce(ctx, c)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) runOnce(ctx context.Context, c *check) {
	if !c.run(ctx, h.now()) {
		return
	}
	st := c.state.Load()
	if st.Healthy {
		h.lg.Info("Health check recovered",
			zap.String("check", c.name),
			zap.String("kind", string(c.kind)),
		)
		return
	}
	h.lg.Warn("Health check failing",
		zap.String("check", c.name),
		zap.String("kind", string(c.kind)),
		zap.String("error", st.Error),
	)
}

// Stop ends background polling. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness flag. It is set once wiring completes
// and cleared when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual flag is set and every readiness check
// passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	healthy, _ := h.report(kindReadiness)
	return healthy
}

// Report is the probe response body.
type Report struct {
	Success bool                  `json:"success"`
	Status  string                `json:"status"`
	Checks  map[string]CheckState `json:"checks,omitempty"`
	Failing []string              `json:"failing,omitempty"`
}

func (h *Health) report(k kind) (bool, Report) {
	h.mu.RLock()
	checks := append([]*check(nil), h.checks...)
	h.mu.RUnlock()

	r := Report{Success: true, Status: "ok"}
	for _, c := range checks {
		if c.kind != k {
			continue
		}
		st := *c.state.Load()
		if r.Checks == nil {
			r.Checks = make(map[string]CheckState)
		}
		r.Checks[c.name] = st
		if !st.Healthy {
			r.Failing = append(r.Failing, c.name)
		}
	}
	sort.Strings(r.Failing)
	if len(r.Failing) > 0 {
		r.Success = false
		r.Status = "unavailable"
	}
	return r.Success, r
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	_, r := h.report(kindLiveness)
	writeReport(w, r)
}

// ReadyEndpoint serves /readyz. It fails while the manual flag is unset.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	_, r := h.report(kindReadiness)
	if !h.ready.Load() {
		r.Success = false
		r.Status = "not_ready"
	}
	writeReport(w, r)
}

func writeReport(w http.ResponseWriter, r Report) {
	status := http.StatusOK
	if !r.Success {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(r)
}
