package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:9999"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLimiter_Allow(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(3, time.Minute)

	for want := 2; want >= 0; want-- {
		remaining, reset, ok := l.Allow("a", start)
		require.True(t, ok)
		assert.Equal(t, want, remaining)
		assert.Equal(t, start.Add(time.Minute), reset)
	}
	_, _, ok := l.Allow("a", start.Add(time.Second))
	assert.False(t, ok)

	_, _, ok = l.Allow("b", start)
	assert.True(t, ok, "keys are independent")
}

func TestLimiter_SlidingWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(4, time.Minute)
	for range 4 {
		_, _, ok := l.Allow("a", start)
		require.True(t, ok)
	}

	// A quarter into the next window, 3 of the previous 4 still count.
	remaining, _, ok := l.Allow("a", start.Add(75*time.Second))
	require.True(t, ok)
	assert.Equal(t, 0, remaining)
	_, _, ok = l.Allow("a", start.Add(75*time.Second))
	assert.False(t, ok)

	// Two windows later everything is forgotten.
	remaining, _, ok = l.Allow("a", start.Add(3*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestLimiter_Evict(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(1, time.Minute)
	l.Allow("old", start)
	l.Allow("new", start.Add(2*time.Minute))

	assert.Equal(t, 1, l.Evict(start.Add(2*time.Minute+time.Second)))
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		w := send(h, http.MethodGet, "/api/products", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := send(h, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Too many requests, please try again later", body.Message)
}

func TestRateLimit_Exempt(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Exempt: []string{"/livez", "/readyz"},
	})(okHandler())

	require.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/cart", nil).Code)
	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/livez"},
		{http.MethodGet, "/readyz"},
		{http.MethodOptions, "/api/cart"},
	} {
		w := send(h, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tc.method, tc.path)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodGet, "/api/cart", nil).Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("Authorization")
		},
	})(okHandler())
	as := func(token string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", token) }
	}

	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/cart", as("Bearer a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodGet, "/api/cart", as("Bearer a")).Code)
	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/cart", as("Bearer b")).Code)
}

func TestClientIP(t *testing.T) {
	for _, tc := range []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1:4444", "192.168.1.1"},
		{"remote without port", nil, "192.168.1.1", "192.168.1.1"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "10.0.0.1:1", "203.0.113.50"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:1", "198.51.100.7"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}
