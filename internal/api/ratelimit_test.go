package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(3 * time.Minute)
	rl.Allow("b")
	assert.NotContains(t, rl.buckets, "a")
	assert.Zero(t, rl.RetryAfter("a"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	h(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
