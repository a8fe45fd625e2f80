package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rds "flowmap/internal/stores/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimit(t *testing.T, bucket RateBucket) *RateLimitMiddleware {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &rds.Client{
		Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
	}
	return NewRateLimit(client, bucket)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_BurstThenThrottled(t *testing.T) {
	t.Parallel()

	m := setupRateLimit(t, RateBucket{RefillPerSec: 1, Burst: 3, TTL: time.Minute})
	h := m.Handler(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/flows/24h", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d inside the burst", i)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/flows/24h", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimit_SeparateBucketsPerIP(t *testing.T) {
	t.Parallel()

	m := setupRateLimit(t, RateBucket{RefillPerSec: 1, Burst: 1, TTL: time.Minute})
	h := m.Handler(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// a different client is not affected by the drained bucket
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:2222"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "203.0.113.7", clientIP(r))
}
