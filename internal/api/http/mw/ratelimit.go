package mw

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	rds "flowmap/internal/stores/redis"

	"github.com/redis/go-redis/v9"
)

type RateBucket struct {
	RefillPerSec int
	Burst        int
	TTL          time.Duration
}

// RateLimitMiddleware throttles per client IP (and per token subject when
// auth is on) with a redis-backed bucket, so the limit holds across
// replicas serving the same front-end.
type RateLimitMiddleware struct {
	rdb    *rds.Client
	bucket RateBucket
}

func NewRateLimit(rdb *rds.Client, bucket RateBucket) *RateLimitMiddleware {
	if bucket.TTL == 0 {
		bucket.TTL = 2 * time.Minute
	}
	return &RateLimitMiddleware{rdb: rdb, bucket: bucket}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "rl:ip:" + clientIP(r)
		if sub := SubjectFromRequest(r); sub != "" {
			key = "rl:sub:" + sub
		}

		if !m.allow(r.Context(), key, time.Now()) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// atomic refill-and-take in one round trip
var luaTokenBucket = redis.NewScript(`
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last_ms = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens  = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last_ms then
  local delta = (now - last_ms) / 1000.0
  tokens = math.min(burst, tokens + (delta * rate))
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tokens, 'ts', now)
redis.call('EXPIRE', key, ttl)

return allowed
`)

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, now time.Time) bool {
	ttl := int(m.bucket.TTL.Seconds())
	if ttl <= 0 {
		ttl = 120
	}

	res, err := luaTokenBucket.Run(ctx, m.rdb, []string{key},
		now.UnixMilli(),
		m.bucket.RefillPerSec,
		m.bucket.Burst,
		ttl,
	).Int64()
	if err != nil { // redis trouble must not take the API down
		return true
	}

	return res == 1
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
