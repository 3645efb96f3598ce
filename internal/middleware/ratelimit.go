// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	BypassFunc func(*http.Request) bool
}

// RateLimiter counts requests in Redis. While Redis is unreachable each
// key falls back to an in-process token bucket of the same shape.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *bucketSet
	config   RateLimitConfig
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: newBucketSet(cfg.Limit),
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)

		res, err := rl.redis.Allow(r.Context(), key, rl.config.Limit)
		if err != nil {
			slog.WarnContext(r.Context(), "rate limit store unavailable, using local buckets",
				"key", key,
				"error", err,
			)
			res = rl.fallback.allow(key)
		}

		writeLimitHeaders(w.Header(), rl.config.Limit, res)

		if res.Allowed == 0 {
			retryAfter := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			core.JSONError(w, core.RateLimitedError(retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeLimitHeaders(h http.Header, limit redis_rate.Limit, res *redis_rate.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))
}

// clientIP trusts the last X-Forwarded-For hop, the one our own proxy
// appended.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

// KeyByIPAndEndpoint gives each credential endpoint its own budget so a
// burst of sign-in attempts cannot starve password recovery.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":endpoint:" + path.Clean("/"+r.URL.Path)
}

// BypassPaths skips limiting for the health endpoints.
func BypassPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: time.Minute,
	}
}

const bucketIdle = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// bucketSet holds one token bucket per key. Idle buckets are dropped
// whenever a new key arrives and the last sweep is older than bucketIdle.
type bucketSet struct {
	limit     redis_rate.Limit
	every     time.Duration
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newBucketSet(limit redis_rate.Limit) *bucketSet {
	every := time.Second
	if limit.Rate > 0 {
		every = limit.Period / time.Duration(limit.Rate)
	}

	return &bucketSet{
		limit:   limit,
		every:   every,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *bucketSet) allow(key string) *redis_rate.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		s.sweepLocked(now)
		b = &bucket{lim: rate.NewLimiter(rate.Every(s.every), s.limit.Burst)}
		s.buckets[key] = b
	}
	b.seen = now

	res := &redis_rate.Result{
		Limit:      s.limit,
		RetryAfter: -1,
		ResetAfter: s.every,
	}
	if b.lim.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = s.every
	}
	res.Remaining = max(int(b.lim.TokensAt(now)), 0)

	return res
}

func (s *bucketSet) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < bucketIdle {
		return
	}
	s.lastSweep = now

	for key, b := range s.buckets {
		if now.Sub(b.seen) > bucketIdle {
			delete(s.buckets, key)
		}
	}
}
