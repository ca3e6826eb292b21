package auth

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"travel-booking/internal/observability"
)

const loginRateKeyPrefix = "rl:login:"

// LoginRateLimiter caps login requests per client IP. When a redis client is
// attached the counters are shared across instances; otherwise they live in
// process memory.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitByIP   map[string][]time.Time
	maxMemory int

	cache  *redis.Client
	logger *observability.Logger
	now    func() time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		hitByIP:   make(map[string][]time.Time),
		maxMemory: 5000,
		now:       time.Now,
	}
}

// WithRedis switches the limiter to fixed-window counters in redis. Cache
// errors fail open.
func (l *LoginRateLimiter) WithRedis(cache *redis.Client, logger *observability.Logger) *LoginRateLimiter {
	l.cache = cache
	l.logger = logger
	return l
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)

		var (
			allowed    bool
			retryAfter time.Duration
		)
		if l.cache != nil {
			allowed, retryAfter = l.allowShared(r.Context(), ip)
		} else {
			allowed, retryAfter = l.allow(ip, l.now().UTC())
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allowShared(ctx context.Context, ip string) (bool, time.Duration) {
	key := loginRateKeyPrefix + ip

	count, err := l.cache.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("login_rate_limit_cache_error", map[string]any{"error": err.Error()})
		return true, 0
	}
	if count == 1 {
		if err := l.cache.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("login_rate_limit_cache_error", map[string]any{"error": err.Error()})
		}
	}
	if count <= int64(l.maxHits) {
		return true, 0
	}

	ttl, err := l.cache.TTL(ctx, key).Result()
	if err != nil || ttl < time.Second {
		ttl = time.Second
	}
	return false, ttl
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitByIP[ip]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= l.maxHits {
		retryAfter := filtered[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitByIP[ip] = filtered
		return false, retryAfter
	}

	filtered = append(filtered, now)
	l.hitByIP[ip] = filtered

	if len(l.hitByIP) > l.maxMemory {
		for key, value := range l.hitByIP {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(l.hitByIP, key)
			}
		}
	}

	return true, 0
}
