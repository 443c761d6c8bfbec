package httpmw

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"huntforge.ai/internal/metrics"
	"huntforge.ai/internal/protocol"
)

// Limiter decides whether one more request fits in the current second.
type Limiter interface {
	Allow(ctx context.Context) bool
	Name() string
}

// TokenBucket refills to capacity at the start of every wall-clock second.
type TokenBucket struct {
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	tokens  int
	lastSec int64
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
}

func (tb *TokenBucket) Name() string { return "local" }

func (tb *TokenBucket) Allow(context.Context) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	sec := tb.now().Unix()
	if tb.lastSec != sec {
		tb.lastSec = sec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RedisLimiter shares one per-second budget across server instances with an
// INCR on a key per second. Redis errors let the request through.
type RedisLimiter struct {
	rc     *redis.Client
	qps    int64
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rc *redis.Client, qps int, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "huntforge:rl"
	}
	return &RedisLimiter{rc: rc, qps: int64(qps), prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Name() string { return "redis" }

func (l *RedisLimiter) Allow(ctx context.Context) bool {
	if l.rc == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	key := l.prefix + ":" + strconv.FormatInt(l.now().Unix(), 10)
	pipe := l.rc.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}
	return incr.Val() <= l.qps
}

// OpenRedisFromEnv returns a client for HF_REDIS_ADDR (HF_REDIS_PASS,
// HF_REDIS_DB optional), or nil when no address is set.
func OpenRedisFromEnv() *redis.Client {
	addr := strings.TrimSpace(os.Getenv("HF_REDIS_ADDR"))
	if addr == "" {
		return nil
	}
	db := 0
	if v := os.Getenv("HF_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    os.Getenv("HF_REDIS_PASS"),
		DB:          db,
		DialTimeout: time.Second,
	})
}

// LimiterFromEnv reads HF_RATE_LIMIT_QPS. Zero or unset disables limiting.
// With HF_REDIS_ADDR set the budget is shared through redis.
func LimiterFromEnv() Limiter {
	qps, err := strconv.Atoi(strings.TrimSpace(os.Getenv("HF_RATE_LIMIT_QPS")))
	if err != nil || qps <= 0 {
		return nil
	}
	if rc := OpenRedisFromEnv(); rc != nil {
		return NewRedisLimiter(rc, qps, os.Getenv("HF_REDIS_PREFIX"))
	}
	return NewTokenBucket(qps)
}

// RateLimit rejects requests over the limiter's budget with 429. A nil
// limiter returns next unchanged.
func RateLimit(l Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.Context()) {
			metrics.RateLimitedTotal.WithLabelValues(l.Name()).Inc()
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(protocol.HTTPStatus(protocol.ErrRateLimited))
			_ = json.NewEncoder(w).Encode(map[string]string{"code": protocol.ErrRateLimited, "message": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
