package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter decides whether one more request for key fits the quota.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillEach time.Duration // satu token per refillEach
	lastRefill time.Time
}

func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillEach: window / time.Duration(capacity),
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.allowAt(time.Now())
}

func (tb *TokenBucket) allowAt(now time.Time) bool {
	if tb.refillEach > 0 {
		if add := int(now.Sub(tb.lastRefill) / tb.refillEach); add > 0 {
			tb.tokens += add
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.lastRefill = tb.lastRefill.Add(time.Duration(add) * tb.refillEach)
		}
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// LocalLimiter keeps one bucket per key in process memory. Used when Redis is not configured,
// so limits are per replica.
type LocalLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*TokenBucket
	capacity int
	window   time.Duration
}

// NewLocalLimiter allows limit requests per window per key. Idle buckets are dropped until ctx ends.
func NewLocalLimiter(ctx context.Context, limit int, window time.Duration) *LocalLimiter {
	rl := &LocalLimiter{
		buckets:  make(map[string]*TokenBucket),
		capacity: limit,
		window:   window,
	}
	go rl.cleanup(ctx)
	return rl
}

func (rl *LocalLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}
	bucket = NewTokenBucket(rl.capacity, rl.window)
	rl.buckets[key] = bucket
	return bucket
}

func (rl *LocalLimiter) Allow(_ context.Context, key string) bool {
	return rl.getBucket(key).Allow()
}

func (rl *LocalLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, bucket := range rl.buckets {
				bucket.mu.Lock()
				// bucket yang idle > 2 window dibuang
				if now.Sub(bucket.lastRefill) > 2*rl.window {
					delete(rl.buckets, key)
				}
				bucket.mu.Unlock()
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimit guards the model-backed routes, keyed by client IP.
func RateLimit(limiter Limiter, window time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(r.Context(), key) {
				IncrementRateLimited()
				log.Info("rate limited", zap.String("key", key), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// chi RealIP sudah menimpa RemoteAddr kalau ada X-Forwarded-For
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
