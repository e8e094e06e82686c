package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLimited is returned by Allow once a key has used up its window.
var ErrLimited = errors.New("rate limit exceeded")

// Counter is a per-key counter whose keys expire.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter allows limit hits per key within each fixed window.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

// New creates a Limiter.
func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one hit for key. It returns ErrLimited and the time until the
// window resets once the limit is exceeded.
func (l *Limiter) Allow(ctx context.Context, key string) (time.Duration, error) {
	now := l.now()
	start := now.Truncate(l.window)
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())

	count, err := l.counter.Incr(ctx, bucket)
	if err != nil {
		return 0, fmt.Errorf("increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.counter.Expire(ctx, bucket, l.window); err != nil {
			return 0, fmt.Errorf("set rate limit window: %w", err)
		}
	}

	if count > l.limit {
		return start.Add(l.window).Sub(now), ErrLimited
	}
	return 0, nil
}

// Middleware rejects requests over the limit with 429. Counter failures are
// logged and the request is let through.
func (l *Limiter) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			retryAfter, err := l.Allow(r.Context(), clientKey(r))
			switch {
			case errors.Is(err, ErrLimited):
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			case err != nil:
				logger.Warn("rate limiter unavailable", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RedisCounter counts hits in Redis so limits hold across instances.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a RedisCounter.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr increments key.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets the ttl of key.
func (c *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// MemoryCounter counts hits in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*memoryCount
}

type memoryCount struct {
	n         int64
	expiresAt time.Time
}

// NewMemoryCounter creates a MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, entries: make(map[string]*memoryCount)}
}

// Incr increments key, starting over when it has expired.
func (c *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	e, ok := c.entries[key]
	if !ok {
		e = &memoryCount{}
		c.entries[key] = e
	}
	e.n++
	return e.n, nil
}

// Expire sets the ttl of key.
func (c *MemoryCounter) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.expiresAt = c.now().Add(ttl)
	}
	return nil
}
