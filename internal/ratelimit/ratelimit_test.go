package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(limit int, window time.Duration, now *time.Time) *Limiter {
	counter := NewMemoryCounter()
	counter.now = func() time.Time { return *now }
	l := New(counter, limit, window)
	l.now = func() time.Time { return *now }
	return l
}

func TestAllow_FixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	l := newTestLimiter(2, time.Minute, &now)

	_, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	_, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)

	retry, err := l.Allow(ctx, "1.2.3.4")
	require.ErrorIs(t, err, ErrLimited)
	assert.Equal(t, 50*time.Second, retry)

	// Other clients have their own budget.
	_, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
}

func TestMemoryCounter_ExpiresKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	n, _ := c.Incr(ctx, "k")
	require.Equal(t, int64(1), n)
	require.NoError(t, c.Expire(ctx, "k", time.Second))
	n, _ = c.Incr(ctx, "k")
	require.Equal(t, int64(2), n)

	now = now.Add(time.Second)
	n, _ = c.Incr(ctx, "k")
	assert.Equal(t, int64(1), n)
}

func TestMiddleware_Returns429WithRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	l := newTestLimiter(1, time.Minute, &now)

	handler := l.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/presets/active", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingCounter) Expire(context.Context, string, time.Duration) error { return nil }

func TestMiddleware_FailsOpen(t *testing.T) {
	l := New(failingCounter{}, 1, time.Minute)
	handler := l.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRedisCounter_FixedWindow runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisCounter_FixedWindow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	l := New(NewRedisCounter(client), 2, time.Minute)
	l.now = func() time.Time { return now }

	key := "test-" + t.Name()
	bucket := "ratelimit:" + key + ":" + strconv.FormatInt(now.Truncate(time.Minute).Unix(), 10)
	t.Cleanup(func() { _ = client.Del(ctx, bucket).Err() })

	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, key)
		require.NoError(t, err)
	}
	retry, err := l.Allow(ctx, key)
	require.ErrorIs(t, err, ErrLimited)
	assert.Equal(t, 50*time.Second, retry)

	ttl, err := client.TTL(ctx, bucket).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
