package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "rate_limit:1.2.3.4:2026-10-17", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := store.Incr(ctx, "rate_limit:5.6.7.8:2026-10-17", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = store.Incr(ctx, "k", 24*time.Hour)
	_, _ = store.Incr(ctx, "k", 24*time.Hour)

	// later increments must not extend the window
	now = now.Add(23 * time.Hour)
	got, _ := store.Incr(ctx, "k", 24*time.Hour)
	assert.Equal(t, int64(3), got)

	now = now.Add(time.Hour)
	got, _ = store.Incr(ctx, "k", 24*time.Hour)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = store.Incr(ctx, "a", time.Minute)
	_, _ = store.Incr(ctx, "b", time.Hour)
	assert.Equal(t, 2, store.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreConcurrentIncr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Incr(ctx, "shared", time.Hour)
		}()
	}
	wg.Wait()

	got, err := store.Incr(ctx, "shared", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
}

func TestRedisStoreIncr(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	got, err := store.Incr(ctx, "rate_limit:1.2.3.4:2026-10-17", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	assert.Equal(t, 24*time.Hour, mr.TTL("rate_limit:1.2.3.4:2026-10-17"))

	mr.FastForward(time.Hour)
	got, err = store.Incr(ctx, "rate_limit:1.2.3.4:2026-10-17", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
	assert.Equal(t, 23*time.Hour, mr.TTL("rate_limit:1.2.3.4:2026-10-17"))

	mr.FastForward(23 * time.Hour)
	assert.False(t, mr.Exists("rate_limit:1.2.3.4:2026-10-17"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	_, err := store.Incr(context.Background(), "k", time.Hour)
	assert.Error(t, err)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = NewRedisStore(context.Background(), "not a url")
	assert.Error(t, err)
}
