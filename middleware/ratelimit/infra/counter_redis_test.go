package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCounterStore_IncrementsAndSetsTTLOnce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)
	ctx := context.Background()

	n, err := s.Increment(ctx, "rate:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("rate:1.2.3.4"))

	// 20s depois o TTL restante não pode ser renovado pelo segundo hit
	mr.FastForward(20 * time.Second)
	n, err = s.Increment(ctx, "rate:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 40*time.Second, mr.TTL("rate:1.2.3.4"))
}

func TestRedisCounterStore_ResetsAfterWindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("k"))

	n, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisCounterStore_RepairsKeyWithoutTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)

	require.NoError(t, mr.Set("k", "5"))

	n, err := s.Increment(context.Background(), "k", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisCounterStore_SlidingModeRefreshesTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb, WithWindowMode(domain.SlidingWindow))
	ctx := context.Background()
	require.Equal(t, domain.SlidingWindow, s.Mode())

	_, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	mr.FastForward(20 * time.Second)
	n, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRedisCounterStore_RejectsSubSecondWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)

	_, err := s.Increment(context.Background(), "k", 500*time.Millisecond)
	assert.Error(t, err)
}

func TestRedisCounterStore_ReturnsErrorWhenStoreIsDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)
	mr.Close()

	_, err := s.Increment(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestRedisCounterStore_ConcurrentIncrementsAreLinearized(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)

	const (
		n     = 40
		limit = 15
	)
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		seen    sync.Map
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			count, err := s.Increment(context.Background(), "hot", time.Minute)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if _, dup := seen.LoadOrStore(count, struct{}{}); dup {
				t.Errorf("count %d observed twice", count)
			}
			if count <= limit {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}
