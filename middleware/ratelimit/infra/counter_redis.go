package infra

import (
	"context"
	"fmt"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript incrementa e define o TTL apenas quando a chave nasce nesta
// chamada. Também cobre chaves sem TTL (TTL == -1), que nunca expirariam.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("TTL", KEYS[1]) == -1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisCounterStore implementa domain.CounterStore sobre Redis.
//
// O contador é compartilhado por todas as instâncias do serviço; nada é guardado
// em memória local.
type RedisCounterStore struct {
	rdb  *redis.Client
	mode domain.WindowMode
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)

type CounterOption func(*RedisCounterStore)

func WithWindowMode(mode domain.WindowMode) CounterOption {
	return func(s *RedisCounterStore) {
		if mode != "" {
			s.mode = mode
		}
	}
}

func NewRedisCounterStore(rdb *redis.Client, opts ...CounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:  rdb,
		mode: domain.FixedWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) Mode() domain.WindowMode { return s.mode }

// Increment implementa domain.CounterStore.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if s == nil || s.rdb == nil {
		return 0, fmt.Errorf("redis counter store not initialized")
	}

	seconds := int64(window / time.Second)
	if seconds <= 0 {
		return 0, fmt.Errorf("window must be at least 1s, got %s", window)
	}

	if s.mode == domain.SlidingWindow {
		return s.incrementSliding(ctx, key, window)
	}

	count, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, seconds).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return count, nil
}

// incrementSliding renova o TTL a cada chamada (MULTI/INCR/EXPIRE/EXEC).
func (s *RedisCounterStore) incrementSliding(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return counter.Val(), nil
}
