// Package cache concentra o cliente Redis do serviço: conexão compartilhada
// (cache, rate limit, eventos) e um cache JSON com prefixo e TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service-template/config"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect abre o cliente e faz PING. Falha aqui é fatal para quem chama: o
// serviço não deve subir sem Redis, mesmo que depois o rate limit seja fail-open.
func Connect(ctx context.Context, cfg config.Redis, log zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.SocketTimeout > 0 {
		opts.ReadTimeout = cfg.SocketTimeout
		opts.WriteTimeout = cfg.SocketTimeout
	}
	if cfg.SocketConnectTimeout > 0 {
		opts.DialTimeout = cfg.SocketConnectTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		log.Error().Err(err).Str("addr", opts.Addr).Msg("redis_connection_failed")
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	// opts.Addr não carrega usuário/senha da URL
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis_connected")
	return rdb, nil
}

type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get decodifica o valor em dst. Retorna false quando a chave não existe.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := sonic.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set grava v como JSON. ttl <= 0 usa o TTL padrão do cache.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}
