package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	BucketMinute = "minute"
	BucketNone   = "none"
)

// RedisStatsStore grava as decisões em hashes do Redis, somando o tráfego de
// todas as instâncias. Campos são os valores de domain.Outcome.
//
//	<prefix>:total                  cumulativo, sem TTL
//	<prefix>:minute:<YYYYMMDDhhmm>  por minuto (UTC), com TTL
//	<prefix>:route                  campo "<METHOD> <path>:<outcome>"
//	<prefix>:key:<cliente>          por cliente, com TTL (só com trackKeys)
type RedisStatsStore struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	bucket    string
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

// WithStatsPrefix ignora ":" nas pontas; prefixo vazio mantém o padrão.
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita BucketMinute ou BucketNone.
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if b := strings.ToLower(strings.TrimSpace(bucket)); b != "" {
			s.bucket = b
		}
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: BucketMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record faz tudo num único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	outcome := string(ev.Outcome())

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key("total"), outcome, 1)

	if s.bucket == BucketMinute {
		s.incrExpiring(ctx, pipe, s.key("minute", at.UTC().Format("200601021504")), outcome)
	}
	if route := strings.TrimSpace(ev.Route()); route != "" {
		pipe.HIncrBy(ctx, s.key("route"), route+":"+outcome, 1)
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		s.incrExpiring(ctx, pipe, s.key("key", k), outcome)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// Totals lê o hash cumulativo.
func (s *RedisStatsStore) Totals(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key("total")).Result()
	if err != nil {
		return Counters{}, err
	}
	var c Counters
	for field, raw := range vals {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch domain.Outcome(field) {
		case domain.OutcomeAllowed:
			c.Allowed = n
		case domain.OutcomeRejected:
			c.Rejected = n
		case domain.OutcomeFailedOpen:
			c.FailedOpen = n
		}
	}
	return c, nil
}
