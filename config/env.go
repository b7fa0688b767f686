package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader lê variáveis de ambiente e acumula erros de parse em vez de
// cair silenciosamente no default.
type envReader struct {
	errs []error
}

func lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(k string, dst *string) {
	if v, ok := lookup(k); ok {
		*dst = v
	}
}

func (e *envReader) boolean(k string, dst *bool) {
	v, ok := lookup(k)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return
	}
	*dst = b
}

func (e *envReader) duration(k string, dst *time.Duration) {
	v, ok := lookup(k)
	if !ok {
		return
	}
	// aceita segundos inteiros (ex: CACHE_TTL=300) ou duração Go (ex: 5m)
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return
	}
	*dst = d
}

func (e *envReader) list(k string, dst *[]string) {
	v, ok := lookup(k)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func applyEnv(cfg *Config) error {
	e := &envReader{}

	e.str("ENV", &cfg.App.Env)
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.boolean("LOG_JSON", &cfg.Log.JSON)
	e.str("LISTEN_ADDR", &cfg.Server.Addr)

	e.boolean("RATE_LIMIT_ENABLED", &cfg.RateLimiter.Enabled)
	e.str("RATE_LIMIT_RATE", &cfg.RateLimiter.Rate)
	e.str("RATE_LIMIT_MODE", &cfg.RateLimiter.Mode)
	e.list("RATE_LIMIT_EXEMPT_PATHS", &cfg.RateLimiter.ExemptPaths)
	e.str("RATE_LIMIT_KEY_HEADER", &cfg.RateLimiter.KeyHeader)
	e.boolean("TRUST_XFF", &cfg.RateLimiter.TrustXForwardedFor)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.str("CACHE_KEY_PREFIX", &cfg.Cache.KeyPrefix)
	e.duration("CACHE_TTL", &cfg.Cache.TTL)

	e.str("DATABASE_DRIVER", &cfg.Database.Driver)
	e.str("DATABASE_URL", &cfg.Database.URL)
	e.str("DATABASE_NAME", &cfg.Database.Name)

	e.str("EVENTS_TOPIC", &cfg.Events.Topic)
	e.list("EVENTS_TOPICS", &cfg.Events.Topics)
	e.str("EVENTS_CONSUMER_GROUP", &cfg.Events.ConsumerGroup)

	e.boolean("RATE_STATS_REDIS_ENABLED", &cfg.Stats.RedisEnabled)

	return errors.Join(e.errs...)
}
