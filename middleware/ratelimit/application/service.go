package application

import (
	"context"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

// Service concentra a regra de aplicação do rate limit (janela fixa com contador externo).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Falhas do store nunca viram erro para o chamador: a requisição é liberada (fail-open)
// e a falha fica só no log.
type Service struct {
	Store  domain.CounterStore
	Prefix string
	Rule   domain.Rule
	Log    zerolog.Logger
}

// Decide aplica a regra configurada para key.
func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	return s.decide(ctx, key, s.Rule)
}

// CheckRateLimit incrementa o contador de key e informa se a requisição está dentro
// de limit requisições por janela de windowSeconds segundos.
func (s Service) CheckRateLimit(ctx context.Context, key string, limit, windowSeconds int) bool {
	rule := domain.Rule{Limit: limit, Window: time.Duration(windowSeconds) * time.Second}
	return s.decide(ctx, domain.Key(key), rule).Allowed
}

func (s Service) decide(ctx context.Context, key domain.Key, rule domain.Rule) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: rule.Limit}
	}
	if rule.Limit <= 0 || rule.Window < time.Second {
		s.Log.Error().
			Int("limit", rule.Limit).
			Dur("window", rule.Window).
			Msg("rate_limit_invalid_rule")
		return domain.Decision{Allowed: true, Limit: rule.Limit}
	}
	if key == "" {
		key = domain.UnknownKey
	}

	count, err := s.Store.Increment(ctx, s.CounterKey(key), rule.Window)
	if err != nil {
		s.Log.Warn().
			Err(err).
			Str("key", string(key)).
			Msg("rate_limit_check_failed")
		return domain.Decision{Allowed: true, Limit: rule.Limit, FailedOpen: true}
	}

	return domain.Decision{
		Allowed: count <= int64(rule.Limit),
		Count:   count,
		Limit:   rule.Limit,
	}
}

// CounterKey monta a chave no store: "<prefix>rate:<cliente>".
func (s Service) CounterKey(key domain.Key) string {
	return s.Prefix + "rate:" + string(key)
}
