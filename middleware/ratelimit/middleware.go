package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"service-template/middleware/ratelimit/application"
	"service-template/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Config domain.Config
	Store  domain.CounterStore
	Stats  domain.StatsStore

	// KeyFn sobrescreve a extração de chave. Sem ela, usa DefaultKeyFunc.
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	Logger zerolog.Logger
}

// DefaultKeyFunc identifica o cliente pelo endereço de origem.
//
// keyHeader e trustXFF são opcionais e só devem ser ligados atrás de um proxy
// confiável; sem eles vale o host de RemoteAddr, e "unknown" quando não há endereço.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return string(domain.UnknownKey)
	}
}

// Middleware aplica o rate limit de janela fixa antes do handler.
//
// Desligado: repassa tudo. Caminho isento: repassa sem contar.
// Caso contrário incrementa o contador do cliente; acima do limite responde 429
// e o próximo handler não é chamado. Falha no store libera a requisição.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if !opts.Config.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	exempt := make(map[string]struct{}, len(opts.Config.ExemptPaths))
	for _, p := range opts.Config.ExemptPaths {
		exempt[p] = struct{}{}
	}

	svc := application.Service{
		Store:  opts.Store,
		Prefix: opts.Config.Prefix,
		Rule:   opts.Config.Rule,
		Log:    opts.Logger,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			log := requestLogger(r, opts.Logger)
			key := domain.Key(opts.KeyFn(r))
			if key == "" {
				key = domain.UnknownKey
			}

			reqSvc := svc
			reqSvc.Log = log
			dec := reqSvc.Decide(r.Context(), key)

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:        key,
					Allowed:    dec.Allowed,
					FailedOpen: dec.FailedOpen,
					Method:     r.Method,
					Path:       r.URL.Path,
					At:         time.Now(),
				}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					log.Debug().Err(err).Msg("rate_limit_stats_failed")
				}
			}

			if !dec.Allowed {
				log.Warn().
					Str("client_ip", string(key)).
					Int64("count", dec.Count).
					Int("limit", dec.Limit).
					Msg("rate_limit_exceeded")
				writeJSON(w, http.StatusTooManyRequests, rateLimitedBody)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger prefere o logger da requisição (com correlation_id) quando existe.
func requestLogger(r *http.Request, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}
