package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"service-template/middleware/ratelimit/application"
	"service-template/middleware/ratelimit/domain"
	"service-template/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

type ConcurrencyOptions struct {
	// Pool já construído (ex.: para expor InFlight em métricas). Se nil, um
	// ChanPool de tamanho Max é criado; Max <= 0 desliga o limite.
	Pool           domain.SlotPool
	Max            int
	AcquireTimeout time.Duration

	Logger zerolog.Logger
}

// ConcurrencyMiddleware limita as requisições em andamento neste processo.
// Sem vaga dentro de AcquireTimeout a resposta é 503; cliente que desconectou
// enquanto esperava não recebe nada.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	pool := opts.Pool
	if pool == nil && opts.Max > 0 {
		pool = infra.NewChanPool(opts.Max)
	}
	if pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	svc := application.ConcurrencyService{Pool: pool, AcquireTimeout: opts.AcquireTimeout}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			switch {
			case errors.Is(err, domain.ErrBusy):
				log := requestLogger(r, opts.Logger)
				log.Warn().
					Int("in_flight", pool.InFlight()).
					Int("capacity", pool.Capacity()).
					Msg("server_busy")
				writeJSON(w, http.StatusServiceUnavailable, busyBody)
				return
			case err != nil:
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
