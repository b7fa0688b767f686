package application

import (
	"context"
	"time"

	"service-template/middleware/ratelimit/domain"
)

// ConcurrencyService reserva vagas no SlotPool com prazo máximo de espera.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration // <= 0: espera até o ctx terminar
}

// Acquire devolve a função de release, ou:
//   - ctx.Err() se quem chamou desistiu (cliente desconectou);
//   - domain.ErrBusy se o prazo de espera acabou sem vaga.
//
// Sem pool, não há limite.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, domain.ErrBusy
}
