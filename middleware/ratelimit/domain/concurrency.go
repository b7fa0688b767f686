package domain

import (
	"context"
	"errors"
)

// ErrBusy indica que nenhuma vaga ficou livre dentro do prazo.
var ErrBusy = errors.New("server busy")

// SlotPool limita quantas requisições o processo atende ao mesmo tempo.
// O release devolvido por Acquire deve ser chamado uma única vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InFlight() int
	Capacity() int
}
