package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma decisão, no formato usado em logs, métricas e
// campos de hash no Redis.
type Outcome string

const (
	OutcomeAllowed    Outcome = "allowed"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailedOpen Outcome = "failed_open"
)

// StatsEvent é uma decisão do limiter já tomada. Method/Path vêm da requisição
// mas o tipo não depende de net/http.
type StatsEvent struct {
	Key        Key
	Allowed    bool
	FailedOpen bool

	Method string
	Path   string

	At time.Time
}

func (ev StatsEvent) Outcome() Outcome {
	switch {
	case ev.FailedOpen:
		return OutcomeFailedOpen
	case ev.Allowed:
		return OutcomeAllowed
	default:
		return OutcomeRejected
	}
}

// Route junta método e path ("GET /api/v1/examples"). Vazio se os dois faltarem.
func (ev StatsEvent) Route() string {
	switch {
	case ev.Method == "":
		return ev.Path
	case ev.Path == "":
		return ev.Method
	}
	return ev.Method + " " + ev.Path
}

// StatsStore recebe as decisões. Erros são best-effort: quem chama só registra
// em log, nunca bloqueia a requisição por causa disso.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
