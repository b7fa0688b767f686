package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key identifica o cliente (ex: IP de origem). Cada Key tem sua própria quota.
type Key string

// UnknownKey é usada quando não há endereço de origem disponível.
// Todos esses clientes compartilham o mesmo contador.
const UnknownKey Key = "unknown"

// WindowMode define quando a expiração do contador é aplicada.
type WindowMode string

const (
	// FixedWindow: a expiração é definida uma única vez, no primeiro incremento da janela.
	FixedWindow WindowMode = "fixed"
	// SlidingWindow: a expiração é renovada a cada requisição (a janela só fecha
	// depois de Window segundos sem tráfego).
	SlidingWindow WindowMode = "sliding"
)

// Rule é a quota: Limit requisições a cada Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// WindowSeconds retorna a janela em segundos inteiros (unidade usada no store).
func (r Rule) WindowSeconds() int { return int(r.Window / time.Second) }

func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("rate limit must be > 0, got %d", r.Limit)
	}
	if r.Window < time.Second {
		return fmt.Errorf("rate window must be at least 1s, got %s", r.Window)
	}
	if r.Window%time.Second != 0 {
		return fmt.Errorf("rate window must be a whole number of seconds, got %s", r.Window)
	}
	return nil
}

// Config é a configuração do rate limit do processo. Carregada uma vez no startup
// e nunca alterada depois.
type Config struct {
	Enabled     bool
	Rule        Rule
	Mode        WindowMode
	Prefix      string
	ExemptPaths []string
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Rule.Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case FixedWindow, SlidingWindow:
	default:
		return fmt.Errorf("unsupported rate limit mode %q", c.Mode)
	}
	return nil
}

var rateUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRate interpreta strings no formato "<N>/<unidade>", ex: "60/minute".
// Unidades aceitas: second, minute, hour, day (plural também).
func ParseRate(s string) (Rule, error) {
	countStr, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("invalid rate %q: expected <N>/<unit>", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return Rule{}, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if n <= 0 {
		return Rule{}, fmt.Errorf("invalid rate %q: count must be > 0", s)
	}

	unit = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s")
	window, ok := rateUnits[unit]
	if !ok {
		return Rule{}, fmt.Errorf("invalid rate %q: unknown unit %q", s, unit)
	}

	return Rule{Limit: n, Window: window}, nil
}

// CounterStore é o contador compartilhado (externo ao processo).
//
// Increment incrementa o contador de key e devolve o valor após o incremento.
// Incremento e expiração acontecem numa única operação atômica no store, então
// duas chamadas concorrentes nunca observam o mesmo valor.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Decision struct {
	Allowed bool
	Count   int64
	Limit   int
	// FailedOpen indica que o store falhou e a requisição foi liberada mesmo assim.
	FailedOpen bool
}
