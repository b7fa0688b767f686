package infra

import (
	"context"
	"maps"
	"sync"

	"service-template/middleware/ratelimit/domain"
)

// Counters soma decisões por resultado.
type Counters struct {
	Allowed    int64
	Rejected   int64
	FailedOpen int64
}

func (c Counters) with(o domain.Outcome) Counters {
	switch o {
	case domain.OutcomeAllowed:
		c.Allowed++
	case domain.OutcomeRejected:
		c.Rejected++
	case domain.OutcomeFailedOpen:
		c.FailedOpen++
	}
	return c
}

// StatsSnapshot é uma cópia do estado do MemoryStatsStore num instante.
type StatsSnapshot struct {
	Total   Counters
	ByRoute map[string]Counters
	ByKey   map[domain.Key]Counters // vazio se trackKeys=false
}

// MemoryStatsStore agrega decisões só deste processo. Usado em testes e em
// desenvolvimento, sem Redis de estatísticas.
type MemoryStatsStore struct {
	mu   sync.Mutex
	snap StatsSnapshot

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{snap: StatsSnapshot{
		ByRoute: map[string]Counters{},
		ByKey:   map[domain.Key]Counters{},
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	o := ev.Outcome()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Total = s.snap.Total.with(o)
	if route := ev.Route(); route != "" {
		s.snap.ByRoute[route] = s.snap.ByRoute[route].with(o)
	}
	if s.trackKeys {
		s.snap.ByKey[ev.Key] = s.snap.ByKey[ev.Key].with(o)
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Total:   s.snap.Total,
		ByRoute: maps.Clone(s.snap.ByRoute),
		ByKey:   maps.Clone(s.snap.ByKey),
	}
}
