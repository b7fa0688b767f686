// Package metrics expõe métricas Prometheus de HTTP e das decisões do rate limit.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RateLimitDecisions *prometheus.CounterVec

	gatherer   prometheus.Gatherer
	registerer prometheus.Registerer
}

// New registra os coletores em reg. Cada processo (ou teste) usa seu próprio registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests processed",
			},
			[]string{"method", "route", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_decisions_total",
				Help: "Rate limit decisions by result (allowed, rejected, failed_open)",
			},
			[]string{"result"},
		),
		gatherer:   reg,
		registerer: reg,
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RateLimitDecisions)
	return m
}

// Record implementa domain.StatsStore. Só o resultado vira label: chave do
// cliente e path ficam de fora para não explodir a cardinalidade.
func (m *Metrics) Record(_ context.Context, ev domain.StatsEvent) error {
	m.RateLimitDecisions.WithLabelValues(string(ev.Outcome())).Inc()
	return nil
}

// TrackInFlight expõe a ocupação do pool de concorrência como gauges.
func (m *Metrics) TrackInFlight(pool domain.SlotPool) {
	m.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently holding a concurrency slot",
		}, func() float64 { return float64(pool.InFlight()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "http_requests_in_flight_max",
			Help: "Concurrency slot capacity",
		}, func() float64 { return float64(pool.Capacity()) }),
	)
}

// Middleware precisa rodar dentro do router chi (r.Use) para enxergar o
// padrão da rota, ex: /api/v1/examples/{id}.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
