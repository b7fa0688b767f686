// Package httpapi expõe Example via HTTP (chi).
package httpapi

import (
	"net/http"

	"service-template/example/application"
	"service-template/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterOptions struct {
	UseCases application.UseCases
	// Metrics é opcional; sem ele /metrics não é registrado.
	Metrics *metrics.Metrics
	Version string
	Log     zerolog.Logger
}

func NewRouter(opts RouterOptions) http.Handler {
	h := &handler{uc: opts.UseCases, log: opts.Log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Version: opts.Version})
	})

	r.Route("/api/v1/examples", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
