package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"service-template/example/application"
	"service-template/example/domain"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type handler struct {
	uc  application.UseCases
	log zerolog.Logger
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// writeError traduz os erros de domínio para status HTTP.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
	case domain.IsAlreadyExists(err):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: err.Error()})
	default:
		h.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("request_failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
	}
}

func (h *handler) logger(r *http.Request) *zerolog.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.log
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}

func decode(r *http.Request, dst any) error {
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	return nil
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var in application.CreateExampleDTO
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.uc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", application.DefaultListLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// na API, limit=0 explícito é erro; só a ausência usa o padrão
	if limit < 1 {
		h.writeError(w, r, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, application.MaxListLimit))
		return
	}
	out, err := h.uc.List(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.uc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("example with id %s: %w", id, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in application.UpdateExampleDTO
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.uc.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("example with id %s: %w", id, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.uc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, fmt.Errorf("example with id %s: %w", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
