package application

import (
	"context"
	"fmt"
	"time"

	"service-template/example/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// UseCases agrupa os casos de uso de Example. Events e Cache são opcionais.
//
// Falha ao publicar evento depois de uma escrita bem-sucedida só vai para o
// log: a escrita já foi confirmada e a entrega pelo broker não é garantida aqui.
// Falhas de cache também só geram warning.
type UseCases struct {
	Repo     Repository
	Events   EventPublisher
	Cache    Cache
	Topic    string
	CacheTTL time.Duration
	Log      zerolog.Logger
}

// CacheKey é a chave de cache de um Example (sem o prefixo global).
func CacheKey(id uuid.UUID) string { return "example:" + id.String() }

func (u UseCases) Create(ctx context.Context, in CreateExampleDTO) (ExampleDTO, error) {
	e, err := domain.NewExample(in.Name, in.Email)
	if err != nil {
		return ExampleDTO{}, err
	}

	if _, err := u.Repo.GetByEmail(ctx, e.Email); err == nil {
		return ExampleDTO{}, fmt.Errorf("%w: email %s already exists", domain.ErrAlreadyExists, e.Email)
	} else if !domain.IsNotFound(err) {
		return ExampleDTO{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := u.Repo.Create(ctx, e); err != nil {
		return ExampleDTO{}, fmt.Errorf("create example: %w", err)
	}

	u.publish(ctx, domain.ExampleCreated(e))
	u.Log.Info().
		Str("example_id", e.ID.String()).
		Str("email", e.Email).
		Msg("example_created")

	return FromEntity(e)
}

// Get lê primeiro do cache; em miss busca no repositório e popula o cache.
func (u UseCases) Get(ctx context.Context, id uuid.UUID) (ExampleDTO, error) {
	if u.Cache != nil {
		var dto ExampleDTO
		found, err := u.Cache.Get(ctx, CacheKey(id), &dto)
		if err != nil {
			u.Log.Warn().Err(err).Str("key", CacheKey(id)).Msg("cache_get_failed")
		}
		if found {
			return dto, nil
		}
	}

	e, err := u.Repo.GetByID(ctx, id)
	if err != nil {
		return ExampleDTO{}, err
	}
	dto, err := FromEntity(e)
	if err != nil {
		return ExampleDTO{}, err
	}

	if u.Cache != nil {
		if err := u.Cache.Set(ctx, CacheKey(id), dto, u.CacheTTL); err != nil {
			u.Log.Warn().Err(err).Str("key", CacheKey(id)).Msg("cache_set_failed")
		}
	}
	return dto, nil
}

// List pagina os exemplos. limit 0 usa DefaultListLimit.
func (u UseCases) List(ctx context.Context, skip, limit int) ([]ExampleDTO, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", domain.ErrValidation)
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxListLimit)
	}

	items, err := u.Repo.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}

	out := make([]ExampleDTO, 0, len(items))
	for _, e := range items {
		dto, err := FromEntity(e)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func (u UseCases) Update(ctx context.Context, id uuid.UUID, in UpdateExampleDTO) (ExampleDTO, error) {
	e, err := u.Repo.GetByID(ctx, id)
	if err != nil {
		return ExampleDTO{}, err
	}
	before := *e

	if in.Name != nil {
		if err := e.UpdateName(*in.Name); err != nil {
			return ExampleDTO{}, err
		}
	}
	if in.Email != nil {
		if err := e.UpdateEmail(*in.Email); err != nil {
			return ExampleDTO{}, err
		}
	}
	if in.IsActive != nil {
		if *in.IsActive {
			e.Activate()
		} else {
			e.Deactivate()
		}
	}

	changes := domain.Changes(before, *e)
	if len(changes) == 0 {
		return FromEntity(&before)
	}

	if _, ok := changes["email"]; ok {
		other, err := u.Repo.GetByEmail(ctx, e.Email)
		switch {
		case err == nil && other.ID != e.ID:
			return ExampleDTO{}, fmt.Errorf("%w: email %s already exists", domain.ErrAlreadyExists, e.Email)
		case err != nil && !domain.IsNotFound(err):
			return ExampleDTO{}, fmt.Errorf("lookup email: %w", err)
		}
	}

	if err := u.Repo.Update(ctx, e); err != nil {
		return ExampleDTO{}, err
	}
	u.invalidate(ctx, id)
	u.publish(ctx, domain.ExampleUpdated(id, changes))
	u.Log.Info().Str("example_id", id.String()).Msg("example_updated")

	return FromEntity(e)
}

func (u UseCases) Delete(ctx context.Context, id uuid.UUID) error {
	if err := u.Repo.Delete(ctx, id); err != nil {
		return err
	}
	u.invalidate(ctx, id)
	u.publish(ctx, domain.ExampleDeleted(id))
	u.Log.Info().Str("example_id", id.String()).Msg("example_deleted")
	return nil
}

func (u UseCases) Count(ctx context.Context) (int64, error) {
	return u.Repo.Count(ctx)
}

func (u UseCases) publish(ctx context.Context, ev domain.Event) {
	if u.Events == nil {
		return
	}
	if err := u.Events.Publish(ctx, ev, u.Topic); err != nil {
		u.Log.Error().
			Err(err).
			Str("event_type", ev.Type).
			Str("event_id", ev.ID.String()).
			Str("topic", u.Topic).
			Msg("event_publish_failed")
	}
}

func (u UseCases) invalidate(ctx context.Context, id uuid.UUID) {
	if u.Cache == nil {
		return
	}
	if err := u.Cache.Delete(ctx, CacheKey(id)); err != nil {
		u.Log.Warn().Err(err).Str("key", CacheKey(id)).Msg("cache_delete_failed")
	}
}
