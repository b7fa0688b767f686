// Package application orquestra os casos de uso de Example sobre as portas
// de persistência, eventos e cache.
package application

import (
	"context"
	"time"

	"service-template/example/domain"

	"github.com/google/uuid"
)

// Repository é a porta de persistência. Buscas sem resultado e updates/deletes
// de IDs inexistentes retornam domain.ErrNotFound; email duplicado retorna
// domain.ErrAlreadyExists.
type Repository interface {
	Create(ctx context.Context, e *domain.Example) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Example, error)
	GetByEmail(ctx context.Context, email string) (*domain.Example, error)
	List(ctx context.Context, skip, limit int) ([]*domain.Example, error)
	Update(ctx context.Context, e *domain.Example) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type TopicEvent struct {
	Topic string
	Event domain.Event
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event, topic string) error
	PublishBatch(ctx context.Context, batch []TopicEvent) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
