package infra

import (
	"context"
	"sort"
	"sync"

	"service-template/example/domain"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// MemoryRepository guarda tudo em memória. Usado em desenvolvimento
// (database.driver=memory) e nos testes. Entradas e saídas são copiadas para
// que quem chama não altere o estado interno.
type MemoryRepository struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]*domain.Example
	byEmail map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:   make(map[uuid.UUID]*domain.Example),
		byEmail: make(map[string]uuid.UUID),
	}
}

func clone(e *domain.Example) (*domain.Example, error) {
	other := &domain.Example{}
	if err := copier.Copy(other, e); err != nil {
		return nil, err
	}
	return other, nil
}

func (r *MemoryRepository) Create(_ context.Context, e *domain.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[e.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := r.byEmail[e.Email]; ok {
		return domain.ErrAlreadyExists
	}

	other, err := clone(e)
	if err != nil {
		return err
	}
	r.items[e.ID] = other
	r.byEmail[e.Email] = e.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Example, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(e)
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.Example, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(r.items[id])
}

// List ordena por data de criação (depois ID) para paginação estável.
func (r *MemoryRepository) List(ctx context.Context, skip, limit int) ([]*domain.Example, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Example, 0, len(r.items))
	for _, e := range r.items {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	if skip >= len(all) {
		return []*domain.Example{}, nil
	}
	all = all[skip:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*domain.Example, 0, len(all))
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		other, err := clone(e)
		if err != nil {
			return nil, err
		}
		out = append(out, other)
	}
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, e *domain.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if owner, taken := r.byEmail[e.Email]; taken && owner != e.ID {
		return domain.ErrAlreadyExists
	}

	other, err := clone(e)
	if err != nil {
		return err
	}
	delete(r.byEmail, current.Email)
	r.items[e.ID] = other
	r.byEmail[e.Email] = e.ID
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byEmail, e.Email)
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}
