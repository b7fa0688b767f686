package application

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"service-template/example/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.Example
	err   error
	gets  int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{items: map[uuid.UUID]domain.Example{}} }

func (r *fakeRepo) Create(_ context.Context, e *domain.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items[e.ID] = *e
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	e, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*domain.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, e := range r.items {
		if e.Email == email {
			e := e
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) List(_ context.Context, skip, limit int) ([]*domain.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*domain.Example, 0, len(r.items))
	for _, e := range r.items {
		e := e
		all = append(all, &e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeRepo) Update(_ context.Context, e *domain.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.ID]; !ok {
		return domain.ErrNotFound
	}
	r.items[e.ID] = *e
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.items)), nil
}

type fakePublisher struct {
	events []TopicEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev domain.Event, topic string) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, TopicEvent{Topic: topic, Event: ev})
	return nil
}

func (p *fakePublisher) PublishBatch(_ context.Context, batch []TopicEvent) error {
	p.events = append(p.events, batch...)
	return p.err
}

type fakeCache struct {
	items map[string]ExampleDTO
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := c.items[key]
	if ok {
		*dst.(*ExampleDTO) = v
	}
	return ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	c.items[key] = v.(ExampleDTO)
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.items, key)
	return nil
}

type fixture struct {
	uc    UseCases
	repo  *fakeRepo
	pub   *fakePublisher
	cache *fakeCache
	logs  *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newFakeRepo(),
		pub:   &fakePublisher{},
		cache: &fakeCache{items: map[string]ExampleDTO{}},
		logs:  &bytes.Buffer{},
	}
	f.uc = UseCases{
		Repo:   f.repo,
		Events: f.pub,
		Cache:  f.cache,
		Topic:  "examples",
		Log:    zerolog.New(f.logs),
	}
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	dto, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Ada", dto.Name)
	assert.True(t, dto.IsActive)
	assert.NotEqual(t, uuid.Nil, dto.ID)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "examples", f.pub.events[0].Topic)
	assert.Equal(t, domain.EventExampleCreated, f.pub.events[0].Event.Type)
	assert.Equal(t, dto.ID, f.pub.events[0].Event.ExampleID)
	assert.Contains(t, f.logs.String(), "example_created")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = f.uc.Create(ctx, CreateExampleDTO{Name: "Other", Email: "ada@example.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Len(t, f.pub.events, 1)
}

func TestCreate_Invalid(t *testing.T) {
	f := newFixture()
	_, err := f.uc.Create(context.Background(), CreateExampleDTO{Name: "", Email: "ada@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.pub.events)
}

func TestCreate_PublishFailureIsLogged(t *testing.T) {
	f := newFixture()
	f.pub.err = errors.New("broker down")

	dto, err := f.uc.Create(context.Background(), CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	n, _ := f.repo.Count(context.Background())
	assert.EqualValues(t, 1, n)
	assert.NotEqual(t, uuid.Nil, dto.ID)
	assert.Contains(t, f.logs.String(), "event_publish_failed")
}

func TestCreate_RepoError(t *testing.T) {
	f := newFixture()
	f.repo.err = errors.New("db down")

	_, err := f.uc.Create(context.Background(), CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	assert.Error(t, err)
	assert.False(t, domain.IsAlreadyExists(err))
}

func TestGet_ReadThroughCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	first, err := f.uc.Get(ctx, created.ID)
	require.NoError(t, err)
	second, err := f.uc.Get(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.repo.gets, "second read served from cache")
	assert.Contains(t, f.cache.items, "example:"+created.ID.String())
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.uc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_WithoutCache(t *testing.T) {
	f := newFixture()
	f.uc.Cache = nil
	created, err := f.uc.Create(context.Background(), CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	got, err := f.uc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		_, err := f.uc.Create(ctx, CreateExampleDTO{Name: n, Email: n + "@example.com"})
		require.NoError(t, err)
	}

	all, err := f.uc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := f.uc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Name)

	empty, err := f.uc.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestList_Bounds(t *testing.T) {
	f := newFixture()
	for _, tc := range [][2]int{{-1, 10}, {0, -1}, {0, 101}} {
		_, err := f.uc.List(context.Background(), tc[0], tc[1])
		assert.ErrorIs(t, err, domain.ErrValidation, "skip=%d limit=%d", tc[0], tc[1])
	}

	_, err := f.uc.List(context.Background(), 0, 0)
	assert.NoError(t, err, "limit 0 uses the default page size")
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	_, err = f.uc.Get(ctx, created.ID)
	require.NoError(t, err)

	name, active := "Grace", false
	updated, err := f.uc.Update(ctx, created.ID, UpdateExampleDTO{Name: &name, IsActive: &active})
	require.NoError(t, err)

	assert.Equal(t, "Grace", updated.Name)
	assert.False(t, updated.IsActive)
	assert.NotContains(t, f.cache.items, "example:"+created.ID.String(), "cache invalidated")

	last := f.pub.events[len(f.pub.events)-1].Event
	assert.Equal(t, domain.EventExampleUpdated, last.Type)
	assert.Equal(t, "Grace", last.Payload["name"])
	assert.Equal(t, "false", last.Payload["is_active"])
	assert.NotContains(t, last.Payload, "email")
}

func TestUpdate_NoChangesDoesNotPublish(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	same := "Ada"
	got, err := f.uc.Update(ctx, created.ID, UpdateExampleDTO{Name: &same})
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Len(t, f.pub.events, 1)
}

func TestUpdate_EmailTaken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	grace, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Grace", Email: "grace@example.com"})
	require.NoError(t, err)

	email := "ada@example.com"
	_, err = f.uc.Update(ctx, grace.ID, UpdateExampleDTO{Email: &email})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	name := "x"
	_, err := f.uc.Update(ctx, uuid.New(), UpdateExampleDTO{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	blank := " "
	_, err = f.uc.Update(ctx, created.ID, UpdateExampleDTO{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.uc.Create(ctx, CreateExampleDTO{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, created.ID))
	assert.ErrorIs(t, f.uc.Delete(ctx, created.ID), domain.ErrNotFound)

	n, err := f.uc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	last := f.pub.events[len(f.pub.events)-1].Event
	assert.Equal(t, domain.EventExampleDeleted, last.Type)
	assert.Equal(t, created.ID, last.ExampleID)
}
