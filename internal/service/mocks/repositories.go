package mocks

import (
	"context"
	"sync"

	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/SergeiKhy/url-service/internal/repository"
)

// MockShortURLRepository implements repository.ShortURLRepository for
// testing. Calls go to an in-memory repository unless the matching hook is
// set; every call is counted.
type MockShortURLRepository struct {
	Store *repository.MemoryShortURLRepository

	CreateFunc    func(ctx context.Context, record *models.ShortURLRecord) error
	GetByIDFunc   func(ctx context.Context, id string) (*models.ShortURLRecord, error)
	GetBySlugFunc func(ctx context.Context, slug string) (*models.ShortURLRecord, error)
	UpdateFunc    func(ctx context.Context, id string, patch models.ShortURLPatch) error
	DeleteFunc    func(ctx context.Context, id string) error

	mu    sync.Mutex
	calls map[string]int
}

// NewMockShortURLRepository returns a mock backed by an empty memory store.
func NewMockShortURLRepository() *MockShortURLRepository {
	return &MockShortURLRepository{
		Store: repository.NewMemoryShortURLRepository(),
		calls: make(map[string]int),
	}
}

// Calls returns how many times method was invoked.
func (m *MockShortURLRepository) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockShortURLRepository) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockShortURLRepository) Create(ctx context.Context, record *models.ShortURLRecord) error {
	m.record("Create")
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return m.Store.Create(ctx, record)
}

func (m *MockShortURLRepository) GetByID(ctx context.Context, id string) (*models.ShortURLRecord, error) {
	m.record("GetByID")
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.Store.GetByID(ctx, id)
}

func (m *MockShortURLRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortURLRecord, error) {
	m.record("GetBySlug")
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, slug)
	}
	return m.Store.GetBySlug(ctx, slug)
}

func (m *MockShortURLRepository) Update(ctx context.Context, id string, patch models.ShortURLPatch) error {
	m.record("Update")
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, patch)
	}
	return m.Store.Update(ctx, id, patch)
}

func (m *MockShortURLRepository) Delete(ctx context.Context, id string) error {
	m.record("Delete")
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return m.Store.Delete(ctx, id)
}

// MockAccessTracker records tracked events instead of writing them.
type MockAccessTracker struct {
	mu     sync.Mutex
	events []models.AccessEvent
}

func NewMockAccessTracker() *MockAccessTracker {
	return &MockAccessTracker{}
}

func (m *MockAccessTracker) Start() {}

func (m *MockAccessTracker) Stop() {}

func (m *MockAccessTracker) Track(event models.AccessEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockAccessTracker) Stats() models.AccessStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.AccessStats{BufferUsed: len(m.events)}
}

// Events returns a copy of the tracked events in order.
func (m *MockAccessTracker) Events() []models.AccessEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AccessEvent(nil), m.events...)
}
