package repository

import (
	"context"
	"sync"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
)

// MemoryShortURLRepository keeps records in process memory. Records are
// copied on the way in and out so callers cannot mutate stored state.
type MemoryShortURLRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.ShortURLRecord
	bySlug map[string]string // slug -> id
}

// NewMemoryShortURLRepository returns an empty repository.
func NewMemoryShortURLRepository() *MemoryShortURLRepository {
	return &MemoryShortURLRepository{
		byID:   make(map[string]*models.ShortURLRecord),
		bySlug: make(map[string]string),
	}
}

func (r *MemoryShortURLRepository) Create(_ context.Context, record *models.ShortURLRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[record.Slug]; exists {
		return apperr.SlugExists(record.Slug)
	}
	if _, exists := r.byID[record.ID]; exists {
		return apperr.New(apperr.CodeInvalid, "short url with id %q already exists", record.ID)
	}

	r.byID[record.ID] = record.Clone()
	r.bySlug[record.Slug] = record.ID
	return nil
}

func (r *MemoryShortURLRepository) GetByID(_ context.Context, id string) (*models.ShortURLRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFoundByID(id)
	}
	return record.Clone(), nil
}

func (r *MemoryShortURLRepository) GetBySlug(_ context.Context, slug string) (*models.ShortURLRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return nil, apperr.NotFoundBySlug(slug)
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryShortURLRepository) Update(_ context.Context, id string, patch models.ShortURLPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return apperr.NotFoundByID(id)
	}
	patch.Apply(record)
	return nil
}

func (r *MemoryShortURLRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return apperr.NotFoundByID(id)
	}
	delete(r.bySlug, record.Slug)
	delete(r.byID, id)
	return nil
}

// Reset drops all records.
func (r *MemoryShortURLRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*models.ShortURLRecord)
	r.bySlug = make(map[string]string)
}
