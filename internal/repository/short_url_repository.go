// Package repository persists short URL records. Every backend enforces slug
// uniqueness with its own atomic primitive (a unique constraint, a Lua script
// or a mutex-guarded index), so callers never need to lock.
package repository

import (
	"context"

	"github.com/SergeiKhy/url-service/internal/models"
)

// ShortURLRepository is the storage contract of the short URL client.
//
// Errors are *apperr.Error values: SLUG_EXISTS from Create, NOT_FOUND from
// the getters, Update and Delete. Transport failures are returned wrapped.
type ShortURLRepository interface {
	Create(ctx context.Context, record *models.ShortURLRecord) error
	GetByID(ctx context.Context, id string) (*models.ShortURLRecord, error)
	GetBySlug(ctx context.Context, slug string) (*models.ShortURLRecord, error)
	Update(ctx context.Context, id string, patch models.ShortURLPatch) error
	Delete(ctx context.Context, id string) error
}
