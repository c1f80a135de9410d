package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/SergeiKhy/url-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSlugLength      = 8
	defaultSlugMaxAttempts = 5
)

// ShortURLClient creates, resolves and manages short URLs. Records handed to
// callers always carry injected locator state; storage only ever sees the
// extracted state and its references.
type ShortURLClient interface {
	Create(ctx context.Context, input models.CreateShortURLInput) (*models.ShortURL, error)
	Resolve(ctx context.Context, slug string) (*models.ShortURL, error)
	Get(ctx context.Context, id string) (*models.ShortURL, error)
	Update(ctx context.Context, input models.UpdateShortURLInput) error
	Delete(ctx context.Context, id string) error
}

// ShortURLClientConfig configures NewShortURLClient. Zero fields take
// defaults; Now falls back to time.Now.
type ShortURLClientConfig struct {
	// Version is recorded as the locator version of every state written.
	Version         string
	SlugLength      int
	SlugMaxAttempts int
	SlugGenerator   SlugGenerator
	Now             func() time.Time
}

type shortURLClient struct {
	registry        *locator.Registry
	repo            repository.ShortURLRepository
	tracker         AccessTracker
	logger          *zap.Logger
	version         string
	slugs           SlugGenerator
	slugLength      int
	slugMaxAttempts int
	now             func() time.Time
}

// NewShortURLClient returns a client over repo that reports accesses to tracker.
func NewShortURLClient(
	registry *locator.Registry,
	repo repository.ShortURLRepository,
	tracker AccessTracker,
	cfg ShortURLClientConfig,
	logger *zap.Logger,
) ShortURLClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlugLength <= 0 {
		cfg.SlugLength = defaultSlugLength
	}
	if cfg.SlugMaxAttempts <= 0 {
		cfg.SlugMaxAttempts = defaultSlugMaxAttempts
	}
	if cfg.SlugGenerator == nil {
		cfg.SlugGenerator = NewRandomSlugGenerator()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &shortURLClient{
		registry:        registry,
		repo:            repo,
		tracker:         tracker,
		logger:          logger,
		version:         cfg.Version,
		slugs:           cfg.SlugGenerator,
		slugLength:      cfg.SlugLength,
		slugMaxAttempts: cfg.SlugMaxAttempts,
		now:             cfg.Now,
	}
}

func (c *shortURLClient) Create(ctx context.Context, input models.CreateShortURLInput) (*models.ShortURL, error) {
	if input.Params == nil {
		return nil, apperr.New(apperr.CodeInvalid, "Locator params are required.")
	}

	locatorID := input.Params.LocatorID()
	loc, ok := c.registry.Get(locatorID)
	if !ok {
		return nil, apperr.LocatorNotFound(locatorID)
	}

	state, refs, err := loc.Extract(input.Params)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode locator state: %w", err)
	}

	now := c.timestamp()
	record := &models.ShortURLRecord{
		ID:             uuid.NewString(),
		LocatorID:      locatorID,
		LocatorVersion: c.version,
		State:          data,
		References:     locator.PrefixReferences(locator.ParamsReferencePrefix, refs),
		AccessCount:    0,
		AccessDate:     now,
		CreateDate:     now,
	}

	if input.Slug != "" {
		if err := validateSlug(input.Slug); err != nil {
			return nil, err
		}
		record.Slug = input.Slug
		err = c.repo.Create(ctx, record)
	} else {
		err = c.createWithGeneratedSlug(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("Short url created",
		zap.String("id", record.ID),
		zap.String("slug", record.Slug),
		zap.String("locator", record.LocatorID),
	)

	return c.hydrate(record)
}

// createWithGeneratedSlug retries with a fresh slug while storage reports the
// previous one as taken.
func (c *shortURLClient) createWithGeneratedSlug(ctx context.Context, record *models.ShortURLRecord) error {
	for attempt := 1; attempt <= c.slugMaxAttempts; attempt++ {
		slug, err := c.slugs.Generate(c.slugLength)
		if err != nil {
			return apperr.Wrap(apperr.CodeUnavailable, err, "Could not generate a slug.")
		}

		record.Slug = slug
		err = c.repo.Create(ctx, record)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrSlugExists) {
			return err
		}

		c.logger.Debug("Generated slug already taken",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
		)
	}

	return apperr.New(apperr.CodeUnavailable, "Could not generate a unique slug after %d attempts.", c.slugMaxAttempts)
}

// Resolve looks a short URL up by slug and queues the access update once the
// record has been hydrated. The returned counters are the ones read, before
// this access.
func (c *shortURLClient) Resolve(ctx context.Context, slug string) (*models.ShortURL, error) {
	record, err := c.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	shortURL, err := c.hydrate(record)
	if err != nil {
		return nil, err
	}

	c.tracker.Track(models.AccessEvent{
		ID:          record.ID,
		Slug:        record.Slug,
		AccessCount: record.AccessCount,
		AccessedAt:  c.timestamp(),
	})

	return shortURL, nil
}

func (c *shortURLClient) Get(ctx context.Context, id string) (*models.ShortURL, error) {
	record, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.hydrate(record)
}

// Update merges input.Params into the current locator state field by field.
// A JSON null removes the field. The merged state is extracted again, so
// references always match the stored state.
func (c *shortURLClient) Update(ctx context.Context, input models.UpdateShortURLInput) error {
	record, err := c.repo.GetByID(ctx, input.ID)
	if err != nil {
		return err
	}
	current, err := c.hydrate(record)
	if err != nil {
		return err
	}

	loc, ok := c.registry.Get(record.LocatorID)
	if !ok {
		return apperr.LocatorNotFound(record.LocatorID)
	}

	merged, err := mergeParams(current.Locator.State, input.Params)
	if err != nil {
		return err
	}
	state, err := loc.Decode(merged)
	if err != nil {
		return err
	}
	extracted, refs, err := loc.Extract(state)
	if err != nil {
		return err
	}
	data, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to encode locator state: %w", err)
	}

	version := c.version
	if err := c.repo.Update(ctx, input.ID, models.ShortURLPatch{
		LocatorVersion: &version,
		State:          data,
		References:     locator.PrefixReferences(locator.ParamsReferencePrefix, refs),
	}); err != nil {
		return err
	}

	c.logger.Info("Short url updated", zap.String("id", input.ID))
	return nil
}

func (c *shortURLClient) Delete(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}

	c.logger.Info("Short url deleted", zap.String("id", id))
	return nil
}

// hydrate decodes the stored state and injects its references back.
func (c *shortURLClient) hydrate(record *models.ShortURLRecord) (*models.ShortURL, error) {
	loc, ok := c.registry.Get(record.LocatorID)
	if !ok {
		return nil, apperr.LocatorNotFound(record.LocatorID)
	}

	state, err := loc.Decode(record.State)
	if err != nil {
		return nil, err
	}
	state, err = loc.Inject(state, locator.StripReferences(locator.ParamsReferencePrefix, record.References))
	if err != nil {
		return nil, err
	}

	return &models.ShortURL{
		ID:   record.ID,
		Slug: record.Slug,
		Locator: models.LocatorData{
			ID:      record.LocatorID,
			Version: record.LocatorVersion,
			State:   state,
		},
		AccessCount: record.AccessCount,
		AccessDate:  record.AccessDate,
		CreateDate:  record.CreateDate,
	}, nil
}

func (c *shortURLClient) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func mergeParams(state models.LocatorState, params map[string]json.RawMessage) ([]byte, error) {
	current, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode locator state: %w", err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode locator state: %w", err)
	}

	for key, value := range params {
		if string(value) == "null" {
			delete(fields, key)
			continue
		}
		fields[key] = value
	}

	return json.Marshal(fields)
}
