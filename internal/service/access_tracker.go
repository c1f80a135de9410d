package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/SergeiKhy/url-service/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultAccessWorkers    = 3
	defaultAccessBufferSize = 1000
	defaultAccessRetries    = 3
	accessWriteTimeout      = 5 * time.Second
	accessRetryBackoff      = 100 * time.Millisecond
)

// AccessTracker writes access counters and dates in the background so that
// resolving a slug never waits on the storage write.
//
// Updates are not linearizable: two concurrent resolutions of the same slug
// both observe count N and both write N+1. Callers can rely on the count
// eventually reflecting at least one of them, not all.
type AccessTracker interface {
	Start()
	Stop()
	Track(event models.AccessEvent)
	Stats() models.AccessStats
}

// AccessTrackerConfig sizes the tracker. Zero fields take defaults.
type AccessTrackerConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

type accessTracker struct {
	repo       repository.ShortURLRepository
	logger     *zap.Logger
	events     chan models.AccessEvent
	workers    int
	maxRetries int
	backoff    time.Duration

	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup // workers
	overflow sync.WaitGroup // writes dispatched while the buffer was full
}

// NewAccessTracker returns a stopped tracker; call Start before Track.
func NewAccessTracker(repo repository.ShortURLRepository, cfg AccessTrackerConfig, logger *zap.Logger) AccessTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultAccessWorkers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultAccessBufferSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultAccessRetries
	}

	return &accessTracker{
		repo:       repo,
		logger:     logger,
		events:     make(chan models.AccessEvent, cfg.BufferSize),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		backoff:    accessRetryBackoff,
	}
}

func (t *accessTracker) Start() {
	t.logger.Info("Starting access tracker", zap.Int("workers", t.workers))

	for i := 0; i < t.workers; i++ {
		t.wg.Add(1)
		go t.worker(i)
	}
}

// Stop closes the queue and waits until every pending event is written.
func (t *accessTracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.events)
	t.mu.Unlock()

	t.logger.Info("Stopping access tracker", zap.Int("pending", len(t.events)))
	t.wg.Wait()
	t.overflow.Wait()
	t.logger.Info("Access tracker stopped")
}

// Track queues an access update. It never blocks: when the queue is full the
// write gets its own goroutine.
func (t *accessTracker) Track(event models.AccessEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped {
		t.logger.Warn("Access tracker stopped, dropping access update",
			zap.String("id", event.ID),
			zap.String("slug", event.Slug),
		)
		return
	}

	select {
	case t.events <- event:
	default:
		t.logger.Warn("Access buffer full, writing outside the pool", zap.String("slug", event.Slug))
		t.overflow.Add(1)
		go func() {
			defer t.overflow.Done()
			t.process(event)
		}()
	}
}

func (t *accessTracker) Stats() models.AccessStats {
	return models.AccessStats{
		BufferSize:  cap(t.events),
		BufferUsed:  len(t.events),
		WorkerCount: t.workers,
	}
}

func (t *accessTracker) worker(id int) {
	defer t.wg.Done()

	t.logger.Debug("Access worker started", zap.Int("id", id))
	for event := range t.events {
		t.process(event)
	}
	t.logger.Debug("Access worker stopped", zap.Int("id", id))
}

func (t *accessTracker) process(event models.AccessEvent) {
	count := event.AccessCount + 1
	accessed := event.AccessedAt
	patch := models.ShortURLPatch{
		AccessCount: &count,
		AccessDate:  &accessed,
	}

	var err error
	for i := 0; i < t.maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), accessWriteTimeout)
		err = t.repo.Update(ctx, event.ID, patch)
		cancel()

		if err == nil {
			return
		}
		if errors.Is(err, apperr.ErrNotFound) {
			// Deleted after it was resolved.
			t.logger.Debug("Short url gone before access update", zap.String("id", event.ID))
			return
		}
		if i < t.maxRetries-1 {
			t.logger.Debug("Retrying access update",
				zap.String("id", event.ID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * t.backoff)
		}
	}

	t.logger.Error("Failed to write access update",
		zap.String("id", event.ID),
		zap.String("slug", event.Slug),
		zap.Error(err),
	)
}
