package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/url-service/internal/config"
	"github.com/SergeiKhy/url-service/internal/handler"
	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/middleware"
	"github.com/SergeiKhy/url-service/internal/repository"
	"github.com/SergeiKhy/url-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	repo, closeStorage, err := newStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStorage()

	registry, err := locator.NewDefaultRegistry()
	if err != nil {
		logger.Fatal("Failed to register locators", zap.Error(err))
	}
	logger.Info("Locators registered", zap.Strings("ids", registry.IDs()))

	tracker := service.NewAccessTracker(repo, service.AccessTrackerConfig{
		Workers:    cfg.Access.Workers,
		BufferSize: cfg.Access.BufferSize,
		MaxRetries: cfg.Access.MaxRetries,
	}, logger)
	tracker.Start()
	defer tracker.Stop()

	client := service.NewShortURLClient(registry, repo, tracker, service.ShortURLClientConfig{
		Version:         cfg.App.Version,
		SlugLength:      cfg.ShortURL.SlugLength,
		SlugMaxAttempts: cfg.ShortURL.SlugMaxAttempts,
	}, logger)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	router := handler.NewRouter(client, tracker, registry, rateLimiter, apiKeyMiddleware, handler.RouterConfig{
		BaseURL: cfg.App.BaseURL,
		Version: cfg.App.Version,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

// newStorage connects the configured backend. The returned func releases it.
func newStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ShortURLRepository, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		if cfg.DB.Migrate {
			if err := migrate(cfg.DB, logger); err != nil {
				return nil, nil, err
			}
		}

		db, err := repository.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL")
		return repository.NewPostgresShortURLRepository(db), db.Close, nil

	case config.StorageRedis:
		rdb, err := repository.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Redis")
		return repository.NewRedisShortURLRepository(rdb), func() { _ = rdb.Close() }, nil

	case config.StorageMemory:
		logger.Warn("Using in-memory storage, short urls are lost on restart")
		return repository.NewMemoryShortURLRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func migrate(cfg config.DBConfig, logger *zap.Logger) error {
	migrator, err := repository.NewMigrator(cfg.URL(), logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}
