package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/middleware"
	"github.com/SergeiKhy/url-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds what the routes need besides their dependencies.
// BaseURL prefixes redirect locations.
type RouterConfig struct {
	BaseURL string
	Version string
}

// NewRouter builds the gin engine. rateLimiter and apiKeyMiddleware may be
// nil; the API key never applies to health or redirects.
func NewRouter(
	client service.ShortURLClient,
	tracker service.AccessTracker,
	registry *locator.Registry,
	rateLimiter *middleware.RateLimiter,
	apiKeyMiddleware gin.HandlerFunc,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware())
	}

	shortURLHandler := NewShortURLHandler(client, registry, cfg.BaseURL, logger)

	api := router.Group("/api")
	{
		api.GET("/health", healthCheck(tracker, cfg.Version))

		if apiKeyMiddleware != nil {
			api.Use(apiKeyMiddleware)
		}

		api.POST("/short_url", shortURLHandler.Create)
		api.GET("/short_url/_slug/:slug", shortURLHandler.Resolve)
		api.GET("/short_url/:id", shortURLHandler.Get)
		api.PUT("/short_url/:id", shortURLHandler.Update)
		api.DELETE("/short_url/:id", shortURLHandler.Delete)
	}

	// Redirects stay public.
	router.GET("/r/s/:slug", shortURLHandler.Redirect)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if name, ok := middleware.APIKeyName(c); ok {
			fields = append(fields, zap.String("api_key", name))
		}
		logger.Info("Request", fields...)
	}
}

func healthCheck(tracker service.AccessTracker, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "url-service",
			"version": version,
		}
		if tracker != nil {
			body["access_tracker"] = tracker.Stats()
		}
		c.JSON(http.StatusOK, body)
	}
}
