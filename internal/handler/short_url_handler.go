package handler

import (
	"encoding/json"
	"net/http"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/SergeiKhy/url-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ShortURLHandler serves the short URL API and the redirect route.
type ShortURLHandler struct {
	client   service.ShortURLClient
	registry *locator.Registry
	baseURL  string
	logger   *zap.Logger
}

func NewShortURLHandler(client service.ShortURLClient, registry *locator.Registry, baseURL string, logger *zap.Logger) *ShortURLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortURLHandler{
		client:   client,
		registry: registry,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// CreateShortURLRequest is the body of POST /api/short_url. Params is decoded
// into the state type of the locator named by LocatorID.
type CreateShortURLRequest struct {
	LocatorID string          `json:"locatorId" binding:"required"`
	Params    json.RawMessage `json:"params" binding:"required"`
	Slug      string          `json:"slug,omitempty"`
}

// UpdateShortURLRequest is the body of PUT /api/short_url/:id.
type UpdateShortURLRequest struct {
	Params map[string]json.RawMessage `json:"params" binding:"required"`
}

// Create handles POST /api/short_url.
func (h *ShortURLHandler) Create(c *gin.Context) {
	var req CreateShortURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, apperr.Wrap(apperr.CodeInvalid, err, "Invalid request body"))
		return
	}

	params, err := h.registry.Decode(req.LocatorID, req.Params)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	shortURL, err := h.client.Create(c.Request.Context(), models.CreateShortURLInput{
		Params: params,
		Slug:   req.Slug,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, shortURL)
}

// Get handles GET /api/short_url/:id. Access counters are not touched.
func (h *ShortURLHandler) Get(c *gin.Context) {
	shortURL, err := h.client.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, shortURL)
}

// Resolve handles GET /api/short_url/_slug/:slug and counts as an access.
func (h *ShortURLHandler) Resolve(c *gin.Context) {
	shortURL, err := h.client.Resolve(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, shortURL)
}

// Update handles PUT /api/short_url/:id and returns the record as stored.
func (h *ShortURLHandler) Update(c *gin.Context) {
	var req UpdateShortURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, apperr.Wrap(apperr.CodeInvalid, err, "Invalid request body"))
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()
	if err := h.client.Update(ctx, models.UpdateShortURLInput{ID: id, Params: req.Params}); err != nil {
		writeError(c, h.logger, err)
		return
	}

	shortURL, err := h.client.Get(ctx, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, shortURL)
}

// Delete handles DELETE /api/short_url/:id.
func (h *ShortURLHandler) Delete(c *gin.Context) {
	if err := h.client.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Short url deleted"})
}

// Redirect handles GET /r/s/:slug: it resolves the slug and sends the
// browser to the location of the stored locator state.
func (h *ShortURLHandler) Redirect(c *gin.Context) {
	ctx := c.Request.Context()

	shortURL, err := h.client.Resolve(ctx, c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	loc, ok := h.registry.Get(shortURL.Locator.ID)
	if !ok {
		writeError(c, h.logger, apperr.LocatorNotFound(shortURL.Locator.ID))
		return
	}

	location, err := loc.GetLocation(ctx, shortURL.Locator.State)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.baseURL+location.URL())
}
