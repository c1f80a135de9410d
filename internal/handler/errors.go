package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeSlugExists, apperr.CodeDuplicateLocatorID:
		return http.StatusConflict
	case apperr.CodeLocatorNotFound, apperr.CodeInvalid:
		return http.StatusBadRequest
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {message, code}. Errors without a code are
// logged and reported as internal without leaking their text.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	message := "Internal server error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) && code != apperr.CodeInternal {
		message = appErr.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	} else {
		logger.Debug("Request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Code: code})
}
