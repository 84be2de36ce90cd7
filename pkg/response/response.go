package response

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"crawford.app/podcastserver/pkg/apperror"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uint, error) {
	value, exists := c.Get("user_id")
	if !exists {
		return 0, apperror.ErrUnauthorized
	}

	userID, ok := value.(uint)
	if !ok || userID == 0 {
		return 0, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ParseID reads a positive integer path parameter.
func ParseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, apperror.ErrBadRequest)
	}
	return uint(id), nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		zap.L().Error("internal error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	if code == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}

	var retry interface{ RetryAfterSeconds() int }
	if errors.As(err, &retry) {
		c.Header("Retry-After", strconv.Itoa(retry.RetryAfterSeconds()))
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
