package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"houser/internal/cache"
	"houser/internal/errors"
	"houser/internal/logger"
	"houser/internal/model"
)

// Greeter answers a short message in one sentence
type Greeter interface {
	Greet(ctx context.Context, message string) string
}

// AssistantHandler serves the greeting and cache maintenance endpoints
type AssistantHandler struct {
	greeter Greeter
	cache   cache.Store
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(greeter Greeter, c cache.Store) *AssistantHandler {
	return &AssistantHandler{greeter: greeter, cache: c}
}

// Hello handles GET /api/v1/hello
func (h *AssistantHandler) Hello(c *gin.Context) {
	q := c.DefaultQuery("q", "hello")
	c.JSON(http.StatusOK, gin.H{"message": h.greeter.Greet(c.Request.Context(), q)})
}

// ClearCache handles POST /api/v1/cache/clear
func (h *AssistantHandler) ClearCache(c *gin.Context) {
	var req model.CacheClearRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}
	}

	switch req.Namespace {
	case "", cache.NamespaceSearch, cache.NamespaceStats:
	default:
		errors.BadRequest(c, "unknown cache namespace", nil)
		return
	}

	removed, err := cache.ClearNamespace(c.Request.Context(), h.cache, req.Namespace)
	if err != nil {
		errors.InternalError(c, "cache clear failed", err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("cache cleared", "namespace", req.Namespace, "removed", removed)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Cache cleared.", "removed": removed})
}
