package handler

import (
	"errors"
	"net/http"

	"github.com/Kartekeya-Sharma/Contract-Guard/middleware"
	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/gin-gonic/gin"
)

// ResultHandler serves persisted analysis results, which remain available
// after the session itself is evicted.
type ResultHandler struct {
	results ResultRepository
}

func NewResultHandler(results ResultRepository) *ResultHandler {
	return &ResultHandler{results: results}
}

// Get returns the stored result for a session id
func (h *ResultHandler) Get(c *gin.Context) {
	id := c.Param("id")
	ctx := logger.WithSession(c.Request.Context(), id)
	c.Request = c.Request.WithContext(ctx)

	result, err := h.results.Get(ctx, id)
	if errors.Is(err, service.ErrResultNotFound) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		logger.Error(ctx, "Failed to load result", "error", err)
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	// Results of other tenants look exactly like missing ones.
	if result.Tenant != middleware.GetTenant(c) {
		respondError(c, http.StatusNotFound, service.ErrResultNotFound)
		return
	}

	c.JSON(http.StatusOK, result)
}
