package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the session count and, when a result store is
// configured, whether Redis answers.
type HealthHandler struct {
	store *service.SessionStore
	redis Pinger
}

// NewHealthHandler builds the handler. redis may be nil.
func NewHealthHandler(store *service.SessionStore, redis Pinger) *HealthHandler {
	return &HealthHandler{store: store, redis: redis}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"sessions":  h.store.Count(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		body["redis"] = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			logger.Warn(ctx, "Health check failed", "dependency", "redis", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = "unreachable"
		}
	}

	c.JSON(status, body)
}
