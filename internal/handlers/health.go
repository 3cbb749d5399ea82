package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/logger"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxStats reports the outbox backlog per delivery state
type OutboxStats interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     Pinger
	outbox OutboxStats
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, outbox OutboxStats) *HealthHandler {
	return &HealthHandler{db: db, outbox: outbox}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "inventoryserver",
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Health check: database unreachable")
			body["status"] = "unhealthy"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	if h.outbox != nil {
		if counts, err := h.outbox.CountByStatus(ctx); err == nil {
			body["outbox"] = counts
		}
	}

	c.JSON(http.StatusOK, body)
}
