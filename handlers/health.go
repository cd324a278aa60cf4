package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clinica-medicos/utils"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store pinger
	cache utils.RedisClient
}

// NewHealthHandler checks the store and, when configured, Redis. cache may be nil.
func NewHealthHandler(store pinger, cache utils.RedisClient) *HealthHandler {
	return &HealthHandler{store: store, cache: cache}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	details := gin.H{}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		details["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		details["database"] = "available"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			details["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			details["redis"] = "available"
		}
	}

	if status != http.StatusOK {
		c.JSON(status, gin.H{"status": "degraded", "details": details})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "details": details})
}
