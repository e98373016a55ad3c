package handlers

import (
	"context"
	"net/http"
	"runtime"

	"example.com/backstage/services/analytics/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Pinger checks store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and process metrics
type HealthHandler struct {
	store   Pinger
	metrics *metrics.Metrics
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, metrics *metrics.Metrics) *HealthHandler {
	return &HealthHandler{store: store, metrics: metrics}
}

// RegisterRoutes registers the handler's routes
func (h *HealthHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HandleGetHealth)
	router.GET("/metrics", h.HandleGetMetrics)
}

// HandleGetHealth reports whether the analytics store is reachable
func (h *HealthHandler) HandleGetHealth(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.metrics.SetHealth("database", false)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	h.metrics.SetHealth("database", true)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

// HandleGetMetrics returns all metrics
func (h *HealthHandler) HandleGetMetrics(c *gin.Context) {
	h.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
