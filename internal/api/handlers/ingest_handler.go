package handlers

import (
	"net/http"

	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/models"
	"example.com/backstage/services/analytics/internal/services"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// IngestHandler handles write requests
type IngestHandler struct {
	ingest *services.IngestionService
	tracer tracing.Tracer
	stats  *metrics.Metrics
}

// NewIngestHandler creates a new ingestion handler
func NewIngestHandler(ingest *services.IngestionService, tracer tracing.Tracer, stats *metrics.Metrics) *IngestHandler {
	return &IngestHandler{ingest: ingest, tracer: tracer, stats: stats}
}

func (h *IngestHandler) reject(c *gin.Context, err error) {
	h.stats.IncrementCounter(metrics.IngestRejected)
	WriteError(c, err)
}

// RegisterRoutes registers the write routes
func (h *IngestHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/events", h.HandleCreateEvent)
	group.POST("/financials", h.HandleCreateFinancial)
	group.POST("/metrics", h.HandleCreateMetric)
}

// HandleCreateEvent records a behavioral event
func (h *IngestHandler) HandleCreateEvent(c *gin.Context) {
	var req models.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, ErrInvalidBody)
		return
	}

	event, err := req.Validate()
	if err != nil {
		h.reject(c, err)
		return
	}

	h.tracer.AddAttribute(c.Request.Context(), "event_type", event.EventType)

	id, err := h.ingest.WriteEvent(c.Request.Context(), event)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "event_id": id.String()})
}

// HandleCreateFinancial records a financial transaction
func (h *IngestHandler) HandleCreateFinancial(c *gin.Context) {
	var req models.FinancialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, ErrInvalidBody)
		return
	}

	event, err := req.Validate()
	if err != nil {
		h.reject(c, err)
		return
	}

	id, err := h.ingest.WriteFinancial(c.Request.Context(), event)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "event_id": id.String()})
}

// HandleCreateMetric records a telemetry sample
func (h *IngestHandler) HandleCreateMetric(c *gin.Context) {
	var req models.MetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, ErrInvalidBody)
		return
	}

	metric, err := req.Validate()
	if err != nil {
		h.reject(c, err)
		return
	}

	if err := h.ingest.WriteMetric(c.Request.Context(), metric); err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}
