package handlers

import (
	"net/http"
	"strings"

	"example.com/backstage/services/analytics/internal/services"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler handles aggregate queries
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	tracer    tracing.Tracer
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *services.AnalyticsService, tracer tracing.Tracer) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, tracer: tracer}
}

// RegisterRoutes registers the query routes
func (h *AnalyticsHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/stats", h.HandleGetStats)
	group.GET("/jobs/:job_id", h.HandleGetJobStats)
	group.GET("/retention", h.HandleGetRetention)
	group.GET("/churn", h.HandleGetChurn)
	group.GET("/performance", h.HandleGetPerformance)
	group.GET("/events/search", h.HandleSearchEvents)

	freelancer := group.Group("/freelancer")
	freelancer.GET("/earnings", h.HandleGetFreelancerEarnings)
	freelancer.GET("/overview", h.HandleGetFreelancerOverview)
	freelancer.GET("/funnel", h.HandleGetFreelancerFunnel)
	freelancer.GET("/predictive-earnings", h.HandleGetPredictiveEarnings)

	client := group.Group("/client")
	client.GET("/spend", h.HandleGetClientSpend)
	client.GET("/overview", h.HandleGetClientOverview)
}

// userID reads the required user_id query parameter
func (h *AnalyticsHandler) userID(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		WriteError(c, NewValidationError("user_id", "field required"))
		return "", false
	}
	h.tracer.AddAttribute(c.Request.Context(), "user_id", userID)
	return userID, true
}

// respond writes result as JSON, or the error payload when err is set
func respond(c *gin.Context, result interface{}, err error) {
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetStats returns event counts per event type
func (h *AnalyticsHandler) HandleGetStats(c *gin.Context) {
	stats, err := h.analytics.EventTypeStats(c.Request.Context())
	respond(c, stats, err)
}

// HandleGetJobStats returns daily views and event totals of a job
func (h *AnalyticsHandler) HandleGetJobStats(c *gin.Context) {
	stats, err := h.analytics.JobStats(c.Request.Context(), c.Param("job_id"))
	respond(c, stats, err)
}

// HandleGetFreelancerEarnings returns an earner's totals
func (h *AnalyticsHandler) HandleGetFreelancerEarnings(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	earnings, err := h.analytics.FreelancerEarnings(c.Request.Context(), userID)
	respond(c, earnings, err)
}

// HandleGetFreelancerOverview returns an earner's dashboard summary
func (h *AnalyticsHandler) HandleGetFreelancerOverview(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	overview, err := h.analytics.FreelancerOverview(c.Request.Context(), userID)
	respond(c, overview, err)
}

// HandleGetFreelancerFunnel returns an earner's hiring funnel
func (h *AnalyticsHandler) HandleGetFreelancerFunnel(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	funnel, err := h.analytics.FreelancerFunnel(c.Request.Context(), userID)
	respond(c, funnel, err)
}

// HandleGetPredictiveEarnings returns an earner's projected next month
func (h *AnalyticsHandler) HandleGetPredictiveEarnings(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	prediction, err := h.analytics.PredictiveEarnings(c.Request.Context(), userID)
	respond(c, prediction, err)
}

// HandleGetClientSpend returns a payer's spend
func (h *AnalyticsHandler) HandleGetClientSpend(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	spend, err := h.analytics.ClientSpend(c.Request.Context(), userID)
	respond(c, spend, err)
}

// HandleGetClientOverview returns a payer's dashboard summary
func (h *AnalyticsHandler) HandleGetClientOverview(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	overview, err := h.analytics.ClientOverview(c.Request.Context(), userID)
	respond(c, overview, err)
}

// HandleGetRetention returns cohort retention
func (h *AnalyticsHandler) HandleGetRetention(c *gin.Context) {
	points, err := h.analytics.Retention(c.Request.Context())
	respond(c, points, err)
}

// HandleGetChurn returns monthly churn
func (h *AnalyticsHandler) HandleGetChurn(c *gin.Context) {
	points, err := h.analytics.Churn(c.Request.Context())
	respond(c, points, err)
}

// HandleGetPerformance returns per-service latency and error rates
func (h *AnalyticsHandler) HandleGetPerformance(c *gin.Context) {
	perf, err := h.analytics.SystemPerformance(c.Request.Context())
	respond(c, perf, err)
}

// HandleSearchEvents returns a user's most recent mirrored events
func (h *AnalyticsHandler) HandleSearchEvents(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	events, err := h.analytics.SearchEvents(c.Request.Context(), userID, c.Query("event_type"))
	respond(c, events, err)
}
