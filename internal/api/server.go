package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/analytics/config"
	"example.com/backstage/services/analytics/internal/api/handlers"
	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/services"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// APIPrefix is the route prefix of every analytics endpoint
const APIPrefix = "/api/analytics"

const shutdownTimeout = 5 * time.Second

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	ingest     *services.IngestionService
	analytics  *services.AnalyticsService
	tracer     tracing.Tracer
	metrics    *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	ingest *services.IngestionService,
	analytics *services.AnalyticsService,
	tracer tracing.Tracer,
	m *metrics.Metrics,
) *Server {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	server := &Server{
		config:    cfg,
		ingest:    ingest,
		analytics: analytics,
		tracer:    tracer,
		metrics:   m,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	return server
}

// Router returns the configured gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RequestID(), Logger(), Recovery(), s.tracer.Middleware())
	if s.config.MetricsEnabled {
		router.Use(s.metrics.Middleware())
	}
	if s.config.Server.CorsEnabled {
		router.Use(CORS(s.config.Server.CorsOrigins))
	}

	router.NoRoute(func(c *gin.Context) {
		handlers.WriteError(c, handlers.ErrNotFound)
	})

	handlers.NewHealthHandler(s.analytics, s.metrics).RegisterRoutes(router)

	group := router.Group(APIPrefix)
	handlers.NewIngestHandler(s.ingest, s.tracer, s.metrics).RegisterRoutes(group)
	handlers.NewAnalyticsHandler(s.analytics, s.tracer).RegisterRoutes(group)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
