package cmd

import (
	"context"

	"example.com/backstage/services/analytics/config"
	"example.com/backstage/services/analytics/internal/cache"
	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/repositories"
	"example.com/backstage/services/analytics/internal/search"
	"example.com/backstage/services/analytics/internal/services"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// components holds everything the api and worker commands share
type components struct {
	store     *database.Store
	cache     *cache.RedisCache
	search    *search.ElasticClient
	tracer    tracing.Tracer
	metrics   *metrics.Metrics
	ingest    *services.IngestionService
	analytics *services.AnalyticsService
}

// newComponents connects to the store and initializes the optional collaborators.
// Only the store is required; cache, search and tracing degrade to disabled.
func newComponents(ctx context.Context, cfg config.Config) (*components, error) {
	store, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	if cfg.DB.Bootstrap {
		if err := store.Bootstrap(ctx); err != nil {
			store.Close()
			return nil, errors.Wrap(err, "failed to bootstrap analytics schema")
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	metricsCollector := metrics.NewMetrics()

	events := repositories.NewEventRepository(store)
	financials := repositories.NewFinancialRepository(store)
	samples := repositories.NewSystemMetricRepository(store)

	return &components{
		store:     store,
		cache:     redisCache,
		search:    elasticClient,
		tracer:    tracer,
		metrics:   metricsCollector,
		ingest:    services.NewIngestionService(events, financials, samples, redisCache, elasticClient, tracer, metricsCollector),
		analytics: services.NewAnalyticsService(events, financials, samples, store, redisCache, elasticClient, tracer, metricsCollector),
	}, nil
}

// close releases every connection
func (c *components) close() {
	c.tracer.Close()
	if err := c.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis cache")
	}
	if err := c.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close analytics store")
	}
}
