package services

import (
	"context"
	"time"

	"example.com/backstage/services/analytics/internal/cache"
	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/models"
	"example.com/backstage/services/analytics/internal/search"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventWriter appends behavioral events
type EventWriter interface {
	Append(ctx context.Context, event *models.Event) error
}

// FinancialWriter appends financial events
type FinancialWriter interface {
	Append(ctx context.Context, event *models.FinancialEvent) error
}

// MetricWriter appends telemetry samples
type MetricWriter interface {
	Append(ctx context.Context, metric *models.SystemMetric) error
}

// IngestionService assigns identity to validated records and appends them, one row per call
type IngestionService struct {
	events     EventWriter
	financials FinancialWriter
	samples    MetricWriter
	cache      *cache.RedisCache
	search     *search.ElasticClient
	tracer     tracing.Tracer
	stats      *metrics.Metrics
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service. cache and search may be nil or disabled.
func NewIngestionService(
	events EventWriter,
	financials FinancialWriter,
	samples MetricWriter,
	cache *cache.RedisCache,
	search *search.ElasticClient,
	tracer tracing.Tracer,
	stats *metrics.Metrics,
) *IngestionService {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	if stats == nil {
		stats = metrics.NewMetrics()
	}

	return &IngestionService{
		events:     events,
		financials: financials,
		samples:    samples,
		cache:      cache,
		search:     search,
		tracer:     tracer,
		stats:      stats,
		now:        captureTime,
	}
}

// captureTime is the server-side timestamp of a record, UTC at millisecond precision
func captureTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// WriteEvent appends a behavioral event and returns its generated id
func (s *IngestionService) WriteEvent(ctx context.Context, event *models.Event) (uuid.UUID, error) {
	segment := s.tracer.StartSegment(ctx, "ingest-event")
	defer segment.End()

	event.EventID = uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if event.Metadata == "" {
		event.Metadata = models.EmptyMetadata
	}

	if err := s.events.Append(ctx, event); err != nil {
		s.failed(ctx, err)
		return uuid.Nil, errors.Wrap(err, "failed to append event")
	}

	s.stats.IncrementCounter(metrics.EventsIngested)
	s.invalidate(ctx)
	s.mirror(ctx, event)

	log.Debug().
		Str("event_id", event.EventID.String()).
		Str("event_type", event.EventType).
		Str("user_id", event.UserID).
		Msg("Event recorded")

	return event.EventID, nil
}

// WriteFinancial appends a financial event and returns its generated id
func (s *IngestionService) WriteFinancial(ctx context.Context, event *models.FinancialEvent) (uuid.UUID, error) {
	segment := s.tracer.StartSegment(ctx, "ingest-financial")
	defer segment.End()

	event.EventID = uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	if err := s.financials.Append(ctx, event); err != nil {
		s.failed(ctx, err)
		return uuid.Nil, errors.Wrap(err, "failed to append financial event")
	}

	s.stats.IncrementCounter(metrics.FinancialsIngested)
	s.invalidate(ctx)

	log.Debug().
		Str("event_id", event.EventID.String()).
		Str("user_id", event.UserID).
		Str("category", event.Category).
		Msg("Financial event recorded")

	return event.EventID, nil
}

// WriteMetric appends a telemetry sample
func (s *IngestionService) WriteMetric(ctx context.Context, metric *models.SystemMetric) error {
	segment := s.tracer.StartSegment(ctx, "ingest-metric")
	defer segment.End()

	if metric.Timestamp.IsZero() {
		metric.Timestamp = s.now()
	}

	if err := s.samples.Append(ctx, metric); err != nil {
		s.failed(ctx, err)
		return errors.Wrap(err, "failed to append system metric")
	}

	s.stats.IncrementCounter(metrics.MetricsIngested)
	s.invalidate(ctx)
	return nil
}

func (s *IngestionService) failed(ctx context.Context, err error) {
	s.stats.IncrementCounter(metrics.IngestFailed)
	s.tracer.RecordError(ctx, err)
}

// invalidate retires every cached aggregate; a failure only delays freshness until the TTL expires
func (s *IngestionService) invalidate(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.BumpGeneration(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to bump aggregate cache generation")
	}
}

func (s *IngestionService) mirror(ctx context.Context, event *models.Event) {
	if !s.search.Enabled() {
		return
	}
	if err := s.search.IndexEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_id", event.EventID.String()).Msg("Failed to mirror event to Elasticsearch")
	}
}
