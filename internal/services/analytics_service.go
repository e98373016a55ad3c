package services

import (
	"context"
	"time"

	"example.com/backstage/services/analytics/internal/aggregate"
	"example.com/backstage/services/analytics/internal/cache"
	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/models"
	"example.com/backstage/services/analytics/internal/search"
	"example.com/backstage/services/analytics/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result caps
const (
	DailyViewBuckets     = 7
	MonthlyEarningsLimit = 12
	SpendBreakdownLimit  = 10
	RetentionCohorts     = 12
	ChurnMonths          = 12
	PerformanceWindow    = 24 * time.Hour
)

// EventReader reads behavioral events
type EventReader interface {
	CountByType(ctx context.Context) ([]models.EventTypeCount, error)
	CountByTypeForJob(ctx context.Context, jobID string) ([]models.EventTypeCount, error)
	DailyViews(ctx context.Context, jobID string, limit int) ([]models.DailyCount, error)
	ActiveUserMonths(ctx context.Context) ([]aggregate.UserMonth, error)
	CountForUser(ctx context.Context, userID, eventType string) (int64, error)
	CountsForUser(ctx context.Context, userID string, eventTypes []string) (map[string]int64, error)
	ReviewMetadata(ctx context.Context, userID string) ([]string, error)
}

// FinancialReader reads financial events
type FinancialReader interface {
	TotalEarnings(ctx context.Context, userID string) (float64, error)
	TotalSpend(ctx context.Context, clientID string) (float64, error)
	MonthlyEarnings(ctx context.Context, userID string, limit int) ([]models.MonthlyAmount, error)
	CompletedJobs(ctx context.Context, userID string) (int64, error)
	FundedJobs(ctx context.Context, clientID string) (int64, error)
	SpendByJob(ctx context.Context, clientID string, limit int) ([]models.JobAmount, error)
	SpendByCostCenter(ctx context.Context, clientID string) ([]models.CostCenterAmount, error)
}

// MetricReader reads telemetry samples
type MetricReader interface {
	SamplesSince(ctx context.Context, since time.Time) ([]aggregate.MetricSample, error)
}

// Pinger checks store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// AnalyticsService answers aggregate queries over the analytics store. It holds no mutable
// state of its own; results may be served from the generation-keyed cache.
type AnalyticsService struct {
	events     EventReader
	financials FinancialReader
	samples    MetricReader
	store      Pinger
	cache      *cache.RedisCache
	search     *search.ElasticClient
	tracer     tracing.Tracer
	stats      *metrics.Metrics
	now        func() time.Time
}

// NewAnalyticsService creates a new analytics service. cache and search may be nil or disabled.
func NewAnalyticsService(
	events EventReader,
	financials FinancialReader,
	samples MetricReader,
	store Pinger,
	cache *cache.RedisCache,
	search *search.ElasticClient,
	tracer tracing.Tracer,
	stats *metrics.Metrics,
) *AnalyticsService {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	if stats == nil {
		stats = metrics.NewMetrics()
	}

	return &AnalyticsService{
		events:     events,
		financials: financials,
		samples:    samples,
		store:      store,
		cache:      cache,
		search:     search,
		tracer:     tracer,
		stats:      stats,
		now:        time.Now,
	}
}

// Ping checks that the store is reachable
func (s *AnalyticsService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// EventTypeStats counts every recorded event per event type
func (s *AnalyticsService) EventTypeStats(ctx context.Context) ([]models.EventTypeCount, error) {
	return cached(ctx, s, "stats", nil, func(ctx context.Context) ([]models.EventTypeCount, error) {
		counts, err := s.events.CountByType(ctx)
		return nonNil(counts), err
	})
}

// JobStats returns a job's daily views for its 7 most recent days with views and its totals per event type
func (s *AnalyticsService) JobStats(ctx context.Context, jobID string) (*models.JobStats, error) {
	return cached(ctx, s, "job", []string{jobID}, func(ctx context.Context) (*models.JobStats, error) {
		stats := &models.JobStats{JobID: jobID}
		var counts []models.EventTypeCount

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			views, err := s.events.DailyViews(gctx, jobID, DailyViewBuckets)
			stats.DailyViews = nonNil(views)
			return err
		})
		g.Go(func() error {
			var err error
			counts, err = s.events.CountByTypeForJob(gctx, jobID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		stats.TotalEvents = make(map[string]int64, len(counts))
		for _, c := range counts {
			stats.TotalEvents[c.EventType] = c.Count
		}
		return stats, nil
	})
}

// FreelancerEarnings returns a user's total earnings and its 12 most recent monthly totals
func (s *AnalyticsService) FreelancerEarnings(ctx context.Context, userID string) (*models.FreelancerEarnings, error) {
	return cached(ctx, s, "earnings", []string{userID}, func(ctx context.Context) (*models.FreelancerEarnings, error) {
		result := &models.FreelancerEarnings{UserID: userID}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.TotalEarnings, err = s.financials.TotalEarnings(gctx, userID)
			return err
		})
		g.Go(func() error {
			monthly, err := s.financials.MonthlyEarnings(gctx, userID, MonthlyEarningsLimit)
			result.MonthlyEarnings = nonNil(monthly)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// ClientSpend returns what a payer spent in total and on its 10 largest jobs
func (s *AnalyticsService) ClientSpend(ctx context.Context, userID string) (*models.ClientSpend, error) {
	return cached(ctx, s, "spend", []string{userID}, func(ctx context.Context) (*models.ClientSpend, error) {
		result := &models.ClientSpend{UserID: userID}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.TotalSpend, err = s.financials.TotalSpend(gctx, userID)
			return err
		})
		g.Go(func() error {
			jobs, err := s.financials.SpendByJob(gctx, userID, SpendBreakdownLimit)
			result.JobBreakdown = nonNil(jobs)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// ClientOverview summarizes a payer's spend, funded projects and cost centers
func (s *AnalyticsService) ClientOverview(ctx context.Context, userID string) (*models.ClientOverview, error) {
	return cached(ctx, s, "client-overview", []string{userID}, func(ctx context.Context) (*models.ClientOverview, error) {
		result := &models.ClientOverview{}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.TotalSpend, err = s.financials.TotalSpend(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			result.ProjectsFunded, err = s.financials.FundedJobs(gctx, userID)
			return err
		})
		g.Go(func() error {
			centers, err := s.financials.SpendByCostCenter(gctx, userID)
			result.SpendByCostCenter = nonNil(centers)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// Retention returns cohort retention for the 12 most recent cohorts
func (s *AnalyticsService) Retention(ctx context.Context) ([]models.RetentionPoint, error) {
	return cached(ctx, s, "retention", nil, func(ctx context.Context) ([]models.RetentionPoint, error) {
		rows, err := s.events.ActiveUserMonths(ctx)
		if err != nil {
			return nil, err
		}
		return nonNil(aggregate.Retention(rows, RetentionCohorts)), nil
	})
}

// Churn returns forward-looking churn for the 12 most recent months with activity, newest first.
// Store failures propagate like every other query.
func (s *AnalyticsService) Churn(ctx context.Context) ([]models.ChurnPoint, error) {
	return cached(ctx, s, "churn", nil, func(ctx context.Context) ([]models.ChurnPoint, error) {
		rows, err := s.events.ActiveUserMonths(ctx)
		if err != nil {
			return nil, err
		}
		return nonNil(aggregate.Churn(rows, ChurnMonths)), nil
	})
}

// SystemPerformance profiles each service over the trailing 24 hours. The window
// moves with the clock, so the result is never cached.
func (s *AnalyticsService) SystemPerformance(ctx context.Context) ([]models.ServicePerformance, error) {
	segment := s.tracer.StartSegment(ctx, "query-performance")
	defer segment.End()

	samples, err := s.samples.SamplesSince(ctx, s.now().UTC().Add(-PerformanceWindow))
	if err != nil {
		s.tracer.RecordError(ctx, err)
		return nil, err
	}
	return nonNil(aggregate.Performance(samples)), nil
}

// FreelancerOverview returns the dashboard summary of an earner
func (s *AnalyticsService) FreelancerOverview(ctx context.Context, userID string) (*models.FreelancerOverview, error) {
	return cached(ctx, s, "overview", []string{userID}, func(ctx context.Context) (*models.FreelancerOverview, error) {
		// activeProposals stays 0 until proposal tracking exists
		result := &models.FreelancerOverview{}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.TotalEarnings, err = s.financials.TotalEarnings(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			result.JobsCompleted, err = s.financials.CompletedJobs(gctx, userID)
			return err
		})
		g.Go(func() error {
			reviews, err := s.events.ReviewMetadata(gctx, userID)
			if err != nil {
				return err
			}
			result.JSS = aggregate.JobSuccessScore(reviews)
			return nil
		})
		g.Go(func() error {
			var err error
			result.ProfileViews, err = s.events.CountForUser(gctx, userID, models.EventTypeProfileView)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// FreelancerFunnel returns an earner's hiring funnel from profile views to hires
func (s *AnalyticsService) FreelancerFunnel(ctx context.Context, userID string) (*models.Funnel, error) {
	return cached(ctx, s, "funnel", []string{userID}, func(ctx context.Context) (*models.Funnel, error) {
		counts, err := s.events.CountsForUser(ctx, userID, aggregate.FunnelEventTypes())
		if err != nil {
			return nil, err
		}
		funnel := aggregate.BuildFunnel(counts)
		return &funnel, nil
	})
}

// PredictiveEarnings projects an earner's next month from the trend of its last 12 months
func (s *AnalyticsService) PredictiveEarnings(ctx context.Context, userID string) (*models.EarningsPrediction, error) {
	return cached(ctx, s, "prediction", []string{userID}, func(ctx context.Context) (*models.EarningsPrediction, error) {
		monthly, err := s.financials.MonthlyEarnings(ctx, userID, MonthlyEarningsLimit)
		if err != nil {
			return nil, err
		}
		prediction := aggregate.ForecastEarnings(monthly)
		return &prediction, nil
	})
}

// SearchEvents returns a user's most recent mirrored events
func (s *AnalyticsService) SearchEvents(ctx context.Context, userID, eventType string) ([]models.Event, error) {
	if !s.search.Enabled() {
		return nil, search.ErrSearchDisabled
	}

	events, err := s.search.SearchEvents(ctx, userID, eventType, search.DefaultSearchSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search events")
	}
	return events, nil
}

// WarmCache precomputes the global aggregates so the first dashboard load is served from cache
func (s *AnalyticsService) WarmCache(ctx context.Context) error {
	if !s.cache.Enabled() {
		return nil
	}

	start := time.Now()
	if _, err := s.EventTypeStats(ctx); err != nil {
		return errors.Wrap(err, "failed to warm event stats")
	}
	if _, err := s.Retention(ctx); err != nil {
		return errors.Wrap(err, "failed to warm retention")
	}
	if _, err := s.Churn(ctx); err != nil {
		return errors.Wrap(err, "failed to warm churn")
	}

	s.stats.Since("cache.warmup", start)
	log.Info().Dur("duration", time.Since(start)).Msg("Aggregate cache warmed")
	return nil
}

// cached serves name from the aggregate cache, loading and storing it on a miss. Cache
// failures fall back to the store; only load errors are returned.
func cached[T any](ctx context.Context, s *AnalyticsService, name string, params []string, load func(context.Context) (T, error)) (T, error) {
	segment := s.tracer.StartSegment(ctx, "query-"+name)
	defer segment.End()

	result, err := readThrough(ctx, s, name, params, load)
	if err != nil {
		s.tracer.RecordError(ctx, err)
	}
	return result, err
}

func readThrough[T any](ctx context.Context, s *AnalyticsService, name string, params []string, load func(context.Context) (T, error)) (T, error) {
	if !s.cache.Enabled() {
		return load(ctx)
	}

	generation, err := s.cache.Generation(ctx)
	if err != nil {
		log.Warn().Err(err).Str("aggregate", name).Msg("Cache generation unavailable, querying store")
		return load(ctx)
	}

	key := cache.GetAggregateCacheKey(generation, name, params...)
	var result T
	err = s.cache.Get(ctx, key, &result)
	if err == nil {
		s.stats.IncrementCounter(metrics.CacheHits)
		return result, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	s.stats.IncrementCounter(metrics.CacheMisses)

	result, err = load(ctx)
	if err != nil {
		return result, err
	}

	if err := s.cache.Set(ctx, key, result); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return result, nil
}

// nonNil turns a nil slice into an empty one so results encode as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
