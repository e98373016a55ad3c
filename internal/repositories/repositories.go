package repositories

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/analytics/internal/aggregate"
	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/models"

	"github.com/pkg/errors"
)

// Store is the part of the store adapter repositories depend on
type Store interface {
	Insert(ctx context.Context, table string, columns []string, rows [][]interface{}) error
	Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Dialect() database.Dialect
}

// EventRepository provides access to behavioral events
type EventRepository struct {
	store Store
}

// NewEventRepository creates a new event repository
func NewEventRepository(store Store) *EventRepository {
	return &EventRepository{store: store}
}

// Append writes a single event
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	return r.store.Insert(ctx, models.EventsTable, models.EventColumns, [][]interface{}{event.Row()})
}

// CountByType counts all events per event type
func (r *EventRepository) CountByType(ctx context.Context) ([]models.EventTypeCount, error) {
	var counts []models.EventTypeCount
	err := r.store.Query(ctx, &counts,
		"SELECT event_type, COUNT(*) AS count FROM events GROUP BY event_type")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count events by type")
	}
	return counts, nil
}

// CountByTypeForJob counts a job's events per event type
func (r *EventRepository) CountByTypeForJob(ctx context.Context, jobID string) ([]models.EventTypeCount, error) {
	var counts []models.EventTypeCount
	err := r.store.Query(ctx, &counts,
		"SELECT event_type, COUNT(*) AS count FROM events WHERE job_id = ? GROUP BY event_type", jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count job events by type")
	}
	return counts, nil
}

// DailyViews counts a job's views per calendar day, newest day first
func (r *EventRepository) DailyViews(ctx context.Context, jobID string, limit int) ([]models.DailyCount, error) {
	query := fmt.Sprintf(
		"SELECT %s AS bucket_day, COUNT(*) AS count FROM events "+
			"WHERE job_id = ? AND event_type = ? "+
			"GROUP BY bucket_day ORDER BY bucket_day DESC LIMIT ?",
		r.store.Dialect().DayBucket("timestamp"),
	)

	var views []models.DailyCount
	if err := r.store.Query(ctx, &views, query, jobID, models.EventTypeJobView, limit); err != nil {
		return nil, errors.Wrap(err, "failed to count daily job views")
	}
	return views, nil
}

// ActiveUserMonths lists every distinct (user, calendar month) pair with at least one event
func (r *EventRepository) ActiveUserMonths(ctx context.Context) ([]aggregate.UserMonth, error) {
	query := fmt.Sprintf(
		"SELECT user_id, %s AS bucket_month FROM events GROUP BY user_id, bucket_month",
		r.store.Dialect().MonthBucket("timestamp"),
	)

	var rows []aggregate.UserMonth
	if err := r.store.Query(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to load monthly user activity")
	}
	return rows, nil
}

// CountForUser counts a user's events of one type
func (r *EventRepository) CountForUser(ctx context.Context, userID, eventType string) (int64, error) {
	var count int64
	err := r.store.Query(ctx, &count,
		"SELECT COUNT(*) FROM events WHERE user_id = ? AND event_type = ?", userID, eventType)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s events", eventType)
	}
	return count, nil
}

// CountsForUser counts a user's events for each of the given types. Types with no events are absent.
func (r *EventRepository) CountsForUser(ctx context.Context, userID string, eventTypes []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(eventTypes))
	if len(eventTypes) == 0 {
		return counts, nil
	}

	var rows []models.EventTypeCount
	err := r.store.Query(ctx, &rows,
		"SELECT event_type, COUNT(*) AS count FROM events WHERE user_id = ? AND event_type IN ? GROUP BY event_type",
		userID, eventTypes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count user events by type")
	}

	for _, row := range rows {
		counts[row.EventType] = row.Count
	}
	return counts, nil
}

// ReviewMetadata returns the metadata of every review a user received
func (r *EventRepository) ReviewMetadata(ctx context.Context, userID string) ([]string, error) {
	var metadata []string
	err := r.store.Query(ctx, &metadata,
		"SELECT metadata FROM events WHERE user_id = ? AND event_type = ?", userID, models.EventTypeReviewReceived)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load review metadata")
	}
	return metadata, nil
}

// SystemMetricRepository provides access to request telemetry
type SystemMetricRepository struct {
	store Store
}

// NewSystemMetricRepository creates a new telemetry repository
func NewSystemMetricRepository(store Store) *SystemMetricRepository {
	return &SystemMetricRepository{store: store}
}

// Append writes a single telemetry sample
func (r *SystemMetricRepository) Append(ctx context.Context, metric *models.SystemMetric) error {
	return r.store.Insert(ctx, models.SystemMetricsTable, models.SystemMetricColumns, [][]interface{}{metric.Row()})
}

// SamplesSince returns every sample recorded at or after since
func (r *SystemMetricRepository) SamplesSince(ctx context.Context, since time.Time) ([]aggregate.MetricSample, error) {
	var samples []aggregate.MetricSample
	err := r.store.Query(ctx, &samples,
		"SELECT service, latency_ms, status_code FROM system_metrics WHERE timestamp >= ?", since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load telemetry samples")
	}
	return samples, nil
}
