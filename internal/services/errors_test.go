package services

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/analytics/internal/aggregate"
	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventReader struct {
	mock.Mock
}

func (m *mockEventReader) CountByType(ctx context.Context) ([]models.EventTypeCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.EventTypeCount), args.Error(1)
}

func (m *mockEventReader) CountByTypeForJob(ctx context.Context, jobID string) ([]models.EventTypeCount, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.EventTypeCount), args.Error(1)
}

func (m *mockEventReader) DailyViews(ctx context.Context, jobID string, limit int) ([]models.DailyCount, error) {
	args := m.Called(ctx, jobID, limit)
	return args.Get(0).([]models.DailyCount), args.Error(1)
}

func (m *mockEventReader) ActiveUserMonths(ctx context.Context) ([]aggregate.UserMonth, error) {
	args := m.Called(ctx)
	return args.Get(0).([]aggregate.UserMonth), args.Error(1)
}

func (m *mockEventReader) CountForUser(ctx context.Context, userID, eventType string) (int64, error) {
	args := m.Called(ctx, userID, eventType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEventReader) CountsForUser(ctx context.Context, userID string, eventTypes []string) (map[string]int64, error) {
	args := m.Called(ctx, userID, eventTypes)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *mockEventReader) ReviewMetadata(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]string), args.Error(1)
}

type mockMetricReader struct {
	mock.Mock
}

func (m *mockMetricReader) SamplesSince(ctx context.Context, since time.Time) ([]aggregate.MetricSample, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]aggregate.MetricSample), args.Error(1)
}

func unreachable(table string) error {
	return errors.Wrap(&database.StorageError{Op: "query", Table: table, Err: errors.New("dial tcp: connection refused")}, "failed to load")
}

func TestChurnPropagatesStorageError(t *testing.T) {
	events := new(mockEventReader)
	events.On("ActiveUserMonths", mock.Anything).Return([]aggregate.UserMonth(nil), unreachable(models.EventsTable))

	svc := NewAnalyticsService(events, nil, nil, nil, nil, nil, nil, nil)

	points, err := svc.Churn(context.Background())
	require.Error(t, err)
	assert.Nil(t, points)
	assert.True(t, database.IsStorageError(err))
	events.AssertExpectations(t)
}

func TestJobStatsFailsWhenAnySubQueryFails(t *testing.T) {
	events := new(mockEventReader)
	events.On("DailyViews", mock.Anything, "j1", DailyViewBuckets).Return([]models.DailyCount{{Date: "2024-01-01", Count: 1}}, nil)
	events.On("CountByTypeForJob", mock.Anything, "j1").Return([]models.EventTypeCount(nil), unreachable(models.EventsTable))

	svc := NewAnalyticsService(events, nil, nil, nil, nil, nil, nil, nil)

	stats, err := svc.JobStats(context.Background(), "j1")
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.True(t, database.IsStorageError(err))
}

func TestSystemPerformanceWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := new(mockMetricReader)
	samples.On("SamplesSince", mock.Anything, now.Add(-24*time.Hour)).Return([]aggregate.MetricSample(nil), nil)

	svc := NewAnalyticsService(nil, nil, samples, nil, nil, nil, nil, nil)
	svc.now = func() time.Time { return now }

	perf, err := svc.SystemPerformance(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, perf)
	assert.Empty(t, perf)
	samples.AssertExpectations(t)
}
