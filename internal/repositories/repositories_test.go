package repositories

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.OpenMemory(context.Background(), uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func appendEvent(t *testing.T, repo *EventRepository, eventType, userID, jobID, metadata string, ts time.Time) {
	t.Helper()
	require.NoError(t, repo.Append(context.Background(), &models.Event{
		EventID:   uuid.New(),
		EventType: eventType,
		UserID:    userID,
		JobID:     jobID,
		Metadata:  metadata,
		Timestamp: ts,
	}))
}

func TestDailyViewsNewestFirstCapped(t *testing.T) {
	repo := NewEventRepository(openStore(t))
	ctx := context.Background()

	for d := 1; d <= 9; d++ {
		for i := 0; i < d; i++ {
			appendEvent(t, repo, models.EventTypeJobView, "viewer", "job-1", "{}", day(d))
		}
	}
	appendEvent(t, repo, models.EventTypeJobView, "viewer", "job-2", "{}", day(9))
	appendEvent(t, repo, "job_apply", "viewer", "job-1", "{}", day(9))

	views, err := repo.DailyViews(ctx, "job-1", 7)
	require.NoError(t, err)
	require.Len(t, views, 7)
	assert.Equal(t, models.DailyCount{Date: "2024-03-09", Count: 9}, views[0])
	assert.Equal(t, models.DailyCount{Date: "2024-03-03", Count: 3}, views[6])

	totals, err := repo.CountByTypeForJob(ctx, "job-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.EventTypeCount{
		{EventType: models.EventTypeJobView, Count: 45},
		{EventType: "job_apply", Count: 1},
	}, totals)
}

func TestEventQueriesOnEmptyStore(t *testing.T) {
	repo := NewEventRepository(openStore(t))
	ctx := context.Background()

	views, err := repo.DailyViews(ctx, "missing", 7)
	require.NoError(t, err)
	assert.Empty(t, views)

	counts, err := repo.CountByType(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	n, err := repo.CountForUser(ctx, "nobody", models.EventTypeProfileView)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActiveUserMonthsDistinct(t *testing.T) {
	repo := NewEventRepository(openStore(t))

	appendEvent(t, repo, "login", "u1", "", "{}", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	appendEvent(t, repo, "login", "u1", "", "{}", time.Date(2024, 1, 30, 23, 59, 59, 0, time.UTC))
	appendEvent(t, repo, "login", "u1", "", "{}", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	appendEvent(t, repo, "login", "u2", "", "{}", time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC))

	rows, err := repo.ActiveUserMonths(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	seen := map[string]bool{}
	for _, row := range rows {
		seen[row.UserID+"@"+row.Month] = true
	}
	assert.Equal(t, map[string]bool{"u1@2024-01": true, "u1@2024-02": true, "u2@2024-02": true}, seen)
}

func TestCountsForUserAndReviews(t *testing.T) {
	repo := NewEventRepository(openStore(t))
	ctx := context.Background()

	appendEvent(t, repo, models.EventTypeProfileView, "f1", "", "{}", day(1))
	appendEvent(t, repo, models.EventTypeProfileView, "f1", "", "{}", day(2))
	appendEvent(t, repo, models.EventTypeProposalSubmitted, "f1", "j1", "{}", day(2))
	appendEvent(t, repo, models.EventTypeProfileView, "f2", "", "{}", day(2))
	appendEvent(t, repo, models.EventTypeReviewReceived, "f1", "j1", `{"rating": 5}`, day(3))

	counts, err := repo.CountsForUser(ctx, "f1",
		[]string{models.EventTypeProfileView, models.EventTypeProposalSubmitted, models.EventTypeContractStarted})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		models.EventTypeProfileView:       2,
		models.EventTypeProposalSubmitted: 1,
	}, counts)

	reviews, err := repo.ReviewMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"rating": 5}`}, reviews)
}

func TestSamplesSince(t *testing.T) {
	repo := NewSystemMetricRepository(openStore(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, m := range []models.SystemMetric{
		{Service: "api", Endpoint: "/a", StatusCode: 200, LatencyMs: 10, Timestamp: now.Add(-time.Hour)},
		{Service: "api", Endpoint: "/a", StatusCode: 503, LatencyMs: 30, Timestamp: now.Add(-2 * time.Hour)},
		{Service: "api", Endpoint: "/a", StatusCode: 200, LatencyMs: 99, Timestamp: now.Add(-48 * time.Hour)},
	} {
		metric := m
		require.NoError(t, repo.Append(ctx, &metric))
	}

	samples, err := repo.SamplesSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for _, s := range samples {
		assert.Equal(t, "api", s.Service)
		assert.NotEqual(t, 99.0, s.LatencyMs)
	}
}

func TestFinancialRollups(t *testing.T) {
	repo := NewFinancialRepository(openStore(t))
	ctx := context.Background()

	add := func(user, client, category, job, center string, amount float64, ts time.Time) {
		require.NoError(t, repo.Append(ctx, &models.FinancialEvent{
			EventID: uuid.New(), UserID: user, CounterpartyID: client, Amount: amount,
			Currency: "USD", Category: category, JobID: job, TransactionID: uuid.NewString(),
			CostCenter: center, Timestamp: ts,
		}))
	}

	add("f1", "c1", models.CategoryEarnings, "j1", "eng", 100, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	add("f1", "c1", models.CategoryEarnings, "j1", "eng", 50, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	add("f1", "c2", models.CategoryEarnings, "j2", "ops", 25.5, time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC))
	add("f1", "c1", "Fee", "j3", "eng", 999, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC))
	add("f2", "c1", models.CategoryEarnings, "", "", 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	add("f1", "c1", "earnings", "j4", "eng", 7, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	total, err := repo.TotalEarnings(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 175.5, total)

	months, err := repo.MonthlyEarnings(ctx, "f1", 12)
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyAmount{{Month: "2024-02", Amount: 75.5}, {Month: "2024-01", Amount: 100}}, months)

	jobs, err := repo.CompletedJobs(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), jobs)

	spend, err := repo.TotalSpend(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 160.0, spend)

	byJob, err := repo.SpendByJob(ctx, "c1", 10)
	require.NoError(t, err)
	// the job-less payment counts toward total spend but not the breakdown
	assert.Equal(t, []models.JobAmount{{JobID: "j1", Amount: 150}}, byJob)

	funded, err := repo.FundedJobs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), funded)

	centers, err := repo.SpendByCostCenter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []models.CostCenterAmount{{CostCenter: "eng", Amount: 150}, {CostCenter: "", Amount: 10}}, centers)

	none, err := repo.TotalEarnings(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0.0, none)
}
