package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/backstage/services/analytics/config"
	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/metrics"
	"example.com/backstage/services/analytics/internal/models"
	"example.com/backstage/services/analytics/internal/repositories"
	"example.com/backstage/services/analytics/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router  *gin.Engine
	store   *database.Store
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.OpenMemory(context.Background(), uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := repositories.NewEventRepository(store)
	financials := repositories.NewFinancialRepository(store)
	samples := repositories.NewSystemMetricRepository(store)
	m := metrics.NewMetrics()

	cfg := config.Config{
		Environment:    "test",
		MetricsEnabled: true,
		Server: config.ServerConfig{
			Address:     "127.0.0.1:0",
			CorsEnabled: true,
			CorsOrigins: []string{"https://app.example.com"},
		},
	}

	ingest := services.NewIngestionService(events, financials, samples, nil, nil, nil, m)
	analytics := services.NewAnalyticsService(events, financials, samples, store, nil, nil, nil, m)
	server := NewServer(cfg, ingest, analytics, nil, m)

	return &testServer{router: server.Router(), store: store, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"connected"}`, rec.Body.String())

	require.NoError(t, s.store.Close())
	rec = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "disconnected", body["database"])
	assert.NotEmpty(t, body["error"])
}

func TestCreateEventThenStats(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/analytics/events",
		`{"event_type":"job_view","user_id":"u1","job_id":"j1","metadata":"{\"source\":\"feed\"}"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	decode(t, rec, &created)
	assert.Equal(t, "success", created["status"])
	_, err := uuid.Parse(created["event_id"])
	assert.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/api/analytics/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"event_type":"job_view","count":1}]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/analytics/jobs/j1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.JobStats
	decode(t, rec, &job)
	assert.Equal(t, "j1", job.JobID)
	assert.Len(t, job.DailyViews, 1)
	assert.Equal(t, map[string]int64{"job_view": 1}, job.TotalEvents)
}

func TestCreateEventValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/analytics/events", `{"event_type":"job_view","user_id":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"VALIDATION_ERROR","message":"field required","field":"user_id"}}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/analytics/events", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/analytics/stats", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, int64(2), s.metrics.Snapshot().Counters[metrics.IngestRejected])
}

func TestCreateFinancialAndMetric(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/analytics/financials",
		`{"user_id":"f1","counterparty_id":"c1","amount":120.5,"currency":"USD","category":"Earnings","job_id":"j1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/analytics/financials",
		`{"user_id":"f1","counterparty_id":"c1","currency":"USD","category":"Earnings"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/analytics/metrics",
		`{"service":"api","endpoint":"/jobs","status_code":200,"latency_ms":12.5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/analytics/freelancer/earnings?user_id=f1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var earnings models.FreelancerEarnings
	decode(t, rec, &earnings)
	assert.Equal(t, 120.5, earnings.TotalEarnings)
	assert.Len(t, earnings.MonthlyEarnings, 1)

	rec = s.do(t, http.MethodGet, "/api/analytics/client/spend?user_id=c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spend models.ClientSpend
	decode(t, rec, &spend)
	assert.Equal(t, []models.JobAmount{{JobID: "j1", Amount: 120.5}}, spend.JobBreakdown)

	rec = s.do(t, http.MethodGet, "/api/analytics/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var perf []models.ServicePerformance
	decode(t, rec, &perf)
	require.Len(t, perf, 1)
	assert.Equal(t, "api", perf[0].Service)
}

func TestQueryEndpointsOnEmptyStore(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"/api/analytics/retention":                                `[]`,
		"/api/analytics/churn":                                    `[]`,
		"/api/analytics/performance":                              `[]`,
		"/api/analytics/jobs/none":                                `{"job_id":"none","daily_views":[],"total_events":{}}`,
		"/api/analytics/freelancer/earnings?user_id=u":            `{"user_id":"u","total_earnings":0,"monthly_earnings":[]}`,
		"/api/analytics/client/spend?user_id=u":                   `{"user_id":"u","total_spend":0,"job_breakdown":[]}`,
		"/api/analytics/freelancer/overview?user_id=u":            `{"totalEarnings":0,"jobsCompleted":0,"jss":100,"profileViews":0,"activeProposals":0}`,
		"/api/analytics/client/overview?user_id=u":                `{"totalSpend":0,"projectsFunded":0,"spendByCostCenter":[]}`,
		"/api/analytics/freelancer/predictive-earnings?user_id=u": `{"predictedNextMonth":0,"trend":"flat","confidence":0,"basedOnMonths":0}`,
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, want, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodGet, "/api/analytics/freelancer/funnel?user_id=u", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var funnel models.Funnel
	decode(t, rec, &funnel)
	assert.Len(t, funnel.Steps, 4)
	assert.Equal(t, models.ConversionRates{}, funnel.ConversionRates)
}

func TestMissingUserID(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/analytics/freelancer/earnings",
		"/api/analytics/freelancer/overview",
		"/api/analytics/freelancer/funnel",
		"/api/analytics/freelancer/predictive-earnings",
		"/api/analytics/client/spend",
		"/api/analytics/client/overview",
		"/api/analytics/events/search",
	} {
		rec := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.JSONEq(t, `{"error":{"code":"VALIDATION_ERROR","message":"field required","field":"user_id"}}`, rec.Body.String())
	}
}

func TestStoreOutageReturns503(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Close())

	for _, path := range []string{"/api/analytics/stats", "/api/analytics/churn", "/api/analytics/retention"} {
		rec := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)

		var body errorPayload
		decode(t, rec, &body)
		assert.Equal(t, "STORAGE_UNAVAILABLE", body.Error.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/analytics/events", `{"event_type":"job_view","user_id":"u1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestSearchDisabled(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/analytics/events/search?user_id=u1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SEARCH_UNAVAILABLE")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/analytics/stats", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot metrics.Snapshot
	decode(t, rec, &snapshot)
	assert.Contains(t, snapshot.Timers, "http GET /api/analytics/stats")
	assert.Contains(t, snapshot.Gauges, "goroutines")
}

func TestRequestIDAndCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/analytics/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/analytics/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}
