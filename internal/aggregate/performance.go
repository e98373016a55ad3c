package aggregate

import (
	"sort"

	"example.com/backstage/services/analytics/internal/models"
)

// MetricSample is the part of a telemetry row the performance rollup needs
type MetricSample struct {
	Service    string  `gorm:"column:service"`
	LatencyMs  float64 `gorm:"column:latency_ms"`
	StatusCode int     `gorm:"column:status_code"`
}

// IsError reports whether the sample counts toward the error rate
func (s MetricSample) IsError() bool {
	return s.StatusCode >= 400
}

// Performance groups samples by service and reports mean and p95 latency, request and
// error counts and error rate, slowest service first.
func Performance(samples []MetricSample) []models.ServicePerformance {
	latencies := make(map[string][]float64)
	errorCounts := make(map[string]int64)
	for _, s := range samples {
		latencies[s.Service] = append(latencies[s.Service], s.LatencyMs)
		if s.IsError() {
			errorCounts[s.Service]++
		}
	}

	results := make([]models.ServicePerformance, 0, len(latencies))
	for service, values := range latencies {
		// sort before summing so repeated calls produce bit-identical means
		sort.Float64s(values)

		var sum float64
		for _, v := range values {
			sum += v
		}
		total := int64(len(values))

		results = append(results, models.ServicePerformance{
			Service:       service,
			AvgLatency:    sum / float64(total),
			P95Latency:    percentileSorted(values, 0.95),
			TotalRequests: total,
			ErrorCount:    errorCounts[service],
			ErrorRate:     Percent(errorCounts[service], total),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].AvgLatency != results[j].AvgLatency {
			return results[i].AvgLatency > results[j].AvgLatency
		}
		return results[i].Service < results[j].Service
	})

	return results
}
