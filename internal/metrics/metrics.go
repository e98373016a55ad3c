package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the service
const (
	EventsIngested     = "ingest.events"
	FinancialsIngested = "ingest.financials"
	MetricsIngested    = "ingest.metrics"
	IngestRejected     = "ingest.rejected"
	IngestFailed       = "ingest.failed"
	CacheHits          = "cache.hits"
	CacheMisses        = "cache.misses"
	QueueMessages      = "queue.messages"
)

// TimerSnapshot summarizes recorded durations
type TimerSnapshot struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// ErrorRateSnapshot summarizes successes and failures of an operation
type ErrorRateSnapshot struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// Snapshot is a point-in-time copy of every metric
type Snapshot struct {
	UptimeSeconds int64                        `json:"uptime_seconds"`
	Counters      map[string]int64             `json:"counters"`
	Gauges        map[string]int64             `json:"gauges"`
	Timers        map[string]TimerSnapshot     `json:"timers"`
	ErrorRates    map[string]ErrorRateSnapshot `json:"error_rates"`
	HealthChecks  map[string]bool              `json:"health_checks"`
}

type timer struct {
	count   atomic.Int64
	totalMs atomic.Int64
	minMs   atomic.Int64
	maxMs   atomic.Int64
}

type errorRate struct {
	total  atomic.Int64
	errors atomic.Int64
}

// Metrics is an in-process metrics collector, safe for concurrent use
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*atomic.Int64
	gauges     map[string]*atomic.Int64
	timers     map[string]*timer
	errorRates map[string]*errorRate
	health     map[string]*atomic.Bool
	startTime  time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]*atomic.Int64),
		gauges:     make(map[string]*atomic.Int64),
		timers:     make(map[string]*timer),
		errorRates: make(map[string]*errorRate),
		health:     make(map[string]*atomic.Bool),
		startTime:  time.Now(),
	}
}

// getOrCreate returns m[name], creating it under the write lock on first use
func getOrCreate[T any](mu *sync.RWMutex, m map[string]*T, name string, create func() *T) *T {
	mu.RLock()
	v, ok := m[name]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok = m[name]; !ok {
		v = create()
		m[name] = v
	}
	return v
}

func newInt64() *atomic.Int64 { return new(atomic.Int64) }

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	getOrCreate(&m.mu, m.counters, name, newInt64).Add(value)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	getOrCreate(&m.mu, m.gauges, name, newInt64).Store(value)
}

// RecordDuration records one timing measurement
func (m *Metrics) RecordDuration(name string, d time.Duration) {
	t := getOrCreate(&m.mu, m.timers, name, func() *timer {
		t := &timer{}
		t.minMs.Store(math.MaxInt64)
		return t
	})

	ms := d.Milliseconds()
	t.count.Add(1)
	t.totalMs.Add(ms)

	for {
		cur := t.minMs.Load()
		if ms >= cur || t.minMs.CompareAndSwap(cur, ms) {
			break
		}
	}
	for {
		cur := t.maxMs.Load()
		if ms <= cur || t.maxMs.CompareAndSwap(cur, ms) {
			break
		}
	}
}

// Since records the time elapsed since start
func (m *Metrics) Since(name string, start time.Time) {
	m.RecordDuration(name, time.Since(start))
}

// RecordOutcome counts one operation toward its error rate
func (m *Metrics) RecordOutcome(name string, err error) {
	r := getOrCreate(&m.mu, m.errorRates, name, func() *errorRate { return &errorRate{} })
	r.total.Add(1)
	if err != nil {
		r.errors.Add(1)
	}
}

// SetHealth sets the health status of a component
func (m *Metrics) SetHealth(component string, healthy bool) {
	getOrCreate(&m.mu, m.health, component, func() *atomic.Bool { return new(atomic.Bool) }).Store(healthy)
}

// Healthy reports whether every registered component is healthy
func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, h := range m.health {
		if !h.Load() {
			return false
		}
	}
	return true
}

// Snapshot copies every metric
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]int64, len(m.gauges)),
		Timers:        make(map[string]TimerSnapshot, len(m.timers)),
		ErrorRates:    make(map[string]ErrorRateSnapshot, len(m.errorRates)),
		HealthChecks:  make(map[string]bool, len(m.health)),
	}

	for name, c := range m.counters {
		s.Counters[name] = c.Load()
	}
	for name, g := range m.gauges {
		s.Gauges[name] = g.Load()
	}
	for name, t := range m.timers {
		count := t.count.Load()
		total := t.totalMs.Load()
		ts := TimerSnapshot{Count: count, TotalTimeMs: total, MinTimeMs: t.minMs.Load(), MaxTimeMs: t.maxMs.Load()}
		if count > 0 {
			ts.AverageTimeMs = float64(total) / float64(count)
		}
		s.Timers[name] = ts
	}
	for name, r := range m.errorRates {
		total := r.total.Load()
		errs := r.errors.Load()
		rs := ErrorRateSnapshot{Total: total, Errors: errs}
		if total > 0 {
			rs.ErrorRate = float64(errs) / float64(total) * 100
		}
		s.ErrorRates[name] = rs
	}
	for name, h := range m.health {
		s.HealthChecks[name] = h.Load()
	}

	return s
}
