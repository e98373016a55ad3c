package models

import (
	"time"

	"github.com/google/uuid"
)

// Table names in the analytics store
const (
	EventsTable          = "events"
	SystemMetricsTable   = "system_metrics"
	FinancialEventsTable = "financial_events"
)

// Event types the aggregation engine gives meaning to. Any other tag is accepted and counted.
const (
	EventTypeJobView            = "job_view"
	EventTypeReviewReceived     = "review_received"
	EventTypeProfileView        = "profile_view"
	EventTypeProposalSubmitted  = "proposal_submitted"
	EventTypeInterviewScheduled = "interview_scheduled"
	EventTypeContractStarted    = "contract_started"
)

// CategoryEarnings is the financial category every earnings and spend rollup filters on.
const CategoryEarnings = "Earnings"

// EmptyMetadata is stored when an event carries no metadata.
const EmptyMetadata = "{}"

// Event is a behavioral event as stored in the events table
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	JobID     string    `json:"job_id"`
	Metadata  string    `json:"metadata"`
	Timestamp time.Time `json:"timestamp"`
}

// EventColumns is the column order used when appending events
var EventColumns = []string{"event_id", "event_type", "user_id", "job_id", "metadata", "timestamp"}

// Row returns the event as a tuple aligned with EventColumns
func (e *Event) Row() []interface{} {
	return []interface{}{e.EventID.String(), e.EventType, e.UserID, e.JobID, e.Metadata, e.Timestamp}
}

// SystemMetric is a single request telemetry sample
type SystemMetric struct {
	Service    string    `json:"service"`
	Endpoint   string    `json:"endpoint"`
	StatusCode uint16    `json:"status_code"`
	LatencyMs  float64   `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// SystemMetricColumns is the column order used when appending metrics
var SystemMetricColumns = []string{"service", "endpoint", "status_code", "latency_ms", "timestamp"}

// Row returns the metric as a tuple aligned with SystemMetricColumns
func (m *SystemMetric) Row() []interface{} {
	return []interface{}{m.Service, m.Endpoint, int64(m.StatusCode), m.LatencyMs, m.Timestamp}
}

// FinancialEvent is a money movement between an earner (UserID) and a payer (CounterpartyID)
type FinancialEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	UserID         string    `json:"user_id"`
	CounterpartyID string    `json:"counterparty_id"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Category       string    `json:"category"`
	JobID          string    `json:"job_id"`
	TransactionID  string    `json:"transaction_id"`
	CostCenter     string    `json:"cost_center"`
	Timestamp      time.Time `json:"timestamp"`
}

// FinancialEventColumns is the column order used when appending financial events
var FinancialEventColumns = []string{
	"event_id", "user_id", "counterparty_id", "amount", "currency",
	"category", "job_id", "transaction_id", "cost_center", "timestamp",
}

// Row returns the financial event as a tuple aligned with FinancialEventColumns
func (f *FinancialEvent) Row() []interface{} {
	return []interface{}{
		f.EventID.String(), f.UserID, f.CounterpartyID, f.Amount, f.Currency,
		f.Category, f.JobID, f.TransactionID, f.CostCenter, f.Timestamp,
	}
}
