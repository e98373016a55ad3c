package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// EventRequest is the inbound payload for a behavioral event
type EventRequest struct {
	EventType string          `json:"event_type" validate:"notblank"`
	UserID    string          `json:"user_id" validate:"notblank"`
	JobID     string          `json:"job_id"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp *time.Time      `json:"timestamp"`
}

// Validate checks the request and normalizes it into an Event. Identity is assigned by the writer.
func (r *EventRequest) Validate() (*Event, error) {
	if err := validateStruct(r); err != nil {
		return nil, err
	}

	metadata, err := normalizeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}

	event := &Event{
		EventType: r.EventType,
		UserID:    r.UserID,
		JobID:     r.JobID,
		Metadata:  metadata,
	}
	if r.Timestamp != nil {
		event.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	}

	return event, nil
}

// FinancialRequest is the inbound payload for a financial transaction
type FinancialRequest struct {
	UserID         string     `json:"user_id" validate:"notblank"`
	CounterpartyID string     `json:"counterparty_id" validate:"notblank"`
	Amount         *float64   `json:"amount" validate:"required"`
	Currency       string     `json:"currency" validate:"notblank"`
	Category       string     `json:"category" validate:"notblank"`
	JobID          string     `json:"job_id"`
	TransactionID  string     `json:"transaction_id"`
	CostCenter     string     `json:"cost_center"`
	Timestamp      *time.Time `json:"timestamp"`
}

// Validate checks the request and normalizes it into a FinancialEvent
func (r *FinancialRequest) Validate() (*FinancialEvent, error) {
	if err := validateStruct(r); err != nil {
		return nil, err
	}

	event := &FinancialEvent{
		UserID:         r.UserID,
		CounterpartyID: r.CounterpartyID,
		Amount:         *r.Amount,
		Currency:       r.Currency,
		Category:       r.Category,
		JobID:          r.JobID,
		TransactionID:  r.TransactionID,
		CostCenter:     r.CostCenter,
	}
	if r.Timestamp != nil {
		event.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	}

	return event, nil
}

// MetricRequest is the inbound payload for a telemetry sample
type MetricRequest struct {
	Service    string     `json:"service" validate:"notblank"`
	Endpoint   string     `json:"endpoint" validate:"notblank"`
	StatusCode uint16     `json:"status_code" validate:"min=100,max=599"`
	LatencyMs  *float64   `json:"latency_ms" validate:"required,gte=0"`
	Timestamp  *time.Time `json:"timestamp"`
}

// Validate checks the request and normalizes it into a SystemMetric
func (r *MetricRequest) Validate() (*SystemMetric, error) {
	if err := validateStruct(r); err != nil {
		return nil, err
	}

	metric := &SystemMetric{
		Service:    r.Service,
		Endpoint:   r.Endpoint,
		StatusCode: r.StatusCode,
		LatencyMs:  *r.LatencyMs,
	}
	if r.Timestamp != nil {
		metric.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	}

	return metric, nil
}

// normalizeMetadata stores a JSON string verbatim and any other JSON value as its raw text
func normalizeMetadata(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return EmptyMetadata, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", NewValidationError("metadata", "must be a string or JSON value")
		}
		if s == "" {
			return EmptyMetadata, nil
		}
		return s, nil
	}

	return string(trimmed), nil
}
