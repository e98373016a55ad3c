package messaging

import (
	"context"
	"encoding/json"

	"example.com/backstage/services/analytics/internal/models"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Message kinds carried on the ingestion queue
const (
	KindEvent     = "event"
	KindFinancial = "financial"
	KindMetric    = "metric"
)

// ErrMalformedMessage marks a message that can never be processed
var ErrMalformedMessage = errors.New("malformed message")

// AzureBusMessage is the envelope of every queued record. Data uses the HTTP body shape.
type AzureBusMessage struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Ingester appends validated records to the store
type Ingester interface {
	WriteEvent(ctx context.Context, event *models.Event) (uuid.UUID, error)
	WriteFinancial(ctx context.Context, event *models.FinancialEvent) (uuid.UUID, error)
	WriteMetric(ctx context.Context, metric *models.SystemMetric) error
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// Processor decodes queued records and hands them to the ingestion writer
type Processor struct {
	ingester Ingester
}

func NewProcessor(ingester Ingester) *Processor {
	return &Processor{ingester: ingester}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return errors.Wrapf(ErrMalformedMessage, "error unmarshalling envelope: %v", err)
	}

	log.Debug().Str("kind", msg.Kind).Str("message_id", message.MessageID).Msg("Processing message")

	switch msg.Kind {
	case KindEvent:
		var req models.EventRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		event, err := req.Validate()
		if err != nil {
			return err
		}
		_, err = p.ingester.WriteEvent(ctx, event)
		return err

	case KindFinancial:
		var req models.FinancialRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		event, err := req.Validate()
		if err != nil {
			return err
		}
		_, err = p.ingester.WriteFinancial(ctx, event)
		return err

	case KindMetric:
		var req models.MetricRequest
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		metric, err := req.Validate()
		if err != nil {
			return err
		}
		return p.ingester.WriteMetric(ctx, metric)

	default:
		return errors.Wrapf(ErrMalformedMessage, "unknown message kind %q", msg.Kind)
	}
}

func decodeData(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return errors.Wrap(ErrMalformedMessage, "message has no data")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(ErrMalformedMessage, "error unmarshalling data: %v", err)
	}
	return nil
}

// IsPermanent reports whether redelivering the message can never succeed
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || models.IsValidationError(err)
}
