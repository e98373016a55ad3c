package messaging

import (
	"context"
	"time"

	"example.com/backstage/services/analytics/config"
	"example.com/backstage/services/analytics/internal/metrics"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const receiveBackoff = 2 * time.Second

// receiver is the subset of *azservicebus.Receiver the consumer needs
type receiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// Consumer drains the ingestion queue into a MessageProcessor
type Consumer struct {
	client      *azservicebus.Client
	queueName   string
	maxMessages int
	metrics     *metrics.Metrics
}

func NewConsumer(cfg config.AzureConfig, m *metrics.Metrics) (*Consumer, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 10
	}

	return &Consumer{client: client, queueName: cfg.QueueName, maxMessages: maxMessages, metrics: m}, nil
}

// Run receives and settles messages until ctx is cancelled
func (c *Consumer) Run(ctx context.Context, processor MessageProcessor) error {
	r, err := c.client.NewReceiverForQueue(c.queueName, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to create receiver for queue %s", c.queueName)
	}
	defer func() {
		if err := r.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("queue", c.queueName).Msg("Error closing receiver")
		}
	}()

	log.Info().Str("queue", c.queueName).Msg("Starting consumer")
	return consume(ctx, r, c.maxMessages, processor, c.metrics)
}

// Close releases the Service Bus connection
func (c *Consumer) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close(ctx)
}

func consume(ctx context.Context, r receiver, maxMessages int, processor MessageProcessor, m *metrics.Metrics) error {
	for {
		messages, err := r.ReceiveMessages(ctx, maxMessages, nil)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Error receiving messages, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(receiveBackoff):
			}
			continue
		}

		for _, message := range messages {
			err := processor.ProcessMessage(ctx, message)
			if m != nil {
				m.IncrementCounter(metrics.QueueMessages)
				m.RecordOutcome(metrics.QueueMessages, err)
			}
			settle(ctx, r, message, err)
		}
	}
}

// settle completes a processed message, dead-letters a permanently invalid one and abandons the rest for redelivery
func settle(ctx context.Context, r receiver, message *azservicebus.ReceivedMessage, procErr error) {
	logger := log.With().Str("message_id", message.MessageID).Logger()

	if procErr == nil {
		if err := r.CompleteMessage(ctx, message, nil); err != nil {
			logger.Error().Err(err).Msg("(CompleteMessage) failed")
		}
		return
	}

	if IsPermanent(procErr) {
		logger.Warn().Err(procErr).Msg("Dead-lettering invalid message")
		reason := "InvalidMessage"
		description := procErr.Error()
		if err := r.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			logger.Error().Err(err).Msg("(DeadLetterMessage) failed")
		}
		return
	}

	logger.Error().Err(procErr).Msg("Error processing message, abandoning")
	if err := r.AbandonMessage(ctx, message, nil); err != nil {
		logger.Error().Err(err).Msg("(AbandonMessage) failed")
	}
}
