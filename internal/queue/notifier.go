// Package queue provides the SQS-based producer for dispatching billing and
// trial notifications to the downstream email worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notifier publishes NotificationMessages to the notification queue for the
// email worker. Callers treat publish failures as non-critical; the worker
// owns template selection and delivery.
type Notifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewNotifier creates a Notifier for the given queue URL.
func NewNotifier(client SQSSender, queueURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Publish serializes the message and sends it to the notification queue.
func (n *Notifier) Publish(ctx context.Context, msg types.NotificationMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal notification: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Kind)),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send %s notification", msg.Kind),
			err,
		)
	}

	n.logger.DebugContext(ctx, "notification published",
		"kind", msg.Kind,
		"message_id", msg.MessageID,
		"firm_id", msg.FirmID,
	)
	return nil
}
