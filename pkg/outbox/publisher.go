// Package outbox relays committed domain events to the message queue.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/chris/wallet-ledger/pkg/models"
)

// Publisher delivers a single event downstream.
type Publisher interface {
	Publish(ctx context.Context, ev models.OutboxEvent) error
}

// SQSAPI defines the interface for the SQS client methods used by the publisher.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher implements the Publisher interface using AWS SQS.
type SQSPublisher struct {
	Client   SQSAPI
	QueueURL string
}

// NewSQSPublisher creates a new SQSPublisher.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ Publisher = (*SQSPublisher)(nil)

// Publish sends the event as a JSON message. On a FIFO queue events of one
// wallet share a message group, so consumers see them in commit order.
func (p *SQSPublisher) Publish(ctx context.Context, ev models.OutboxEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s for SQS: %w", ev.Id, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Type)),
			},
		},
	}
	if strings.HasSuffix(p.QueueURL, ".fifo") {
		input.MessageGroupId = aws.String(ev.AggregateId)
		input.MessageDeduplicationId = aws.String(ev.Id)
	}

	if _, err := p.Client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send event %s to SQS: %w", ev.Id, err)
	}
	return nil
}

// LogPublisher writes events to the log. It stands in for a queue in local runs.
type LogPublisher struct {
	Logger *slog.Logger
}

var _ Publisher = (*LogPublisher)(nil)

func (p *LogPublisher) Publish(ctx context.Context, ev models.OutboxEvent) error {
	p.Logger.Info("outbox event", "event_id", ev.Id, "event_type", ev.Type, "aggregate_id", ev.AggregateId)
	return nil
}
