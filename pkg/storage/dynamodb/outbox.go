package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
)

// ListPendingEvents returns the oldest unpublished outbox events.
func (s *Store) ListPendingEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.OutboxTableName),
		IndexName:              aws.String(outboxStatusIndex),
		KeyConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(models.OutboxPending)},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox events: %w", err)
	}

	var recs []outboxRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox events: %w", err)
	}

	events := make([]models.OutboxEvent, 0, len(recs))
	for _, rec := range recs {
		events = append(events, rec.toModel())
	}
	return events, nil
}

// MarkEventPublished moves an event out of the pending index. An event that is
// already published is left alone.
func (s *Store) MarkEventPublished(ctx context.Context, eventID string, at time.Time) error {
	atAV, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal published timestamp: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.OutboxTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: eventID},
		},
		UpdateExpression:    aws.String("SET #status = :published, published_at = :at"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":published": &types.AttributeValueMemberS{Value: string(models.OutboxPublished)},
			":pending":   &types.AttributeValueMemberS{Value: string(models.OutboxPending)},
			":at":        atAV,
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil
		}
		return fmt.Errorf("failed to mark outbox event %s as published: %w", eventID, err)
	}

	return nil
}
