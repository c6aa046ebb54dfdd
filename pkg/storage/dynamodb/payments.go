package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// GetPaymentByAuthority retrieves a payment by its gateway authority, which is the table key.
func (s *Store) GetPaymentByAuthority(ctx context.Context, authority string) (*models.PaymentTransaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"authority": authority})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment authority: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.PaymentsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("payment with authority %s: %w", authority, storage.ErrNotFound)
	}

	var rec paymentRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	return rec.toModel()
}

// GetPayment retrieves a payment by its ID through the id index.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*models.PaymentTransaction, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.PaymentsTableName),
		IndexName:              aws.String(paymentIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: paymentID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query payment by ID: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("payment %s: %w", paymentID, storage.ErrNotFound)
	}

	var ref struct {
		Authority string `dynamodbav:"authority"`
	}
	if err := attributevalue.UnmarshalMap(result.Items[0], &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment key: %w", err)
	}

	return s.GetPaymentByAuthority(ctx, ref.Authority)
}
