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

// GetTransaction retrieves a single transaction from DynamoDB by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": txID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.TransactionsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}

	var rec transactionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return rec.toModel()
}

// ListTransactionsByWallet retrieves the latest transactions of a wallet, newest first.
func (s *Store) ListTransactionsByWallet(ctx context.Context, walletID string, limit int32) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransactionsTableName),
		IndexName:              aws.String(walletTransactionsIndex),
		KeyConditionExpression: aws.String("wallet_id = :wallet_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":wallet_id": &types.AttributeValueMemberS{Value: walletID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by wallet ID: %w", err)
	}

	return unmarshalTransactions(result.Items)
}

// ListTransactionsByRelated retrieves every transaction pointing at relatedID.
// All pages are read. The index is eventually consistent, so the result may
// miss a refund that just committed.
func (s *Store) ListTransactionsByRelated(ctx context.Context, relatedID string) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransactionsTableName),
		IndexName:              aws.String(relatedTransactionIndex),
		KeyConditionExpression: aws.String("related_transaction_id = :related_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":related_id": &types.AttributeValueMemberS{Value: relatedID},
		},
	}

	var txs []models.Transaction
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query related transactions: %w", err)
		}

		page, err := unmarshalTransactions(result.Items)
		if err != nil {
			return nil, err
		}
		txs = append(txs, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return txs, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func unmarshalTransactions(items []map[string]types.AttributeValue) ([]models.Transaction, error) {
	var recs []transactionRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}

	txs := make([]models.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}
