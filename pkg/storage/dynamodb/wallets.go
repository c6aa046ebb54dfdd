package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// GetWalletByUser retrieves a user's wallet from DynamoDB by their user ID.
func (s *Store) GetWalletByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet user ID: %w", err)
	}

	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.WalletsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("wallet for user ID %s: %w", userID, storage.ErrNotFound)
	}

	var rec walletRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return rec.toModel()
}

// GetWallet resolves the owning user through the id index, then does a
// consistent read of the wallet item.
func (s *Store) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.WalletsTableName),
		IndexName:              aws.String(walletIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: walletID},
		},
		Limit: aws.Int32(1),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet by ID: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("wallet %s: %w", walletID, storage.ErrNotFound)
	}

	var ref struct {
		UserId string `dynamodbav:"user_id"`
	}
	if err := attributevalue.UnmarshalMap(result.Items[0], &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet key: %w", err)
	}

	return s.GetWalletByUser(ctx, ref.UserId)
}

// GetWalletByAccount looks the account up in the accounts table and loads its wallet.
func (s *Store) GetWalletByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"account_id": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}

	var ref accountIndexRecord
	if err := attributevalue.UnmarshalMap(result.Item, &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return s.GetWalletByUser(ctx, ref.UserId)
}

// ListWalletsWithCreditDueBefore queries the sparse credit sweep index.
func (s *Store) ListWalletsWithCreditDueBefore(ctx context.Context, t time.Time) ([]string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.WalletsTableName),
		IndexName:              aws.String(creditSweepIndex),
		KeyConditionExpression: aws.String("credit_sweep = :active AND credit_sweep_due < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberS{Value: creditSweepActive},
			":now":    &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)},
		},
	}

	var ids []string
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query wallets with due credit: %w", err)
		}

		var refs []struct {
			Id string `dynamodbav:"id"`
		}
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &refs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wallets with due credit: %w", err)
		}
		for _, r := range refs {
			ids = append(ids, r.Id)
		}

		if len(result.LastEvaluatedKey) == 0 {
			return ids, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}
