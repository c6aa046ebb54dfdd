package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/storage/dynamodb/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(client DynamoDBAPI) *Store {
	return New(client, Tables{
		Wallets:      "wallets",
		Accounts:     "accounts",
		Transactions: "transactions",
		Payments:     "payments",
		Outbox:       "outbox",
	})
}

func walletItem(t *testing.T, w *models.Wallet) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(toWalletRecord(w))
	require.NoError(t, err)
	return av
}

func TestGetWalletByUser(t *testing.T) {
	w := models.NewWallet("user-1", models.HomeCurrency, decimal.NewFromInt(1000), testNow)
	w.Version = 3
	w.Accounts[0].Balance = decimal.RequireFromString("1250.75")

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "wallets" && *in.ConsistentRead
		})).Once().Return(&dynamodb.GetItemOutput{Item: walletItem(t, w)}, nil)

		result, err := store.GetWalletByUser(context.Background(), "user-1")

		require.NoError(t, err)
		assert.Equal(t, w.Id, result.Id)
		assert.Equal(t, int64(3), result.Version)
		assert.True(t, result.Accounts[0].Balance.Equal(decimal.RequireFromString("1250.75")))
		assert.Equal(t, w.Id, result.Accounts[0].WalletId)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := store.GetWalletByUser(context.Background(), "user-1")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("dynamodb error"))

		_, err := store.GetWalletByUser(context.Background(), "user-1")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get wallet from DynamoDB")
		mockClient.AssertExpectations(t)
	})
}

func TestGetWallet(t *testing.T) {
	w := models.NewWallet("user-1", models.HomeCurrency, decimal.NewFromInt(1000), testNow)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		keyOnly, _ := attributevalue.MarshalMap(map[string]string{"id": w.Id, "user_id": "user-1"})
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == walletIDIndex
		})).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{keyOnly}}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: walletItem(t, w)}, nil)

		result, err := store.GetWallet(context.Background(), w.Id)

		require.NoError(t, err)
		assert.Equal(t, "user-1", result.UserId)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

		_, err := store.GetWallet(context.Background(), w.Id)

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestGetWalletByAccount(t *testing.T) {
	w := models.NewWallet("user-1", models.HomeCurrency, decimal.NewFromInt(1000), testNow)
	accountID := w.Accounts[0].Id

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		ref, _ := attributevalue.MarshalMap(accountIndexRecord{AccountId: accountID, WalletId: w.Id, UserId: "user-1"})
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "accounts" && in.ConsistentRead != nil && *in.ConsistentRead
		})).Once().Return(&dynamodb.GetItemOutput{Item: ref}, nil)
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "wallets"
		})).Once().Return(&dynamodb.GetItemOutput{Item: walletItem(t, w)}, nil)

		result, err := store.GetWalletByAccount(context.Background(), accountID)

		require.NoError(t, err)
		assert.Equal(t, w.Id, result.Id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := store.GetWalletByAccount(context.Background(), accountID)

		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestListWalletsWithCreditDueBefore(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		first, _ := attributevalue.MarshalMap(map[string]string{"id": "w-1"})
		second, _ := attributevalue.MarshalMap(map[string]string{"id": "w-2"})
		cursor := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "w-1"}}

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == creditSweepIndex && in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: cursor}, nil)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{second}}, nil)

		ids, err := store.ListWalletsWithCreditDueBefore(context.Background(), testNow)

		require.NoError(t, err)
		assert.Equal(t, []string{"w-1", "w-2"}, ids)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newTestStore(mockClient)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

		_, err := store.ListWalletsWithCreditDueBefore(context.Background(), testNow)

		assert.Contains(t, err.Error(), "failed to query wallets with due credit")
	})
}

func TestWalletRecordSweepKeys(t *testing.T) {
	w := models.NewWallet("user-1", models.HomeCurrency, decimal.NewFromInt(1000), testNow)
	_, err := w.GrantCredit(decimal.NewFromInt(100), testNow.Add(time.Hour), "loan", testNow)
	require.NoError(t, err)

	rec := toWalletRecord(w)
	assert.Equal(t, creditSweepActive, rec.CreditSweep)
	assert.Equal(t, "2026-03-01T13:00:00Z", rec.SweepDue)

	_, err = w.MarkCreditOverdue(testNow.Add(2 * time.Hour))
	require.NoError(t, err)
	rec = toWalletRecord(w)
	assert.Empty(t, rec.CreditSweep, "overdue grants leave the sweep index")
}
