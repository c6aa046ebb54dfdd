package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client used by Store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Index names. Each must exist on its table.
const (
	walletIDIndex           = "id-index"
	creditSweepIndex        = "credit_sweep-credit_sweep_due-index"
	walletTransactionsIndex = "wallet_id-transaction_date-index"
	relatedTransactionIndex = "related_transaction_id-index"
	paymentIDIndex          = "id-index"
	outboxStatusIndex       = "status-created_at-index"
)

// Tables holds the DynamoDB table names used by Store.
type Tables struct {
	Wallets      string
	Accounts     string
	Transactions string
	Payments     string
	Outbox       string
}

// Store implements the Storage interface using AWS DynamoDB.
//
// Wallets are keyed by user_id so the one-wallet-per-user rule is a plain
// attribute_not_exists condition. Accounts and credit history live inside the
// wallet item, which makes every aggregate save a single conditional Put.
type Store struct {
	Client                DynamoDBAPI
	WalletsTableName      string
	AccountsTableName     string
	TransactionsTableName string
	PaymentsTableName     string
	OutboxTableName       string
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{
		Client:                client,
		WalletsTableName:      tables.Wallets,
		AccountsTableName:     tables.Accounts,
		TransactionsTableName: tables.Transactions,
		PaymentsTableName:     tables.Payments,
		OutboxTableName:       tables.Outbox,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)
