package storage

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/models"
)

// TransactionReader defines the interface for reading ledger transactions.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListTransactionsByWallet retrieves the most recent transactions of a wallet, newest first.
	ListTransactionsByWallet(ctx context.Context, walletID string, limit int32) ([]models.Transaction, error)

	// ListTransactionsByRelated retrieves every transaction linked to relatedID.
	ListTransactionsByRelated(ctx context.Context, relatedID string) ([]models.Transaction, error)
}
