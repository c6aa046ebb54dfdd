package storage

import (
	"context"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
)

// WalletReader loads wallet aggregates with their accounts and credit history.
type WalletReader interface {
	// GetWallet retrieves a wallet by its ID.
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, error)

	// GetWalletByUser retrieves a user's wallet by their user ID.
	GetWalletByUser(ctx context.Context, userID string) (*models.Wallet, error)

	// GetWalletByAccount retrieves the wallet owning a currency account.
	GetWalletByAccount(ctx context.Context, accountID string) (*models.Wallet, error)

	// ListWalletsWithCreditDueBefore returns the IDs of wallets whose Active credit grant is due before t.
	ListWalletsWithCreditDueBefore(ctx context.Context, t time.Time) ([]string, error)
}
