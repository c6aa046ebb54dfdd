package wallet

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/models"
)

// MaxTransactionPage caps ListTransactions.
const MaxTransactionPage = 100

// GetWallet loads a wallet by ID.
func (s *Service) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, s.Translate("get_wallet", err, "wallet_id", walletID)
	}
	return w, nil
}

// GetWalletByUser loads the wallet of a user.
func (s *Service) GetWalletByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.store.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, s.Translate("get_wallet_by_user", err, "user_id", userID)
	}
	return w, nil
}

// GetWalletByAccount loads the wallet owning an account.
func (s *Service) GetWalletByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	w, err := s.store.GetWalletByAccount(ctx, accountID)
	if err != nil {
		return nil, s.Translate("get_wallet_by_account", err, "account_id", accountID)
	}
	return w, nil
}

// ListTransactions returns the latest transactions of a wallet, newest first.
func (s *Service) ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > MaxTransactionPage {
		limit = MaxTransactionPage
	}
	txs, err := s.store.ListTransactionsByWallet(ctx, walletID, int32(limit))
	if err != nil {
		return nil, s.Translate("list_transactions", err, "wallet_id", walletID)
	}
	return txs, nil
}
