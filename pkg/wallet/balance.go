package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// CreateWalletResult identifies a newly created wallet.
type CreateWalletResult struct {
	WalletID         string
	DefaultAccountID string
}

// DepositRequest credits an account.
type DepositRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	ReferenceID string
	Description string
}

// WithdrawRequest debits an account.
type WithdrawRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	OrderID     string
	Description string
}

// PurchaseRequest pays for an order from an account balance.
type PurchaseRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	OrderID     string
	Description string
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateWallet creates the user's wallet with a default home currency account.
func (s *Service) CreateWallet(ctx context.Context, userID string) (*CreateWalletResult, error) {
	if userID == "" {
		return nil, apperrors.BadRequest("user ID is required")
	}
	if _, err := s.store.GetWalletByUser(ctx, userID); err == nil {
		return nil, apperrors.Conflict("wallet for user %s already exists", userID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, s.Translate("create_wallet", err, "user_id", userID)
	}

	now := s.now()
	w := models.NewWallet(userID, s.home, s.defaultCreditLimit, now)
	changes := &storage.Changes{Wallet: w, NewAccounts: w.Accounts}
	if err := changes.AddEvent(models.NewEvent(w.Id, models.EventWalletCreated, map[string]string{
		"wallet_id":          w.Id,
		"user_id":            userID,
		"default_account_id": w.Accounts[0].Id,
	}, now)); err != nil {
		return nil, s.Translate("create_wallet", err, "user_id", userID)
	}

	if err := s.store.Commit(ctx, changes); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperrors.Conflict("wallet for user %s already exists", userID)
		}
		return nil, s.Translate("create_wallet", err, "user_id", userID)
	}

	s.logger.Info("wallet created", "wallet_id", w.Id, "user_id", userID)
	return &CreateWalletResult{WalletID: w.Id, DefaultAccountID: w.Accounts[0].Id}, nil
}

// CreateCurrencyAccount opens an account in another currency.
func (s *Service) CreateCurrencyAccount(ctx context.Context, walletID string, c models.Currency) (*models.CurrencyAccount, error) {
	var created models.CurrencyAccount
	err := s.Update(ctx, "create_currency_account", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		acc, err := w.OpenAccount(c, s.now())
		if err != nil {
			return err
		}
		created = *acc
		changes.NewAccounts = append(changes.NewAccounts, created)
		return changes.AddEvent(models.NewEvent(w.Id, models.EventAccountCreated, map[string]string{
			"wallet_id":  w.Id,
			"account_id": acc.Id,
			"currency":   string(c),
		}, s.now()))
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ApplyDeposit credits an account of w and records the Completed deposit in changes.
func ApplyDeposit(w *models.Wallet, changes *storage.Changes, req DepositRequest, now time.Time) (*models.Transaction, error) {
	acc, err := w.Credit(req.AccountID, req.Amount, now)
	if err != nil {
		return nil, err
	}
	tx := models.NewTransaction(acc, req.Amount, models.DirectionIn, models.TypeDeposit, models.StatusCompleted, req.Description, now)
	tx.PaymentReferenceId = optional(req.ReferenceID)
	changes.NewTransactions = append(changes.NewTransactions, tx)
	if err := changes.AddEvent(models.TransactionEvent(models.EventFundsDeposited, &tx, now)); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ApplyDebit debits an account of w and records a Completed outgoing transaction of typ.
func ApplyDebit(w *models.Wallet, changes *storage.Changes, accountID string, amount decimal.Decimal, typ models.TransactionType, orderID, description string, now time.Time) (*models.Transaction, error) {
	acc, err := w.Debit(accountID, amount, now)
	if err != nil {
		return nil, err
	}
	tx := models.NewTransaction(acc, amount, models.DirectionOut, typ, models.StatusCompleted, description, now)
	tx.OrderId = optional(orderID)
	changes.NewTransactions = append(changes.NewTransactions, tx)

	eventType := models.EventFundsWithdrawn
	if typ == models.TypePurchase {
		eventType = models.EventPurchaseCompleted
	}
	if err := changes.AddEvent(models.TransactionEvent(eventType, &tx, now)); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Deposit credits an account and appends a Completed deposit.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*models.Transaction, error) {
	var tx *models.Transaction
	err := s.UpdateByAccount(ctx, "deposit", req.AccountID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		var err error
		tx, err = ApplyDeposit(w, changes, req, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit completed", "transaction_id", tx.Id, "account_id", req.AccountID, "amount", req.Amount.String())
	return tx, nil
}

// Withdraw debits an account. It fails with an insufficient balance error
// rather than letting the balance go negative.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*models.Transaction, error) {
	var tx *models.Transaction
	err := s.UpdateByAccount(ctx, "withdraw", req.AccountID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		var err error
		tx, err = ApplyDebit(w, changes, req.AccountID, req.Amount, models.TypeWithdrawal, req.OrderID, req.Description, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal completed", "transaction_id", tx.Id, "account_id", req.AccountID, "amount", req.Amount.String())
	return tx, nil
}

// Purchase pays for an order from the account balance.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*models.Transaction, error) {
	var tx *models.Transaction
	err := s.UpdateByAccount(ctx, "purchase", req.AccountID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		var err error
		tx, err = ApplyDebit(w, changes, req.AccountID, req.Amount, models.TypePurchase, req.OrderID, req.Description, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase completed", "transaction_id", tx.Id, "account_id", req.AccountID, "order_id", req.OrderID)
	return tx, nil
}

// SetWalletActive activates or deactivates a wallet. Inactive wallets reject every mutation.
func (s *Service) SetWalletActive(ctx context.Context, walletID string, active bool) error {
	return s.Update(ctx, "set_wallet_active", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		if w.IsActive == active {
			return nil
		}
		w.IsActive = active
		w.UpdatedAt = s.now()
		return changes.AddEvent(models.NewEvent(w.Id, models.EventWalletStatus, map[string]any{
			"wallet_id": w.Id,
			"is_active": active,
		}, s.now()))
	})
}
