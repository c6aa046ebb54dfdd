package wallet

import (
	"context"
	"math"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// CreditStatus is a read-side view of a wallet's credit position.
type CreditStatus struct {
	HasActiveCredit bool
	IsOverdue       bool
	CreditLimit     decimal.Decimal
	CreditBalance   decimal.Decimal
	DueDate         *time.Time
	DaysRemaining   int
}

// CheckCreditDueDate reports whether the wallet's credit is overdue at now.
// It does not change any state; the sweeper owns the Overdue transition.
func CheckCreditDueDate(w *models.Wallet, now time.Time) CreditStatus {
	status := CreditStatus{
		CreditLimit:   w.CreditLimit,
		CreditBalance: w.CreditBalance,
		DueDate:       w.CreditDueDate,
	}
	grant := w.OutstandingCredit()
	if grant == nil || w.CreditDueDate == nil {
		return status
	}
	status.HasActiveCredit = true
	status.IsOverdue = grant.Status == models.CreditOverdue || now.After(*w.CreditDueDate)
	if !status.IsOverdue {
		status.DaysRemaining = int(math.Ceil(w.CreditDueDate.Sub(now).Hours() / 24))
	}
	return status
}

// AssignCredit grants credit due at dueDate. Only one grant may be outstanding.
func (s *Service) AssignCredit(ctx context.Context, walletID string, amount decimal.Decimal, dueDate time.Time, description string) (*models.CreditHistory, error) {
	var grant models.CreditHistory
	err := s.Update(ctx, "assign_credit", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		now := s.now()
		g, err := w.GrantCredit(amount, dueDate, description, now)
		if err != nil {
			return err
		}
		grant = *g
		return changes.AddEvent(models.CreditEvent(models.EventCreditAssigned, g, now))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("credit assigned", "wallet_id", walletID, "credit_id", grant.Id, "amount", amount.String(), "due_date", dueDate)
	return &grant, nil
}

// SettleCredit marks the Active grant as settled by settlementTransactionID.
// Settling an already settled grant is rejected and changes nothing. An
// Overdue grant can only be closed by RepayCredit.
func (s *Service) SettleCredit(ctx context.Context, walletID, settlementTransactionID string) (*models.CreditHistory, error) {
	if settlementTransactionID == "" {
		return nil, apperrors.BadRequest("settlement transaction ID is required")
	}
	var grant models.CreditHistory
	err := s.Update(ctx, "settle_credit", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		if !w.IsActive {
			return models.ErrWalletInactive
		}
		if g := w.OutstandingCredit(); g != nil && g.Status != models.CreditActive {
			return models.ErrCreditNotActive
		}
		now := s.now()
		g, err := w.SettleCredit(settlementTransactionID, now)
		if err != nil {
			return err
		}
		grant = *g
		return changes.AddEvent(models.CreditEvent(models.EventCreditSettled, g, now))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("credit settled", "wallet_id", walletID, "credit_id", grant.Id, "settlement_transaction_id", settlementTransactionID)
	return &grant, nil
}

// RepayCredit pays the outstanding credit from an account in the same commit
// that settles the grant. The debit is recorded as a CreditSettlement transaction.
func (s *Service) RepayCredit(ctx context.Context, accountID, description string) (*models.Transaction, error) {
	var tx *models.Transaction
	err := s.UpdateByAccount(ctx, "repay_credit", accountID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		now := s.now()
		grant := w.OutstandingCredit()
		if grant == nil {
			return models.ErrNoActiveCredit
		}
		acc, err := w.Account(accountID)
		if err != nil {
			return err
		}
		if acc.Currency != s.home {
			return models.ErrCurrencyMismatch
		}
		amount := w.CreditBalance
		tx, err = ApplyDebit(w, changes, accountID, amount, models.TypeCreditSettlement, "", description, now)
		if err != nil {
			return err
		}
		tx.IsCredit = true
		due := grant.DueDate
		tx.DueDate = &due
		changes.NewTransactions[len(changes.NewTransactions)-1] = *tx

		settled, err := w.SettleCredit(tx.Id, now)
		if err != nil {
			return err
		}
		return changes.AddEvent(models.CreditEvent(models.EventCreditSettled, settled, now))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("credit repaid", "transaction_id", tx.Id, "account_id", accountID, "amount", tx.Amount.String())
	return tx, nil
}

// SetCreditLimit changes the wallet's credit limit.
func (s *Service) SetCreditLimit(ctx context.Context, walletID string, limit decimal.Decimal) error {
	return s.Update(ctx, "set_credit_limit", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		now := s.now()
		if err := w.SetCreditLimit(limit, now); err != nil {
			return err
		}
		return changes.AddEvent(models.NewEvent(w.Id, models.EventCreditLimitSet, map[string]string{
			"wallet_id":    w.Id,
			"credit_limit": limit.String(),
		}, now))
	})
}

// CreditStatus loads a wallet and reports its credit position.
func (s *Service) CreditStatus(ctx context.Context, walletID string) (*CreditStatus, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	status := CheckCreditDueDate(w, s.now())
	return &status, nil
}
