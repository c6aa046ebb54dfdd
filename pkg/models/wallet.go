package models

import (
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the root aggregate for one user. It owns its currency accounts
// and the full history of credit grants.
type Wallet struct {
	Id            string
	UserId        string
	IsActive      bool
	CreditLimit   decimal.Decimal
	CreditBalance decimal.Decimal
	CreditDueDate *time.Time
	Accounts      []CurrencyAccount
	CreditHistory []CreditHistory
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CurrencyAccount holds the balance of a wallet in one currency.
type CurrencyAccount struct {
	Id        string
	WalletId  string
	Currency  Currency
	Balance   decimal.Decimal
	IsActive  bool
	IsDeleted bool
	CreatedAt time.Time
}

// NewWallet builds an unsaved wallet with a default account in the home currency.
func NewWallet(userID string, home Currency, creditLimit decimal.Decimal, now time.Time) *Wallet {
	w := &Wallet{
		Id:            uuid.NewString(),
		UserId:        userID,
		IsActive:      true,
		CreditLimit:   creditLimit,
		CreditBalance: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	w.Accounts = append(w.Accounts, CurrencyAccount{
		Id:        uuid.NewString(),
		WalletId:  w.Id,
		Currency:  home,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
	})
	return w
}

// Account returns the account with the given id.
func (w *Wallet) Account(accountID string) (*CurrencyAccount, error) {
	for i := range w.Accounts {
		if w.Accounts[i].Id == accountID && !w.Accounts[i].IsDeleted {
			return &w.Accounts[i], nil
		}
	}
	return nil, ErrAccountNotFound
}

// ActiveAccountFor returns the active account for currency c, if any.
func (w *Wallet) ActiveAccountFor(c Currency) (*CurrencyAccount, bool) {
	for i := range w.Accounts {
		a := &w.Accounts[i]
		if a.Currency == c && a.IsActive && !a.IsDeleted {
			return a, true
		}
	}
	return nil, false
}

// OpenAccount adds an account for currency c.
func (w *Wallet) OpenAccount(c Currency, now time.Time) (*CurrencyAccount, error) {
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if !c.IsValid() {
		return nil, ErrInvalidCurrency
	}
	if _, ok := w.ActiveAccountFor(c); ok {
		return nil, ErrAccountExists
	}
	w.Accounts = append(w.Accounts, CurrencyAccount{
		Id:        uuid.NewString(),
		WalletId:  w.Id,
		Currency:  c,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
	})
	w.UpdatedAt = now
	return &w.Accounts[len(w.Accounts)-1], nil
}

func (w *Wallet) usableAccount(accountID string, amount decimal.Decimal) (*CurrencyAccount, error) {
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	acc, err := w.Account(accountID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, ErrAccountInactive
	}
	return acc, nil
}

// Credit adds amount to the account balance.
func (w *Wallet) Credit(accountID string, amount decimal.Decimal, now time.Time) (*CurrencyAccount, error) {
	acc, err := w.usableAccount(accountID, amount)
	if err != nil {
		return nil, err
	}
	acc.Balance = acc.Balance.Add(amount)
	w.UpdatedAt = now
	return acc, nil
}

// Debit removes amount from the account balance. It never lets the balance go negative.
func (w *Wallet) Debit(accountID string, amount decimal.Decimal, now time.Time) (*CurrencyAccount, error) {
	acc, err := w.usableAccount(accountID, amount)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(acc.Balance) {
		return nil, &apperrors.InsufficientBalanceError{
			Requested: amount,
			Available: acc.Balance,
			Currency:  string(acc.Currency),
		}
	}
	acc.Balance = acc.Balance.Sub(amount)
	w.UpdatedAt = now
	return acc, nil
}

// OutstandingCredit returns the grant that is Active or Overdue, if any.
func (w *Wallet) OutstandingCredit() *CreditHistory {
	for i := range w.CreditHistory {
		if w.CreditHistory[i].IsOutstanding() {
			return &w.CreditHistory[i]
		}
	}
	return nil
}

// GrantCredit records a new credit grant.
func (w *Wallet) GrantCredit(amount decimal.Decimal, dueDate time.Time, description string, now time.Time) (*CreditHistory, error) {
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !dueDate.After(now) {
		return nil, ErrDueDateNotInFuture
	}
	if w.OutstandingCredit() != nil {
		return nil, ErrCreditOutstanding
	}
	if w.CreditBalance.Add(amount).GreaterThan(w.CreditLimit) {
		return nil, ErrCreditLimitExceeded
	}

	w.CreditHistory = append(w.CreditHistory, CreditHistory{
		Id:          uuid.NewString(),
		WalletId:    w.Id,
		Amount:      amount,
		GrantDate:   now,
		DueDate:     dueDate,
		Status:      CreditActive,
		Description: description,
	})
	w.CreditBalance = w.CreditBalance.Add(amount)
	due := dueDate
	w.CreditDueDate = &due
	w.UpdatedAt = now
	return &w.CreditHistory[len(w.CreditHistory)-1], nil
}

// SettleCredit settles the outstanding grant and clears the wallet's credit
// position when nothing else is outstanding.
func (w *Wallet) SettleCredit(settlementTransactionID string, now time.Time) (*CreditHistory, error) {
	grant := w.OutstandingCredit()
	if grant == nil {
		if w.lastGrantSettled() {
			return nil, ErrCreditAlreadySettled
		}
		return nil, ErrNoActiveCredit
	}
	if err := grant.Settle(settlementTransactionID, now); err != nil {
		return nil, err
	}
	if w.OutstandingCredit() == nil {
		w.CreditBalance = decimal.Zero
		w.CreditDueDate = nil
	}
	w.UpdatedAt = now
	return grant, nil
}

func (w *Wallet) lastGrantSettled() bool {
	n := len(w.CreditHistory)
	return n > 0 && w.CreditHistory[n-1].Status == CreditSettled
}

// MarkCreditOverdue moves the Active grant to Overdue if its due date has passed.
// It returns a nil grant when the grant is not yet due.
func (w *Wallet) MarkCreditOverdue(now time.Time) (*CreditHistory, error) {
	grant := w.OutstandingCredit()
	if grant == nil {
		return nil, ErrNoActiveCredit
	}
	if !grant.DueDate.Before(now) {
		return nil, nil
	}
	if err := grant.MarkAsOverdue(); err != nil {
		return nil, err
	}
	w.UpdatedAt = now
	return grant, nil
}

// SetCreditLimit changes the limit. It cannot drop below the outstanding balance.
func (w *Wallet) SetCreditLimit(limit decimal.Decimal, now time.Time) error {
	if limit.IsNegative() || limit.LessThan(w.CreditBalance) {
		return ErrInvalidCreditLimit
	}
	w.CreditLimit = limit
	w.UpdatedAt = now
	return nil
}

// Clone returns a deep copy, so callers can mutate it without touching shared state.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.Accounts = append([]CurrencyAccount(nil), w.Accounts...)
	c.CreditHistory = make([]CreditHistory, len(w.CreditHistory))
	for i, h := range w.CreditHistory {
		if h.SettlementDate != nil {
			d := *h.SettlementDate
			h.SettlementDate = &d
		}
		if h.SettlementTransactionId != nil {
			id := *h.SettlementTransactionId
			h.SettlementTransactionId = &id
		}
		c.CreditHistory[i] = h
	}
	if w.CreditDueDate != nil {
		d := *w.CreditDueDate
		c.CreditDueDate = &d
	}
	return &c
}
