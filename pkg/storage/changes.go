package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Committer applies a unit of work atomically.
type Committer interface {
	// Commit writes every part of changes or none of it. It returns ErrConflict
	// when any condition fails. On success the wallet's Version is advanced.
	Commit(ctx context.Context, changes *Changes) error
}

// Changes is one atomic unit of work against the ledger.
type Changes struct {
	// Wallet is saved whole. Version 0 creates it, which fails if the user
	// already has a wallet; otherwise the stored version must equal Version.
	Wallet *models.Wallet

	// NewAccounts are indexed so GetWalletByAccount can find their wallet.
	NewAccounts []models.CurrencyAccount

	NewTransactions    []models.Transaction
	TransactionUpdates []TransactionUpdate

	// NewPayment fails with ErrConflict if its authority is already taken.
	NewPayment    *models.PaymentTransaction
	PaymentUpdate *PaymentUpdate

	Events []models.OutboxEvent
}

// TransactionUpdate moves a stored transaction from one status to another.
// From and To may be equal when only the refunded amount changes.
type TransactionUpdate struct {
	TransactionID string
	From          models.TransactionStatus
	To            models.TransactionStatus
	At            time.Time

	// Refunded, when set, also requires the stored refunded amount to still
	// equal Refunded.From and replaces it with Refunded.To.
	Refunded *AmountChange
}

// AmountChange is a compare-and-set on a stored amount.
type AmountChange struct {
	From decimal.Decimal
	To   decimal.Decimal
}

// PaymentUpdate replaces a stored payment, provided its status is still From.
type PaymentUpdate struct {
	Payment *models.PaymentTransaction
	From    models.PaymentStatus
}

// AddEvent appends ev. It accepts the error of the event constructor so a
// constructor call can be passed straight through.
func (c *Changes) AddEvent(ev models.OutboxEvent, err error) error {
	if err != nil {
		return err
	}
	c.Events = append(c.Events, ev)
	return nil
}

// IsEmpty reports whether there is nothing to write.
func (c *Changes) IsEmpty() bool {
	return c.Wallet == nil && len(c.NewAccounts) == 0 && len(c.NewTransactions) == 0 &&
		len(c.TransactionUpdates) == 0 && c.NewPayment == nil && c.PaymentUpdate == nil && len(c.Events) == 0
}

// DefaultCommitAttempts bounds RetryOnConflict when no attempt count is configured.
const DefaultCommitAttempts = 3

// RetryOnConflict runs fn until it succeeds, fails with something other than
// ErrConflict, or runs out of attempts. fn must reload whatever it mutates.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = DefaultCommitAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
