// Package wallet runs balance and credit operations against the Wallet aggregate.
//
// Every mutation follows the same unit of work: load the wallet, check the
// domain rules, mutate it in memory, then commit the wallet together with its
// new ledger rows and outbox events in one conditional write. A version
// conflict reloads and tries again.
package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// Options configures a Service.
type Options struct {
	HomeCurrency       models.Currency
	DefaultCreditLimit decimal.Decimal
	CommitAttempts     int
	Now                func() time.Time
}

// Service implements the wallet operations.
type Service struct {
	store              storage.LedgerStore
	logger             *slog.Logger
	home               models.Currency
	defaultCreditLimit decimal.Decimal
	attempts           int
	now                func() time.Time
}

// NewService creates a new Service.
func NewService(store storage.LedgerStore, logger *slog.Logger, opts Options) *Service {
	if opts.HomeCurrency == "" {
		opts.HomeCurrency = models.HomeCurrency
	}
	if opts.CommitAttempts < 1 {
		opts.CommitAttempts = storage.DefaultCommitAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:              store,
		logger:             logger,
		home:               opts.HomeCurrency,
		defaultCreditLimit: opts.DefaultCreditLimit,
		attempts:           opts.CommitAttempts,
		now:                opts.Now,
	}
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// HomeCurrency returns the currency of default accounts.
func (s *Service) HomeCurrency() models.Currency { return s.home }

// MutateFunc changes a loaded wallet and records what must be written with it.
// Leaving changes empty skips the commit.
type MutateFunc func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error

// Update runs fn against the wallet with walletID and commits the result.
// fn is re-run against a fresh copy whenever the commit conflicts.
func (s *Service) Update(ctx context.Context, op, walletID string, fn MutateFunc) error {
	return s.update(ctx, op, func(ctx context.Context) (*models.Wallet, error) {
		return s.store.GetWallet(ctx, walletID)
	}, fn, slog.String("wallet_id", walletID))
}

// UpdateByAccount is Update for the wallet that owns accountID.
func (s *Service) UpdateByAccount(ctx context.Context, op, accountID string, fn MutateFunc) error {
	return s.update(ctx, op, func(ctx context.Context) (*models.Wallet, error) {
		return s.store.GetWalletByAccount(ctx, accountID)
	}, fn, slog.String("account_id", accountID))
}

func (s *Service) update(ctx context.Context, op string, load func(context.Context) (*models.Wallet, error), fn MutateFunc, attrs ...any) error {
	err := storage.RetryOnConflict(ctx, s.attempts, func(ctx context.Context) error {
		w, err := load(ctx)
		if err != nil {
			return err
		}
		changes := &storage.Changes{}
		if err := fn(ctx, w, changes); err != nil {
			return err
		}
		if changes.IsEmpty() {
			return nil
		}
		changes.Wallet = w
		return s.store.Commit(ctx, changes)
	})
	return s.Translate(op, err, attrs...)
}

// Translate turns storage failures into caller-facing errors. Domain errors
// pass through; infrastructure errors are logged and hidden.
func (s *Service) Translate(op string, err error, attrs ...any) error {
	if err == nil {
		return nil
	}
	if k := apperrors.KindOf(err); k != apperrors.KindInternal {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &apperrors.Error{Kind: apperrors.KindNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, storage.ErrConflict):
		s.logger.Warn("commit conflict retries exhausted", append([]any{"operation", op}, attrs...)...)
		return &apperrors.Error{Kind: apperrors.KindConflict, Message: "wallet was modified concurrently, please retry", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.logger.Error("wallet operation failed", append([]any{"operation", op, "error", err}, attrs...)...)
	return apperrors.Internal("wallet operation failed", err)
}
