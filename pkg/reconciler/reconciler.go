// Package reconciler turns gateway callbacks into exactly one payment state
// transition and the wallet effect that goes with it.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedirectURLs are the caller-facing pages a callback ends on.
type RedirectURLs struct {
	Success string
	Failure string
}

// Reconciler processes payment initiation and gateway callbacks.
type Reconciler struct {
	wallets   *wallet.Service
	store     storage.LedgerStore
	logger    *slog.Logger
	redirects RedirectURLs
}

// New creates a Reconciler. Wallet effects go through wallets so they share
// its unit of work and retry policy.
func New(wallets *wallet.Service, store storage.LedgerStore, logger *slog.Logger, redirects RedirectURLs) *Reconciler {
	return &Reconciler{
		wallets:   wallets,
		store:     store,
		logger:    logger,
		redirects: redirects,
	}
}

// InitiatePaymentRequest starts a gateway payment for the caller.
type InitiatePaymentRequest struct {
	UserID       string
	Gateway      Gateway
	Authority    string
	AccountID    string
	Amount       decimal.Decimal
	Currency     models.Currency
	OrderID      string
	Description  string
	IsIntegrated bool
}

// Outcome is the result of handling a callback.
type Outcome struct {
	Status      models.PaymentStatus
	RedirectURL string
	Payment     *models.PaymentTransaction
	// Replayed is set when the payment was already terminal and nothing was applied.
	Replayed bool
}

// InitiatePayment records a Pending payment. Integrated payments also record
// the Pending purchase they will complete.
func (r *Reconciler) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*models.PaymentTransaction, error) {
	if req.Gateway == GatewayUnknown {
		return nil, apperrors.BadRequest("unsupported gateway")
	}
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if req.Currency == "" {
		req.Currency = r.wallets.HomeCurrency()
	}
	if !req.Currency.IsValid() {
		return nil, models.ErrInvalidCurrency
	}
	if req.Authority == "" {
		req.Authority = uuid.NewString()
	} else if _, err := r.store.GetPaymentByAuthority(ctx, req.Authority); err == nil {
		return nil, apperrors.Conflict("payment with authority %s already exists", req.Authority)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, r.wallets.Translate("initiate_payment", err, "authority", req.Authority)
	}

	w, err := r.wallets.GetWalletByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var payment models.PaymentTransaction
	err = r.wallets.Update(ctx, "initiate_payment", w.Id, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		if !w.IsActive {
			return models.ErrWalletInactive
		}
		acc, err := paymentAccount(w, req.AccountID, req.Currency)
		if err != nil {
			return err
		}
		now := r.wallets.Now()
		payment = models.PaymentTransaction{
			Id:           uuid.NewString(),
			Authority:    req.Authority,
			GatewayType:  req.Gateway.Type(),
			Status:       models.PaymentPending,
			UserId:       w.UserId,
			WalletId:     w.Id,
			AccountId:    acc.Id,
			Amount:       req.Amount,
			Currency:     req.Currency,
			OrderId:      optional(req.OrderID),
			Description:  req.Description,
			IsIntegrated: req.IsIntegrated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.IsIntegrated {
			purchase := models.NewTransaction(acc, req.Amount, models.DirectionOut, models.TypePurchase, models.StatusPending, req.Description, now)
			purchase.OrderId = optional(req.OrderID)
			purchase.PaymentReferenceId = &payment.Id
			payment.PurchaseTransactionId = &purchase.Id
			changes.NewTransactions = append(changes.NewTransactions, purchase)
			if err := changes.AddEvent(models.TransactionEvent(models.EventPurchasePending, &purchase, now)); err != nil {
				return err
			}
		}
		p := payment
		changes.NewPayment = &p
		return changes.AddEvent(models.PaymentEvent(models.EventPaymentInitiated, &p, now))
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("payment initiated",
		"payment_id", payment.Id,
		"authority", payment.Authority,
		"gateway", req.Gateway.String(),
		"amount", payment.Amount.String(),
		"integrated", payment.IsIntegrated)
	return &payment, nil
}

func paymentAccount(w *models.Wallet, accountID string, c models.Currency) (*models.CurrencyAccount, error) {
	if accountID == "" {
		acc, ok := w.ActiveAccountFor(c)
		if !ok {
			return nil, models.ErrAccountNotFound
		}
		return acc, nil
	}
	acc, err := w.Account(accountID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive || acc.IsDeleted {
		return nil, models.ErrAccountInactive
	}
	if acc.Currency != c {
		return nil, models.ErrCurrencyMismatch
	}
	return acc, nil
}

// HandleCallback applies a gateway callback. Only structurally invalid
// callbacks and infrastructure failures return an error; a declined payment
// is a normal outcome. A callback for a payment that is already terminal
// changes nothing and returns the same redirect as the first time.
func (r *Reconciler) HandleCallback(ctx context.Context, params url.Values, hint string) (*Outcome, error) {
	cb, err := Normalize(params, hint)
	if err != nil {
		r.logger.Warn("rejected payment callback", "gateway_hint", hint, "error", err)
		return nil, err
	}

	payment, err := r.store.GetPaymentByAuthority(ctx, cb.Authority)
	if err != nil {
		return nil, r.wallets.Translate("payment_callback", err, "authority", cb.Authority)
	}
	if payment.IsTerminal() {
		return r.replay(payment), nil
	}

	var (
		final    *models.PaymentTransaction
		replayed bool
	)
	err = r.wallets.Update(ctx, "payment_callback", payment.WalletId, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		// Reload under the wallet version we are about to commit against; a
		// concurrent duplicate that won the race has made it terminal.
		p, err := r.store.GetPaymentByAuthority(ctx, cb.Authority)
		if err != nil {
			return err
		}
		if p.IsTerminal() {
			final, replayed = p, true
			return nil
		}
		replayed = false
		if err := r.apply(ctx, w, p, cb, changes); err != nil {
			return err
		}
		final = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return r.replay(final), nil
	}

	r.logger.Info("payment callback applied",
		"payment_id", final.Id,
		"authority", final.Authority,
		"gateway", cb.Gateway.String(),
		"status", final.Status)
	return &Outcome{Status: final.Status, RedirectURL: r.RedirectFor(final), Payment: final}, nil
}

func (r *Reconciler) replay(p *models.PaymentTransaction) *Outcome {
	r.logger.Info("payment callback replayed", "payment_id", p.Id, "authority", p.Authority, "status", p.Status)
	return &Outcome{Status: p.Status, RedirectURL: r.RedirectFor(p), Payment: p, Replayed: true}
}

// apply decides the payment's terminal status and stages every write for it.
func (r *Reconciler) apply(ctx context.Context, w *models.Wallet, p *models.PaymentTransaction, cb CanonicalCallback, changes *storage.Changes) error {
	now := r.wallets.Now()
	from := p.Status

	to := models.PaymentSuccessful
	var reason string
	switch {
	case !cb.Succeeded && cb.Canceled:
		to, reason = models.PaymentCanceled, "payment was canceled"
	case !cb.Succeeded:
		to, reason = models.PaymentFailed, "payment was declined by the gateway"
	default:
		reason = mismatch(p, cb)
		if reason != "" {
			to = models.PaymentFailed
		}
	}

	if to == models.PaymentSuccessful {
		if err := r.applySuccess(ctx, w, p, changes, now); err != nil {
			return err
		}
	} else {
		p.FailureReason = &reason
		if p.PurchaseTransactionId != nil {
			txStatus := models.StatusFailed
			if to == models.PaymentCanceled {
				txStatus = models.StatusCanceled
			}
			changes.TransactionUpdates = append(changes.TransactionUpdates, storage.TransactionUpdate{
				TransactionID: *p.PurchaseTransactionId,
				From:          models.StatusPending,
				To:            txStatus,
				At:            now,
			})
		}
	}

	if err := p.TransitionTo(to, now); err != nil {
		return err
	}
	changes.PaymentUpdate = &storage.PaymentUpdate{Payment: p, From: from}

	eventType := models.EventPaymentSucceeded
	if to != models.PaymentSuccessful {
		eventType = models.EventPaymentFailed
	}
	return changes.AddEvent(models.PaymentEvent(eventType, p, now))
}

// applySuccess credits the payment into its account. For an integrated
// payment the credited funds immediately pay for the pending purchase.
func (r *Reconciler) applySuccess(ctx context.Context, w *models.Wallet, p *models.PaymentTransaction, changes *storage.Changes, now time.Time) error {
	deposit, err := wallet.ApplyDeposit(w, changes, wallet.DepositRequest{
		AccountID:   p.AccountId,
		Amount:      p.Amount,
		ReferenceID: p.Authority,
		Description: depositDescription(p),
	}, now)
	if err != nil {
		return err
	}
	p.DepositTransactionId = &deposit.Id

	if p.PurchaseTransactionId == nil {
		return nil
	}
	purchase, err := r.store.GetTransaction(ctx, *p.PurchaseTransactionId)
	if err != nil {
		return err
	}
	if _, err := w.Debit(purchase.AccountId, purchase.Amount, now); err != nil {
		return err
	}
	if err := purchase.TransitionTo(models.StatusCompleted, now); err != nil {
		return err
	}
	changes.TransactionUpdates = append(changes.TransactionUpdates, storage.TransactionUpdate{
		TransactionID: purchase.Id,
		From:          models.StatusPending,
		To:            models.StatusCompleted,
		At:            now,
	})
	return changes.AddEvent(models.TransactionEvent(models.EventPurchaseCompleted, purchase, now))
}

func depositDescription(p *models.PaymentTransaction) string {
	if p.Description != "" {
		return p.Description
	}
	return "gateway payment " + p.Authority
}

// mismatch compares what the gateway reported with what was requested.
// Fields the gateway did not send are not compared.
func mismatch(p *models.PaymentTransaction, cb CanonicalCallback) string {
	switch {
	case cb.Amount != nil && !cb.Amount.Equal(p.Amount):
		return "paid amount does not match the requested amount"
	case cb.Currency != "" && cb.Currency != p.Currency:
		return "paid currency does not match the requested currency"
	case cb.UserID != "" && cb.UserID != p.UserId:
		return "payment belongs to another user"
	}
	return ""
}

// GetPayment returns a payment owned by userID.
func (r *Reconciler) GetPayment(ctx context.Context, userID, paymentID string) (*models.PaymentTransaction, error) {
	p, err := r.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, r.wallets.Translate("get_payment", err, "payment_id", paymentID)
	}
	if p.UserId != userID {
		return nil, apperrors.NotFound("payment %s not found", paymentID)
	}
	return p, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
