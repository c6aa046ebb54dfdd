// Package refund computes refundability from the ledger and issues refunds
// without ever refunding more than was paid.
package refund

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/shopspring/decimal"
)

// DefaultWindow is how long after the original charge a refund needs no admin approval.
const DefaultWindow = 30 * 24 * time.Hour

// Engine checks and executes refunds.
type Engine struct {
	wallets *wallet.Service
	store   storage.LedgerStore
	logger  *slog.Logger
	window  time.Duration
}

// New creates an Engine. A window of zero uses DefaultWindow.
func New(wallets *wallet.Service, store storage.LedgerStore, logger *slog.Logger, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{wallets: wallets, store: store, logger: logger, window: window}
}

// Request asks for a refund of a transaction or of a payment. Amount nil
// refunds everything that is still refundable.
type Request struct {
	UserID          string
	TransactionID   string
	PaymentID       string
	Amount          *decimal.Decimal
	Reason          string
	IsAdminApproved bool
}

// Result is an issued refund and the source's refundability after it.
type Result struct {
	Refund        *models.Transaction
	Refundability models.RefundabilityResult
}

// source is the ledger row a refund is booked against, plus the payment it
// came from when the caller named one.
type source struct {
	tx      *models.Transaction
	payment *models.PaymentTransaction
}

// CheckRefundability reports how much of a transaction or payment can still
// be refunded. Exactly one of transactionID and paymentID is used; the
// transaction wins if both are set.
func (e *Engine) CheckRefundability(ctx context.Context, userID, transactionID, paymentID string) (*models.RefundabilityResult, error) {
	src, res, err := e.resolve(ctx, userID, transactionID, paymentID)
	if err != nil {
		return nil, e.wallets.Translate("check_refundability", err, "transaction_id", transactionID, "payment_id", paymentID)
	}
	if src.tx != nil {
		evaluate(src, res)
	}
	return res, nil
}

// Refund credits the originating account and appends a Completed refund
// transaction. When the cumulative refunds reach the original amount the
// source is marked Refunded. The source's refunded amount is advanced with a
// conditional write, so concurrent refunds of one source cannot both pass.
func (e *Engine) Refund(ctx context.Context, req Request) (*Result, error) {
	src, _, err := e.resolve(ctx, req.UserID, req.TransactionID, req.PaymentID)
	if err != nil {
		return nil, e.wallets.Translate("refund", err, "transaction_id", req.TransactionID, "payment_id", req.PaymentID)
	}
	if src.tx == nil {
		return nil, apperrors.BadRequest("payment %s is not refundable: only integrated purchase payments can be refunded", req.PaymentID)
	}

	var result Result
	err = e.wallets.Update(ctx, "refund", src.tx.WalletId, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		src, res, err := e.resolve(ctx, req.UserID, req.TransactionID, req.PaymentID)
		if err != nil {
			return err
		}
		evaluate(src, res)
		if !res.IsRefundable {
			return apperrors.BadRequest("not refundable: %s", res.Reason)
		}

		amount := res.RefundableAmount
		if req.Amount != nil {
			amount = *req.Amount
		}
		if !amount.IsPositive() {
			return models.ErrInvalidAmount
		}
		if amount.GreaterThan(res.RefundableAmount) {
			return apperrors.BadRequest("refund amount %s exceeds refundable amount %s", amount, res.RefundableAmount)
		}

		now := e.wallets.Now()
		if now.Sub(src.tx.TransactionDate) > e.window && !req.IsAdminApproved {
			return apperrors.BadRequest("refund window of %s has passed; admin approval is required", e.window)
		}

		acc, err := w.Credit(src.tx.AccountId, amount, now)
		if err != nil {
			return err
		}
		refund := models.NewTransaction(acc, amount, models.DirectionIn, models.TypeRefund, models.StatusCompleted, refundDescription(req.Reason, src.tx), now)
		refund.RelatedTransactionId = &src.tx.Id
		refund.OrderId = src.tx.OrderId
		changes.NewTransactions = append(changes.NewTransactions, refund)

		update := storage.TransactionUpdate{
			TransactionID: src.tx.Id,
			From:          models.StatusCompleted,
			To:            models.StatusCompleted,
			At:            now,
			Refunded: &storage.AmountChange{
				From: res.AlreadyRefundedAmount,
				To:   res.AlreadyRefundedAmount.Add(amount),
			},
		}
		res.AlreadyRefundedAmount = update.Refunded.To
		res.RefundableAmount = res.RefundableAmount.Sub(amount)
		if res.RefundableAmount.IsZero() {
			res.IsRefundable = false
			res.Reason = "fully refunded"
			update.To = models.StatusRefunded
			if src.payment != nil {
				from := src.payment.Status
				if err := src.payment.TransitionTo(models.PaymentRefunded, now); err != nil {
					return err
				}
				changes.PaymentUpdate = &storage.PaymentUpdate{Payment: src.payment, From: from}
			}
		}
		changes.TransactionUpdates = append(changes.TransactionUpdates, update)

		result = Result{Refund: &refund, Refundability: *res}
		return changes.AddEvent(models.TransactionEvent(models.EventRefundIssued, &refund, now))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("refund issued",
		"refund_id", result.Refund.Id,
		"source_id", result.Refundability.SourceId,
		"amount", result.Refund.Amount.String(),
		"remaining", result.Refundability.RefundableAmount.String())
	return &result, nil
}

// ListRefunds returns the refunds booked against a transaction. The list is
// read from a secondary index and may trail a refund that just committed;
// refundability never depends on it.
func (e *Engine) ListRefunds(ctx context.Context, userID, transactionID string) ([]models.Transaction, error) {
	if _, _, err := e.resolve(ctx, userID, transactionID, ""); err != nil {
		return nil, e.wallets.Translate("list_refunds", err, "transaction_id", transactionID)
	}
	related, err := e.store.ListTransactionsByRelated(ctx, transactionID)
	if err != nil {
		return nil, e.wallets.Translate("list_refunds", err, "transaction_id", transactionID)
	}
	refunds := make([]models.Transaction, 0, len(related))
	for _, t := range related {
		if t.Type == models.TypeRefund {
			refunds = append(refunds, t)
		}
	}
	return refunds, nil
}

// resolve loads the refund source and checks it belongs to userID. For a
// payment that carries no purchase the returned source has no transaction
// and the result already explains why.
func (e *Engine) resolve(ctx context.Context, userID, transactionID, paymentID string) (source, *models.RefundabilityResult, error) {
	switch {
	case transactionID != "":
		tx, err := e.store.GetTransaction(ctx, transactionID)
		if err != nil {
			return source{}, nil, err
		}
		w, err := e.store.GetWallet(ctx, tx.WalletId)
		if err != nil {
			return source{}, nil, err
		}
		if w.UserId != userID {
			return source{}, nil, apperrors.NotFound("transaction %s not found", transactionID)
		}
		return source{tx: tx}, &models.RefundabilityResult{
			SourceId:       tx.Id,
			SourceKind:     models.RefundSourceTransaction,
			TransactionId:  tx.Id,
			OriginalAmount: tx.Amount,
			Currency:       tx.Currency,
		}, nil

	case paymentID != "":
		p, err := e.store.GetPayment(ctx, paymentID)
		if err != nil {
			return source{}, nil, err
		}
		if p.UserId != userID {
			return source{}, nil, apperrors.NotFound("payment %s not found", paymentID)
		}
		res := &models.RefundabilityResult{
			SourceId:       p.Id,
			SourceKind:     models.RefundSourcePayment,
			OriginalAmount: p.Amount,
			Currency:       p.Currency,
		}
		if !p.IsIntegrated || p.PurchaseTransactionId == nil {
			res.RefundableAmount = decimal.Zero
			res.Reason = "deposit payments are not refundable"
			return source{payment: p}, res, nil
		}
		tx, err := e.store.GetTransaction(ctx, *p.PurchaseTransactionId)
		if err != nil {
			return source{}, nil, err
		}
		res.TransactionId = tx.Id
		return source{tx: tx, payment: p}, res, nil
	}
	return source{}, nil, apperrors.BadRequest("either transactionId or paymentId is required")
}

// evaluate fills the refunded and refundable amounts from the source's running
// refund total, which every refund advances under a condition on its old value.
func evaluate(src source, res *models.RefundabilityResult) {
	refunded := src.tx.RefundedAmount
	res.AlreadyRefundedAmount = refunded
	res.RefundableAmount = decimal.Max(src.tx.Amount.Sub(refunded), decimal.Zero)

	switch {
	case src.tx.Direction != models.DirectionOut || (src.tx.Type != models.TypePurchase && src.tx.Type != models.TypeFee):
		res.Reason = "only purchases and fees can be refunded"
	case src.tx.Status == models.StatusRefunded || (src.tx.Status == models.StatusCompleted && res.RefundableAmount.IsZero()):
		res.Reason = "fully refunded"
	case src.tx.Status != models.StatusCompleted:
		res.Reason = "transaction is " + string(src.tx.Status)
	case src.payment != nil && src.payment.Status != models.PaymentSuccessful:
		res.Reason = "payment is " + string(src.payment.Status)
	default:
		res.IsRefundable = true
		return
	}
	res.IsRefundable = false
}

func refundDescription(reason string, tx *models.Transaction) string {
	if reason != "" {
		return reason
	}
	return "refund of " + tx.Id
}
