package reconciler

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	wallets   *wallet.Service
	rec       *Reconciler
	walletID  string
	accountID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wallets := wallet.NewService(store, logger, wallet.Options{Now: func() time.Time { return testNow }})
	created, err := wallets.CreateWallet(context.Background(), "user-1")
	require.NoError(t, err)
	return &fixture{
		store:   store,
		wallets: wallets,
		rec: New(wallets, store, logger, RedirectURLs{
			Success: "https://shop.example/payment/success",
			Failure: "https://shop.example/payment/failure",
		}),
		walletID:  created.WalletID,
		accountID: created.DefaultAccountID,
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), f.walletID)
	require.NoError(t, err)
	acc, err := w.Account(f.accountID)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) initiate(t *testing.T, authority string, amount int64, integrated bool) *models.PaymentTransaction {
	t.Helper()
	p, err := f.rec.InitiatePayment(context.Background(), InitiatePaymentRequest{
		UserID:       "user-1",
		Gateway:      GatewayZarinpal,
		Authority:    authority,
		Amount:       decimal.NewFromInt(amount),
		OrderID:      "order-1",
		IsIntegrated: integrated,
	})
	require.NoError(t, err)
	return p
}

func TestHandleCallbackSuccessAndReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initiate(t, "X", 1000, false)
	params := url.Values{"Authority": {"X"}, "Status": {"OK"}, "Amount": {"1000"}, "userId": {"user-1"}}

	first, err := f.rec.HandleCallback(ctx, params, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccessful, first.Status)
	assert.False(t, first.Replayed)
	require.NotNil(t, first.Payment.DepositTransactionId)
	assert.True(t, strings.HasPrefix(first.RedirectURL, "https://shop.example/payment/success?"))
	assert.Contains(t, first.RedirectURL, "authority=X")
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(1000)))

	second, err := f.rec.HandleCallback(ctx, params, "")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, models.PaymentSuccessful, second.Status)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(1000)))

	txs, err := f.wallets.ListTransactions(ctx, f.walletID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TypeDeposit, txs[0].Type)
	assert.Equal(t, "X", *txs[0].PaymentReferenceId)
}

func TestHandleCallbackConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initiate(t, "dup", 250, false)
	params := url.Values{"trackId": {"dup"}, "success": {"1"}}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		replayed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.rec.HandleCallback(ctx, params, "zibal")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, models.PaymentSuccessful, out.Status)
			if out.Replayed {
				mu.Lock()
				replayed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, replayed)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(250)))
}

func TestHandleCallbackFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Declined", func(t *testing.T) {
		f := newFixture(t)
		f.initiate(t, "A1", 500, false)

		out, err := f.rec.HandleCallback(ctx, url.Values{"Authority": {"A1"}, "Status": {"NOK"}}, "")

		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, out.Status)
		assert.Contains(t, out.RedirectURL, "https://shop.example/payment/failure?")
		assert.Contains(t, out.RedirectURL, "message=")
		assert.True(t, f.balance(t).IsZero())
	})

	t.Run("Canceled", func(t *testing.T) {
		f := newFixture(t)
		f.initiate(t, "77", 500, false)

		out, err := f.rec.HandleCallback(ctx, url.Values{"trackId": {"77"}, "success": {"0"}, "status": {"3"}}, "")

		require.NoError(t, err)
		assert.Equal(t, models.PaymentCanceled, out.Status)
	})

	t.Run("Amount Mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.initiate(t, "A2", 500, false)

		out, err := f.rec.HandleCallback(ctx, url.Values{"Authority": {"A2"}, "Status": {"OK"}, "Amount": {"5"}}, "")

		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, out.Status)
		require.NotNil(t, out.Payment.FailureReason)
		assert.Contains(t, *out.Payment.FailureReason, "amount")
		assert.True(t, f.balance(t).IsZero())
	})

	t.Run("Unknown Authority", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.rec.HandleCallback(ctx, url.Values{"Authority": {"nope"}, "Status": {"OK"}}, "")

		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("Invalid Shape", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.rec.HandleCallback(ctx, url.Values{"foo": {"bar"}}, "")

		assert.ErrorIs(t, err, ErrInvalidCallback)
	})

	t.Run("Wallet Effect Fails Leaves Pending", func(t *testing.T) {
		f := newFixture(t)
		f.initiate(t, "A3", 300, false)
		require.NoError(t, f.wallets.SetWalletActive(ctx, f.walletID, false))
		params := url.Values{"Authority": {"A3"}, "Status": {"OK"}}

		_, err := f.rec.HandleCallback(ctx, params, "")
		assert.ErrorIs(t, err, models.ErrWalletInactive)

		p, err := f.store.GetPaymentByAuthority(ctx, "A3")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, p.Status)

		require.NoError(t, f.wallets.SetWalletActive(ctx, f.walletID, true))
		out, err := f.rec.HandleCallback(ctx, params, "")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentSuccessful, out.Status)
		assert.True(t, f.balance(t).Equal(decimal.NewFromInt(300)))
	})
}

func TestIntegratedPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		p := f.initiate(t, "I1", 200, true)
		require.NotNil(t, p.PurchaseTransactionId)

		purchase, err := f.store.GetTransaction(ctx, *p.PurchaseTransactionId)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, purchase.Status)

		out, err := f.rec.HandleCallback(ctx, url.Values{"Authority": {"I1"}, "Status": {"OK"}, "integrated": {"true"}}, "")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentSuccessful, out.Status)

		purchase, err = f.store.GetTransaction(ctx, *p.PurchaseTransactionId)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, purchase.Status)
		assert.True(t, f.balance(t).IsZero())
	})

	t.Run("Failure", func(t *testing.T) {
		f := newFixture(t)
		p := f.initiate(t, "I2", 200, true)

		_, err := f.rec.HandleCallback(ctx, url.Values{"Authority": {"I2"}, "Status": {"NOK"}}, "")
		require.NoError(t, err)

		purchase, err := f.store.GetTransaction(ctx, *p.PurchaseTransactionId)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, purchase.Status)
	})
}

func TestInitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate Authority", func(t *testing.T) {
		f := newFixture(t)
		f.initiate(t, "D1", 10, false)

		_, err := f.rec.InitiatePayment(ctx, InitiatePaymentRequest{UserID: "user-1", Gateway: GatewaySandbox, Authority: "D1", Amount: decimal.NewFromInt(10)})

		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("Generated Authority", func(t *testing.T) {
		f := newFixture(t)

		p, err := f.rec.InitiatePayment(ctx, InitiatePaymentRequest{UserID: "user-1", Gateway: GatewaySandbox, Amount: decimal.NewFromInt(10)})

		require.NoError(t, err)
		assert.NotEmpty(t, p.Authority)
		assert.Equal(t, models.GatewaySandbox, p.GatewayType)
		assert.Equal(t, f.accountID, p.AccountId)
	})

	t.Run("No Account For Currency", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.rec.InitiatePayment(ctx, InitiatePaymentRequest{UserID: "user-1", Gateway: GatewayZibal, Amount: decimal.NewFromInt(10), Currency: models.USD})

		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("Unknown Gateway", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.rec.InitiatePayment(ctx, InitiatePaymentRequest{UserID: "user-1", Amount: decimal.NewFromInt(10)})

		assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	})
}

func TestGetPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.initiate(t, "G1", 10, false)

	got, err := f.rec.GetPayment(ctx, "user-1", p.Id)
	require.NoError(t, err)
	assert.Equal(t, "G1", got.Authority)

	_, err = f.rec.GetPayment(ctx, "someone-else", p.Id)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestFailureRedirect(t *testing.T) {
	f := newFixture(t)

	got := f.rec.FailureRedirect("bad callback")

	assert.Equal(t, "https://shop.example/payment/failure?message=bad+callback", got)
}
