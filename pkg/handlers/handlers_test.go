package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/currency"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/reconciler"
	"github.com/chris/wallet-ledger/pkg/refund"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/chris/wallet-ledger/pkg/sweeper"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wallets := wallet.NewService(store, logger, wallet.Options{
		DefaultCreditLimit: decimal.NewFromInt(5000),
		Now:                func() time.Time { return testNow },
	})
	h := NewApiHandler(
		wallets,
		currency.NewService(currency.NewStaticRateSource(currency.DefaultRates()), decimal.NewFromFloat(0.01)),
		reconciler.New(wallets, store, logger, reconciler.RedirectURLs{
			Success: "https://shop.example/payment/success",
			Failure: "https://shop.example/payment/failure",
		}),
		refund.New(wallets, store, logger, refund.DefaultWindow),
		sweeper.New(store, wallets, nil, logger, time.Hour),
		logger,
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

type caller struct {
	userID string
	roles  string
}

func (c caller) do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if c.userID != "" {
		req.Header.Set(middleware.UserIDHeader, c.userID)
	}
	if c.roles != "" {
		req.Header.Set(middleware.UserRolesHeader, c.roles)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func createWallet(t *testing.T, router http.Handler, c caller) mapping.CreatedWallet {
	t.Helper()
	rr := c.do(t, router, http.MethodPost, "/wallets", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[mapping.CreatedWallet](t, rr)
}

func TestWalletLifecycle(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	created := createWallet(t, router, alice)

	rr := alice.do(t, router, http.MethodPost, "/wallets", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/deposit", map[string]any{"amount": 1000})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decodeBody[mapping.Transaction](t, rr)
	assert.Equal(t, models.TypeDeposit, tx.Type)
	assert.True(t, decimal.NewFromInt(1000).Equal(tx.Amount))

	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/purchase", map[string]any{"amount": 400, "orderId": "order-7"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = alice.do(t, router, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	wl := decodeBody[mapping.Wallet](t, rr)
	assert.Equal(t, created.WalletId, wl.Id)
	require.Len(t, wl.Accounts, 1)
	assert.True(t, decimal.NewFromInt(600).Equal(wl.Accounts[0].Balance))

	rr = alice.do(t, router, http.MethodGet, "/wallets/"+created.WalletId+"/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	txs := decodeBody[[]mapping.Transaction](t, rr)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TypePurchase, txs[0].Type)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	created := createWallet(t, router, alice)

	rr := alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/withdraw", map[string]any{"amount": 50})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody[errorResponse](t, rr)
	assert.Equal(t, apperrors.KindInsufficientBalance, resp.Kind)
	require.NotNil(t, resp.Requested)
	require.NotNil(t, resp.Available)
	assert.True(t, decimal.NewFromInt(50).Equal(*resp.Requested))
	assert.True(t, resp.Available.IsZero())
	assert.Equal(t, "IRR", resp.Currency)
}

func TestRequestValidation(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	created := createWallet(t, router, alice)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"zero amount", http.MethodPost, "/accounts/" + created.DefaultAccountId + "/deposit", map[string]any{"amount": 0}, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/accounts/" + created.DefaultAccountId + "/deposit", map[string]any{"amount": -5}, http.StatusBadRequest},
		{"account id not a uuid", http.MethodPost, "/accounts/nope/deposit", map[string]any{"amount": 5}, http.StatusBadRequest},
		{"unknown currency", http.MethodPost, "/wallets/" + created.WalletId + "/accounts", map[string]any{"currency": "XYZ"}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/wallets/" + created.WalletId + "/transactions?limit=many", nil, http.StatusBadRequest},
		{"unknown gateway", http.MethodPost, "/payments", map[string]any{"gateway": "paypal", "amount": 10}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := alice.do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestIdentityAndOwnership(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	bob := caller{userID: "bob"}
	admin := caller{userID: "ops", roles: "Admin"}
	created := createWallet(t, router, alice)

	rr := caller{}.do(t, router, http.MethodGet, "/wallet", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = bob.do(t, router, http.MethodGet, "/wallets/"+created.WalletId, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = bob.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/deposit", map[string]any{"amount": 5})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = admin.do(t, router, http.MethodGet, "/wallets/"+created.WalletId, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = alice.do(t, router, http.MethodPut, "/admin/wallets/"+created.WalletId+"/status", map[string]any{"isActive": false})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = admin.do(t, router, http.MethodPut, "/admin/wallets/"+created.WalletId+"/status", map[string]any{"isActive": false})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/deposit", map[string]any{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreditRoutes(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	admin := caller{userID: "ops", roles: "admin"}
	created := createWallet(t, router, alice)

	rr := alice.do(t, router, http.MethodPost, "/wallets/"+created.WalletId+"/credit", map[string]any{
		"amount":  2000,
		"dueDate": testNow.Add(10 * 24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	grant := decodeBody[mapping.CreditGrant](t, rr)
	assert.Equal(t, models.CreditActive, grant.Status)

	rr = alice.do(t, router, http.MethodGet, "/wallets/"+created.WalletId+"/credit/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	status := decodeBody[mapping.CreditStatus](t, rr)
	assert.True(t, status.HasActiveCredit)
	assert.False(t, status.IsOverdue)
	assert.Equal(t, 10, status.DaysRemaining)

	rr = alice.do(t, router, http.MethodPost, "/wallets/"+created.WalletId+"/credit", map[string]any{
		"amount":  9000,
		"dueDate": testNow.Add(24 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/credit/repay", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apperrors.KindInsufficientBalance, decodeBody[errorResponse](t, rr).Kind)

	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/deposit", map[string]any{"amount": 2500})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/credit/repay", map[string]any{})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	repay := decodeBody[mapping.Transaction](t, rr)
	assert.True(t, decimal.NewFromInt(2000).Equal(repay.Amount))

	rr = admin.do(t, router, http.MethodPut, "/admin/wallets/"+created.WalletId+"/credit/limit", map[string]any{"creditLimit": 100})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = admin.do(t, router, http.MethodPost, "/admin/sweeps/credit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sweep := decodeBody[mapping.SweepResult](t, rr)
	assert.Zero(t, sweep.MarkedOverdue)
}

func TestPaymentCallbackRoute(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	created := createWallet(t, router, alice)

	rr := alice.do(t, router, http.MethodPost, "/payments", map[string]any{
		"gateway":   "zarinpal",
		"authority": "A-1",
		"amount":    1000,
		"orderId":   "order-1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	payment := decodeBody[mapping.Payment](t, rr)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, created.DefaultAccountId, payment.AccountId)

	q := url.Values{"Authority": {"A-1"}, "Status": {"OK"}, "Amount": {"1000"}, "userId": {"alice"}}
	for i := 0; i < 2; i++ {
		rr = caller{}.do(t, router, http.MethodGet, "/payments/callback?"+q.Encode(), nil)
		require.Equal(t, http.StatusFound, rr.Code)
		loc, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/payment/success", loc.Path)
		assert.Equal(t, "A-1", loc.Query().Get("authority"))
	}

	rr = alice.do(t, router, http.MethodGet, "/payments/"+payment.Id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.PaymentSuccessful, decodeBody[mapping.Payment](t, rr).Status)

	rr = caller{userID: "bob"}.do(t, router, http.MethodGet, "/payments/"+payment.Id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = alice.do(t, router, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decimal.NewFromInt(1000).Equal(decodeBody[mapping.Wallet](t, rr).Accounts[0].Balance))
}

func TestPaymentCallbackFailures(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name  string
		query url.Values
	}{
		{"no authority", url.Values{"Status": {"OK"}}},
		{"unknown authority", url.Values{"Authority": {"missing"}, "Status": {"OK"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := caller{}.do(t, router, http.MethodGet, "/payments/callback?"+tt.query.Encode(), nil)
			require.Equal(t, http.StatusFound, rr.Code)
			loc, err := url.Parse(rr.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/payment/failure", loc.Path)
			assert.NotEmpty(t, loc.Query().Get("message"))
		})
	}
}

func TestRefundRoutes(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{userID: "alice"}
	created := createWallet(t, router, alice)

	rr := alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/deposit", map[string]any{"amount": 1000})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = alice.do(t, router, http.MethodPost, "/accounts/"+created.DefaultAccountId+"/purchase", map[string]any{"amount": 400})
	require.Equal(t, http.StatusCreated, rr.Code)
	purchase := decodeBody[mapping.Transaction](t, rr)

	rr = alice.do(t, router, http.MethodGet, "/refunds/check?transactionId="+purchase.Id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	check := decodeBody[mapping.Refundability](t, rr)
	assert.True(t, check.IsRefundable)
	assert.True(t, decimal.NewFromInt(400).Equal(check.RefundableAmount))

	rr = alice.do(t, router, http.MethodPost, "/refunds", map[string]any{"transactionId": purchase.Id, "amount": 500})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = alice.do(t, router, http.MethodPost, "/refunds", map[string]any{"transactionId": purchase.Id, "amount": 150, "reason": "damaged"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decodeBody[mapping.Refund](t, rr)
	assert.Equal(t, models.TypeRefund, res.Refund.Type)
	assert.True(t, decimal.NewFromInt(250).Equal(res.Refundability.RefundableAmount))

	rr = alice.do(t, router, http.MethodPost, "/refunds", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = alice.do(t, router, http.MethodGet, "/transactions/"+purchase.Id+"/refunds", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	refunds := decodeBody[[]mapping.Transaction](t, rr)
	require.Len(t, refunds, 1)
	assert.Equal(t, res.Refund.Id, refunds[0].Id)

	rr = caller{userID: "bob"}.do(t, router, http.MethodGet, "/transactions/"+purchase.Id+"/refunds", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConversionRoutes(t *testing.T) {
	router := newTestRouter(t)

	rr := caller{}.do(t, router, http.MethodGet, "/conversions/preview?amount=10&from=USD&to=IRR", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	conv := decodeBody[mapping.Conversion](t, rr)
	assert.True(t, decimal.NewFromInt(600000).Equal(conv.Rate))
	assert.True(t, decimal.NewFromInt(5940000).Equal(conv.TargetAmount))

	rr = caller{}.do(t, router, http.MethodGet, "/conversions/preview?amount=10&from=USD&to=XYZ", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = caller{}.do(t, router, http.MethodGet, "/conversions/preview?from=USD&to=IRR", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = caller{}.do(t, router, http.MethodGet, "/rates", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var usdIrr *mapping.Rate
	for _, rate := range decodeBody[[]mapping.Rate](t, rr) {
		rate := rate
		if rate.Source == models.USD && rate.Target == models.IRR {
			usdIrr = &rate
		}
	}
	require.NotNil(t, usdIrr)
	assert.True(t, decimal.NewFromInt(600000).Equal(usdIrr.Rate))
}
