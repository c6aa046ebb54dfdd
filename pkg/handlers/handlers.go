// Package handlers exposes the wallet operations over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/currency"
	"github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/chris/wallet-ledger/pkg/reconciler"
	"github.com/chris/wallet-ledger/pkg/refund"
	"github.com/chris/wallet-ledger/pkg/sweeper"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ApiHandler holds the services the HTTP surface delegates to.
type ApiHandler struct {
	Wallets    *wallet.Service
	Currency   *currency.Service
	Reconciler *reconciler.Reconciler
	Refunds    *refund.Engine
	Sweeper    *sweeper.Sweeper
	Logger     *slog.Logger

	validate *validator.Validate
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(wallets *wallet.Service, conv *currency.Service, rec *reconciler.Reconciler, refunds *refund.Engine, sw *sweeper.Sweeper, logger *slog.Logger) *ApiHandler {
	return &ApiHandler{
		Wallets:    wallets,
		Currency:   conv,
		Reconciler: rec,
		Refunds:    refunds,
		Sweeper:    sw,
		Logger:     logger,
		validate:   newValidator(),
	}
}

// RegisterRoutes mounts every route on r.
func (h *ApiHandler) RegisterRoutes(r chi.Router) {
	// Gateways redirect the payer's browser here, so there is no caller identity.
	r.Get("/payments/callback", h.PaymentCallback)
	r.Post("/payments/callback", h.PaymentCallback)

	r.Get("/rates", h.ListRates)
	r.Get("/conversions/preview", h.PreviewConversion)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Post("/wallets", h.CreateWallet)
		r.Get("/wallet", h.GetMyWallet)
		r.Get("/wallets/{walletId}", h.GetWallet)
		r.Post("/wallets/{walletId}/accounts", h.CreateCurrencyAccount)
		r.Get("/wallets/{walletId}/transactions", h.ListTransactions)
		r.Post("/wallets/{walletId}/credit", h.AssignCredit)
		r.Post("/wallets/{walletId}/credit/settle", h.SettleCredit)
		r.Get("/wallets/{walletId}/credit/status", h.GetCreditStatus)

		r.Post("/accounts/{accountId}/deposit", h.Deposit)
		r.Post("/accounts/{accountId}/withdraw", h.Withdraw)
		r.Post("/accounts/{accountId}/purchase", h.Purchase)
		r.Post("/accounts/{accountId}/credit/repay", h.RepayCredit)

		r.Post("/payments", h.InitiatePayment)
		r.Get("/payments/{paymentId}", h.GetPayment)

		r.Get("/refunds/check", h.CheckRefundability)
		r.Post("/refunds", h.Refund)
		r.Get("/transactions/{transactionId}/refunds", h.ListRefunds)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Put("/admin/wallets/{walletId}/status", h.SetWalletStatus)
			r.Put("/admin/wallets/{walletId}/credit/limit", h.SetCreditLimit)
			r.Post("/admin/sweeps/credit", h.RunCreditSweep)
		})
	})
}

type errorResponse struct {
	Error     string           `json:"error"`
	Kind      apperrors.Kind   `json:"kind"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Currency  string           `json:"currency,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindBadRequest, apperrors.KindInsufficientBalance:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (h *ApiHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	resp := errorResponse{Error: apperrors.Message(err), Kind: kind}

	var ib *apperrors.InsufficientBalanceError
	if errors.As(err, &ib) {
		resp.Requested, resp.Available, resp.Currency = &ib.Requested, &ib.Available, ib.Currency
	}
	if kind == apperrors.KindInternal {
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, StatusFor(kind), resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a JSON body into dst and validates it.
func (h *ApiHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.BadRequest("invalid request body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}
