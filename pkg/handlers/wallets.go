package handlers

import (
	"context"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	Currency string `json:"currency" validate:"required,currency"`
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	ReferenceId string          `json:"referenceId" validate:"max=128"`
	Description string          `json:"description" validate:"max=255"`
}

type debitRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	OrderId     string          `json:"orderId" validate:"max=128"`
	Description string          `json:"description" validate:"max=255"`
}

type walletStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ownedWallet loads a wallet from the path and hides it from anyone but its owner.
func (h *ApiHandler) ownedWallet(r *http.Request) (*models.Wallet, error) {
	id, err := pathID(r, "walletId")
	if err != nil {
		return nil, err
	}
	w, err := h.Wallets.GetWallet(r.Context(), id.String())
	if err != nil {
		return nil, err
	}
	if w.UserId != middleware.UserID(r.Context()) && !middleware.IsAdmin(r.Context()) {
		return nil, apperrors.NotFound("wallet %s not found", id)
	}
	return w, nil
}

// ownedAccount resolves the account in the path and checks the caller owns it.
func (h *ApiHandler) ownedAccount(r *http.Request) (string, error) {
	id, err := pathID(r, "accountId")
	if err != nil {
		return "", err
	}
	w, err := h.Wallets.GetWalletByAccount(r.Context(), id.String())
	if err != nil {
		return "", err
	}
	if w.UserId != middleware.UserID(r.Context()) {
		return "", apperrors.NotFound("account %s not found", id)
	}
	return id.String(), nil
}

// CreateWallet creates the caller's wallet.
func (h *ApiHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wallets.CreateWallet(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiCreatedWallet(res))
}

// GetMyWallet returns the caller's wallet.
func (h *ApiHandler) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wallets.GetWalletByUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiWallet(wl, wallet.CheckCreditDueDate(wl, h.Wallets.Now())))
}

// GetWallet returns a wallet with its accounts and credit position.
func (h *ApiHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiWallet(wl, wallet.CheckCreditDueDate(wl, h.Wallets.Now())))
}

// CreateCurrencyAccount opens an account in another currency.
func (h *ApiHandler) CreateCurrencyAccount(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := parseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.Wallets.CreateCurrencyAccount(r.Context(), wl.Id, c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiAccount(acc))
}

// ListTransactions returns the latest transactions of a wallet.
func (h *ApiHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var limit int
	if err := queryParam(r, "limit", false, &limit); err != nil {
		h.writeError(w, r, err)
		return
	}
	txs, err := h.Wallets.ListTransactions(r.Context(), wl.Id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiTransactions(txs))
}

// Deposit credits an account.
func (h *ApiHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.ownedAccount(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req depositRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.Wallets.Deposit(r.Context(), wallet.DepositRequest{
		AccountID:   accountID,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceId,
		Description: req.Description,
	})
	h.writeTransaction(w, r, tx, err)
}

// Withdraw debits an account.
func (h *ApiHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.debit(w, r, func(ctx context.Context, accountID string, req debitRequest) (*models.Transaction, error) {
		return h.Wallets.Withdraw(ctx, wallet.WithdrawRequest{
			AccountID:   accountID,
			Amount:      req.Amount,
			OrderID:     req.OrderId,
			Description: req.Description,
		})
	})
}

// Purchase pays for an order from an account.
func (h *ApiHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.debit(w, r, func(ctx context.Context, accountID string, req debitRequest) (*models.Transaction, error) {
		return h.Wallets.Purchase(ctx, wallet.PurchaseRequest{
			AccountID:   accountID,
			Amount:      req.Amount,
			OrderID:     req.OrderId,
			Description: req.Description,
		})
	})
}

func (h *ApiHandler) debit(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, debitRequest) (*models.Transaction, error)) {
	accountID, err := h.ownedAccount(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req debitRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := fn(r.Context(), accountID, req)
	h.writeTransaction(w, r, tx, err)
}

func (h *ApiHandler) writeTransaction(w http.ResponseWriter, r *http.Request, tx *models.Transaction, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiTransaction(tx))
}

// SetWalletStatus activates or deactivates a wallet.
func (h *ApiHandler) SetWalletStatus(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req walletStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Wallets.SetWalletActive(r.Context(), wl.Id, *req.IsActive); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
