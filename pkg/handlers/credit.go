package handlers

import (
	"net/http"
	"time"

	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/shopspring/decimal"
)

type assignCreditRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	DueDate     time.Time       `json:"dueDate" validate:"required"`
	Description string          `json:"description" validate:"max=255"`
}

type settleCreditRequest struct {
	SettlementTransactionId string `json:"settlementTransactionId" validate:"required,max=128"`
}

type repayCreditRequest struct {
	Description string `json:"description" validate:"max=255"`
}

type creditLimitRequest struct {
	CreditLimit decimal.Decimal `json:"creditLimit" validate:"gte=0"`
}

// AssignCredit grants credit to a wallet.
func (h *ApiHandler) AssignCredit(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req assignCreditRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	grant, err := h.Wallets.AssignCredit(r.Context(), wl.Id, req.Amount, req.DueDate, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiCreditGrant(grant))
}

// SettleCredit marks the outstanding grant settled by an existing transaction.
func (h *ApiHandler) SettleCredit(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req settleCreditRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	grant, err := h.Wallets.SettleCredit(r.Context(), wl.Id, req.SettlementTransactionId)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiCreditGrant(grant))
}

// RepayCredit pays the outstanding credit from an account.
func (h *ApiHandler) RepayCredit(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.ownedAccount(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req repayCreditRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.Wallets.RepayCredit(r.Context(), accountID, req.Description)
	h.writeTransaction(w, r, tx, err)
}

// GetCreditStatus reports the credit position, including overdue state
// the sweeper has not recorded yet.
func (h *ApiHandler) GetCreditStatus(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := h.Wallets.CreditStatus(r.Context(), wl.Id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiCreditStatus(*status))
}

// SetCreditLimit changes a wallet's credit limit.
func (h *ApiHandler) SetCreditLimit(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ownedWallet(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req creditLimitRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Wallets.SetCreditLimit(r.Context(), wl.Id, req.CreditLimit); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
