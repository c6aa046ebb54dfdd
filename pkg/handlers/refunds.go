package handlers

import (
	"net/http"

	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/chris/wallet-ledger/pkg/refund"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type refundRequest struct {
	TransactionId   string           `json:"transactionId" validate:"required_without=PaymentId"`
	PaymentId       string           `json:"paymentId"`
	Amount          *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Reason          string           `json:"reason" validate:"max=255"`
	IsAdminApproved bool             `json:"isAdminApproved"`
}

// CheckRefundability reports how much of a transaction or payment can be refunded.
func (h *ApiHandler) CheckRefundability(w http.ResponseWriter, r *http.Request) {
	var txID, paymentID string
	if err := queryParam(r, "transactionId", false, &txID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "paymentId", false, &paymentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Refunds.CheckRefundability(r.Context(), middleware.UserID(r.Context()), txID, paymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiRefundability(res))
}

// ListRefunds lists the refunds booked against a transaction.
func (h *ApiHandler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.Refunds.ListRefunds(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiTransactions(refunds))
}

// Refund issues a refund. Admin approval only counts when the caller is an admin.
func (h *ApiHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Refunds.Refund(r.Context(), refund.Request{
		UserID:          middleware.UserID(r.Context()),
		TransactionID:   req.TransactionId,
		PaymentID:       req.PaymentId,
		Amount:          req.Amount,
		Reason:          req.Reason,
		IsAdminApproved: req.IsAdminApproved && middleware.IsAdmin(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiRefund(res))
}
