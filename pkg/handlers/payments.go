package handlers

import (
	"net/http"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/reconciler"
	"github.com/shopspring/decimal"
)

type initiatePaymentRequest struct {
	Gateway      string          `json:"gateway" validate:"required,oneof=zarinpal zibal sandbox ZARINPAL ZIBAL SANDBOX"`
	Authority    string          `json:"authority" validate:"max=128"`
	AccountId    string          `json:"accountId" validate:"omitempty,uuid"`
	Amount       decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Currency     string          `json:"currency" validate:"omitempty,currency"`
	OrderId      string          `json:"orderId" validate:"max=128"`
	Description  string          `json:"description" validate:"max=255"`
	IsIntegrated bool            `json:"isIntegrated"`
}

// InitiatePayment records a pending gateway payment for the caller.
func (h *ApiHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	var c models.Currency
	if req.Currency != "" {
		var err error
		if c, err = parseCurrency(req.Currency); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	p, err := h.Reconciler.InitiatePayment(r.Context(), reconciler.InitiatePaymentRequest{
		UserID:       middleware.UserID(r.Context()),
		Gateway:      reconciler.ParseGateway(req.Gateway),
		Authority:    req.Authority,
		AccountID:    req.AccountId,
		Amount:       req.Amount,
		Currency:     c,
		OrderID:      req.OrderId,
		Description:  req.Description,
		IsIntegrated: req.IsIntegrated,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiPayment(p))
}

// GetPayment returns one of the caller's payments.
func (h *ApiHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "paymentId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Reconciler.GetPayment(r.Context(), middleware.UserID(r.Context()), id.String())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiPayment(p))
}

// PaymentCallback receives the payer back from the gateway and redirects
// them to the result page. Errors also end in a redirect, never an error body.
func (h *ApiHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, h.Reconciler.FailureRedirect("invalid callback"), http.StatusFound)
		return
	}
	var hint string
	if err := queryParam(r, "gateway", false, &hint); err != nil {
		http.Redirect(w, r, h.Reconciler.FailureRedirect("invalid callback"), http.StatusFound)
		return
	}

	out, err := h.Reconciler.HandleCallback(r.Context(), r.Form, hint)
	if err != nil {
		msg := apperrors.Message(err)
		if apperrors.KindOf(err) == apperrors.KindInternal {
			h.Logger.Error("payment callback failed", "error", err)
		}
		http.Redirect(w, r, h.Reconciler.FailureRedirect(msg), http.StatusFound)
		return
	}
	http.Redirect(w, r, out.RedirectURL, http.StatusFound)
}
