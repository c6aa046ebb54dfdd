package handlers

import (
	"net/http"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/shopspring/decimal"
)

// PreviewConversion quotes a conversion between two currencies.
func (h *ApiHandler) PreviewConversion(w http.ResponseWriter, r *http.Request) {
	var rawAmount, from, to string
	if err := queryParam(r, "amount", true, &rawAmount); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "from", true, &from); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "to", true, &to); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		h.writeError(w, r, apperrors.BadRequest("amount %q is not a number", rawAmount))
		return
	}
	src, err := parseCurrency(from)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dst, err := parseCurrency(to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	conv, err := h.Currency.CalculateConversion(r.Context(), amount, src, dst)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiConversion(conv))
}

// ListRates returns every known exchange rate.
func (h *ApiHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Currency.GetAllRates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiRates(rates))
}
