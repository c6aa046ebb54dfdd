package handlers

import (
	"errors"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/sweeper"
)

// RunCreditSweep runs the overdue credit sweep now.
func (h *ApiHandler) RunCreditSweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sweeper.RunOnce(r.Context())
	if errors.Is(err, sweeper.ErrAlreadyRunning) {
		h.writeError(w, r, apperrors.Conflict("credit sweep already running"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiSweepResult(res))
}
