package models

import "github.com/chris/wallet-ledger/pkg/apperrors"

// Domain rule violations raised by the aggregate before any mutation is applied.
var (
	ErrWalletInactive       = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "wallet is inactive"}
	ErrAccountInactive      = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "currency account is inactive"}
	ErrAccountNotFound      = &apperrors.Error{Kind: apperrors.KindNotFound, Message: "currency account not found"}
	ErrAccountExists        = &apperrors.Error{Kind: apperrors.KindConflict, Message: "an active account for this currency already exists"}
	ErrInvalidAmount        = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "amount must be greater than zero"}
	ErrInvalidCurrency      = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "unsupported currency"}
	ErrDueDateNotInFuture   = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "credit due date must be in the future"}
	ErrCreditOutstanding    = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "wallet already has an outstanding credit grant"}
	ErrCreditLimitExceeded  = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "credit limit exceeded"}
	ErrNoActiveCredit       = &apperrors.Error{Kind: apperrors.KindNotFound, Message: "wallet has no active credit grant"}
	ErrCreditAlreadySettled = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "credit grant is already settled"}
	ErrCreditNotActive      = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "credit grant is not active"}
	ErrInvalidTransition    = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "invalid status transition"}
	ErrInvalidCreditLimit   = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "credit limit cannot be below the outstanding credit balance"}
	ErrCurrencyMismatch     = &apperrors.Error{Kind: apperrors.KindBadRequest, Message: "currency does not match the account"}
)
