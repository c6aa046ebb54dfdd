// Package apperrors defines the error kinds surfaced by the wallet engine.
// Handlers map a Kind to a status code; anything without a kind is internal.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindBadRequest          Kind = "BAD_REQUEST"
	KindConflict            Kind = "CONFLICT"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindInternal            Kind = "INTERNAL"
)

// Error is a domain error carrying a kind and a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadRequest returns a KindBadRequest error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an infrastructure failure. The message is what callers see.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// InsufficientBalanceError is a bad request raised when a debit exceeds the available balance.
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s %s, available %s %s",
		e.Requested.String(), e.Currency, e.Available.String(), e.Currency)
}

// KindOf reports the kind of err. Errors that carry no kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ib *InsufficientBalanceError
	if errors.As(err, &ib) {
		return KindInsufficientBalance
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var ib *InsufficientBalanceError
	if errors.As(err, &ib) {
		return ib.Error()
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
