package models

import "github.com/shopspring/decimal"

// RefundSourceKind says which ledger record a refund is computed against.
type RefundSourceKind string

const (
	RefundSourceTransaction RefundSourceKind = "TRANSACTION"
	RefundSourcePayment     RefundSourceKind = "PAYMENT"
)

// RefundabilityResult is derived from the ledger, never stored.
type RefundabilityResult struct {
	SourceId              string
	SourceKind            RefundSourceKind
	TransactionId         string
	OriginalAmount        decimal.Decimal
	AlreadyRefundedAmount decimal.Decimal
	RefundableAmount      decimal.Decimal
	Currency              Currency
	IsRefundable          bool
	Reason                string
}
