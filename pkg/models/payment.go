package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayType identifies the external payment gateway.
type GatewayType string

const (
	GatewayZarinpal GatewayType = "ZARINPAL"
	GatewayZibal    GatewayType = "ZIBAL"
	GatewaySandbox  GatewayType = "SANDBOX"
)

// PaymentStatus is the state of an external payment attempt.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCanceled   PaymentStatus = "CANCELED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentSuccessful, PaymentFailed, PaymentCanceled},
	PaymentProcessing: {PaymentSuccessful, PaymentFailed, PaymentCanceled},
	PaymentSuccessful: {PaymentRefunded},
}

// PaymentTransaction tracks one gateway payment attempt, keyed by its authority.
type PaymentTransaction struct {
	Id                    string
	Authority             string
	GatewayType           GatewayType
	Status                PaymentStatus
	UserId                string
	WalletId              string
	AccountId             string
	Amount                decimal.Decimal
	Currency              Currency
	OrderId               *string
	Description           string
	IsIntegrated          bool
	PurchaseTransactionId *string
	DepositTransactionId  *string
	FailureReason         *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// IsTerminal reports whether a callback can no longer change the payment.
func (p *PaymentTransaction) IsTerminal() bool {
	switch p.Status {
	case PaymentSuccessful, PaymentFailed, PaymentCanceled, PaymentRefunded:
		return true
	}
	return false
}

// TransitionTo moves the payment to status to, or returns ErrInvalidTransition.
func (p *PaymentTransaction) TransitionTo(to PaymentStatus, now time.Time) error {
	for _, s := range paymentTransitions[p.Status] {
		if s == to {
			p.Status = to
			p.UpdatedAt = now
			if to != PaymentProcessing && to != PaymentRefunded {
				p.CompletedAt = &now
			}
			return nil
		}
	}
	return ErrInvalidTransition
}
