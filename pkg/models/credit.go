package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the lifecycle state of a single credit grant.
type CreditStatus string

const (
	CreditActive    CreditStatus = "ACTIVE"
	CreditSettled   CreditStatus = "SETTLED"
	CreditOverdue   CreditStatus = "OVERDUE"
	CreditSuspended CreditStatus = "SUSPENDED"
)

// CreditHistory records one credit grant and how it ended.
type CreditHistory struct {
	Id                      string
	WalletId                string
	Amount                  decimal.Decimal
	GrantDate               time.Time
	DueDate                 time.Time
	SettlementDate          *time.Time
	SettlementTransactionId *string
	Status                  CreditStatus
	Description             string
}

// IsOutstanding reports whether the grant still counts against the wallet.
func (c *CreditHistory) IsOutstanding() bool {
	return c.Status == CreditActive || c.Status == CreditOverdue
}

// Settle closes the grant. A grant that is already settled cannot be settled again.
// Overdue grants may still be settled by repayment.
func (c *CreditHistory) Settle(transactionID string, now time.Time) error {
	switch c.Status {
	case CreditSettled:
		return ErrCreditAlreadySettled
	case CreditActive, CreditOverdue:
	default:
		return ErrCreditNotActive
	}
	c.Status = CreditSettled
	c.SettlementDate = &now
	c.SettlementTransactionId = &transactionID
	return nil
}

// MarkAsOverdue moves an Active grant to Overdue.
func (c *CreditHistory) MarkAsOverdue() error {
	if c.Status != CreditActive {
		return ErrCreditNotActive
	}
	c.Status = CreditOverdue
	return nil
}
