package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the flow of value relative to the account.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// TransactionType defines the kind of balance-affecting event.
type TransactionType string

const (
	TypeDeposit          TransactionType = "DEPOSIT"
	TypeWithdrawal       TransactionType = "WITHDRAWAL"
	TypePurchase         TransactionType = "PURCHASE"
	TypeRefund           TransactionType = "REFUND"
	TypeTransfer         TransactionType = "TRANSFER"
	TypeFee              TransactionType = "FEE"
	TypeCreditSettlement TransactionType = "CREDIT_SETTLEMENT"
)

// TransactionStatus defines the possible states of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusRefunded  TransactionStatus = "REFUNDED"
	StatusCanceled  TransactionStatus = "CANCELED"
)

// transactionTransitions lists the allowed status moves. Failed, Refunded and
// Canceled are final; Completed only moves to Refunded.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusCompleted, StatusFailed, StatusCanceled},
	StatusCompleted: {StatusRefunded},
}

// Transaction is an append-only ledger record. Only its status ever changes.
type Transaction struct {
	Id                   string
	WalletId             string
	AccountId            string
	RelatedTransactionId *string
	Amount               decimal.Decimal
	// RefundedAmount is the running total refunded against this transaction.
	RefundedAmount       decimal.Decimal
	Direction            Direction
	Type                 TransactionType
	Status               TransactionStatus
	Currency             Currency
	TransactionDate      time.Time
	Description          string
	IsCredit             bool
	DueDate              *time.Time
	PaymentReferenceId   *string
	OrderId              *string
	UpdatedAt            time.Time
}

// CanTransition reports whether a transaction may move from one status to another.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range transactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the transaction to status to, or returns ErrInvalidTransition.
func (t *Transaction) TransitionTo(to TransactionStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// IsFinal reports whether no further status change is possible.
func (t *Transaction) IsFinal() bool {
	return len(transactionTransitions[t.Status]) == 0
}

// NewTransaction builds a ledger entry against acc.
func NewTransaction(acc *CurrencyAccount, amount decimal.Decimal, dir Direction, typ TransactionType, status TransactionStatus, description string, now time.Time) Transaction {
	return Transaction{
		Id:              uuid.NewString(),
		WalletId:        acc.WalletId,
		AccountId:       acc.Id,
		Amount:          amount,
		Direction:       dir,
		Type:            typ,
		Status:          status,
		Currency:        acc.Currency,
		TransactionDate: now,
		Description:     description,
		UpdatedAt:       now,
	}
}
