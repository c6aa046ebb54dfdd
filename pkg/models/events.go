package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event written to the outbox.
type EventType string

const (
	EventWalletCreated     EventType = "wallet.created"
	EventAccountCreated    EventType = "wallet.account_created"
	EventWalletStatus      EventType = "wallet.status_changed"
	EventFundsDeposited    EventType = "wallet.funds_deposited"
	EventFundsWithdrawn    EventType = "wallet.funds_withdrawn"
	EventPurchaseCompleted EventType = "wallet.purchase_completed"
	EventPurchasePending   EventType = "wallet.purchase_pending"
	EventCreditAssigned    EventType = "credit.assigned"
	EventCreditSettled     EventType = "credit.settled"
	EventCreditOverdue     EventType = "credit.overdue"
	EventCreditLimitSet    EventType = "credit.limit_changed"
	EventPaymentInitiated  EventType = "payment.initiated"
	EventPaymentSucceeded  EventType = "payment.succeeded"
	EventPaymentFailed     EventType = "payment.failed"
	EventRefundIssued      EventType = "refund.issued"
)

// OutboxStatus tracks relay progress of an outbox event.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
)

// OutboxEvent is a domain event committed together with the change that produced it.
type OutboxEvent struct {
	Id          string          `json:"id"`
	AggregateId string          `json:"aggregate_id"`
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      OutboxStatus    `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"-"`
}

// NewEvent marshals payload into a pending outbox event.
func NewEvent(aggregateID string, eventType EventType, payload any, now time.Time) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("failed to marshal %s event payload: %w", eventType, err)
	}
	return OutboxEvent{
		Id:          uuid.NewString(),
		AggregateId: aggregateID,
		Type:        eventType,
		Payload:     body,
		Status:      OutboxPending,
		CreatedAt:   now,
	}, nil
}

// TransactionPayload is the body of balance events.
type TransactionPayload struct {
	TransactionID        string            `json:"transaction_id"`
	WalletID             string            `json:"wallet_id"`
	AccountID            string            `json:"account_id"`
	RelatedTransactionID *string           `json:"related_transaction_id,omitempty"`
	Type                 TransactionType   `json:"type"`
	Direction            Direction         `json:"direction"`
	Status               TransactionStatus `json:"status"`
	Amount               string            `json:"amount"`
	Currency             Currency          `json:"currency"`
}

// CreditPayload is the body of credit events.
type CreditPayload struct {
	WalletID      string       `json:"wallet_id"`
	CreditID      string       `json:"credit_id"`
	Amount        string       `json:"amount"`
	DueDate       time.Time    `json:"due_date"`
	Status        CreditStatus `json:"status"`
	TransactionID *string      `json:"settlement_transaction_id,omitempty"`
}

// PaymentPayload is the body of payment events.
type PaymentPayload struct {
	PaymentID string        `json:"payment_id"`
	Authority string        `json:"authority"`
	Gateway   GatewayType   `json:"gateway"`
	UserID    string        `json:"user_id"`
	Status    PaymentStatus `json:"status"`
	Amount    string        `json:"amount"`
	Currency  Currency      `json:"currency"`
	Reason    *string       `json:"reason,omitempty"`
}

// TransactionEvent builds an outbox event describing tx.
func TransactionEvent(eventType EventType, tx *Transaction, now time.Time) (OutboxEvent, error) {
	return NewEvent(tx.WalletId, eventType, TransactionPayload{
		TransactionID:        tx.Id,
		WalletID:             tx.WalletId,
		AccountID:            tx.AccountId,
		RelatedTransactionID: tx.RelatedTransactionId,
		Type:                 tx.Type,
		Direction:            tx.Direction,
		Status:               tx.Status,
		Amount:               tx.Amount.String(),
		Currency:             tx.Currency,
	}, now)
}

// CreditEvent builds an outbox event describing a credit grant.
func CreditEvent(eventType EventType, c *CreditHistory, now time.Time) (OutboxEvent, error) {
	return NewEvent(c.WalletId, eventType, CreditPayload{
		WalletID:      c.WalletId,
		CreditID:      c.Id,
		Amount:        c.Amount.String(),
		DueDate:       c.DueDate,
		Status:        c.Status,
		TransactionID: c.SettlementTransactionId,
	}, now)
}

// PaymentEvent builds an outbox event describing a gateway payment.
func PaymentEvent(eventType EventType, p *PaymentTransaction, now time.Time) (OutboxEvent, error) {
	return NewEvent(p.WalletId, eventType, PaymentPayload{
		PaymentID: p.Id,
		Authority: p.Authority,
		Gateway:   p.GatewayType,
		UserID:    p.UserId,
		Status:    p.Status,
		Amount:    p.Amount.String(),
		Currency:  p.Currency,
		Reason:    p.FailureReason,
	}, now)
}
