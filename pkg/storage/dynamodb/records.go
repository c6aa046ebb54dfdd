package dynamodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

const creditSweepActive = "ACTIVE"

// Records mirror the models. Amounts are stored as strings so no precision is lost.
type walletRecord struct {
	UserId        string          `dynamodbav:"user_id"`
	Id            string          `dynamodbav:"id"`
	IsActive      bool            `dynamodbav:"is_active"`
	CreditLimit   string          `dynamodbav:"credit_limit"`
	CreditBalance string          `dynamodbav:"credit_balance"`
	CreditDueDate *time.Time      `dynamodbav:"credit_due_date,omitempty"`
	CreditSweep   string          `dynamodbav:"credit_sweep,omitempty"`
	SweepDue      string          `dynamodbav:"credit_sweep_due,omitempty"`
	Accounts      []accountRecord `dynamodbav:"accounts"`
	CreditHistory []creditRecord  `dynamodbav:"credit_history"`
	Version       int64           `dynamodbav:"version"`
	CreatedAt     time.Time       `dynamodbav:"created_at"`
	UpdatedAt     time.Time       `dynamodbav:"updated_at"`
}

type accountRecord struct {
	Id        string    `dynamodbav:"id"`
	Currency  string    `dynamodbav:"currency"`
	Balance   string    `dynamodbav:"balance"`
	IsActive  bool      `dynamodbav:"is_active"`
	IsDeleted bool      `dynamodbav:"is_deleted"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// accountIndexRecord maps an account to the wallet item that holds it.
type accountIndexRecord struct {
	AccountId string `dynamodbav:"account_id"`
	WalletId  string `dynamodbav:"wallet_id"`
	UserId    string `dynamodbav:"user_id"`
}

type creditRecord struct {
	Id                      string     `dynamodbav:"id"`
	Amount                  string     `dynamodbav:"amount"`
	GrantDate               time.Time  `dynamodbav:"grant_date"`
	DueDate                 time.Time  `dynamodbav:"due_date"`
	SettlementDate          *time.Time `dynamodbav:"settlement_date,omitempty"`
	SettlementTransactionId *string    `dynamodbav:"settlement_transaction_id,omitempty"`
	Status                  string     `dynamodbav:"status"`
	Description             string     `dynamodbav:"description"`
}

type transactionRecord struct {
	Id                   string     `dynamodbav:"id"`
	WalletId             string     `dynamodbav:"wallet_id"`
	AccountId            string     `dynamodbav:"account_id"`
	RelatedTransactionId *string    `dynamodbav:"related_transaction_id,omitempty"`
	Amount               string     `dynamodbav:"amount"`
	RefundedAmount       string     `dynamodbav:"refunded_amount"`
	Direction            string     `dynamodbav:"direction"`
	Type                 string     `dynamodbav:"type"`
	Status               string     `dynamodbav:"status"`
	Currency             string     `dynamodbav:"currency"`
	TransactionDate      time.Time  `dynamodbav:"transaction_date"`
	Description          string     `dynamodbav:"description"`
	IsCredit             bool       `dynamodbav:"is_credit"`
	DueDate              *time.Time `dynamodbav:"due_date,omitempty"`
	PaymentReferenceId   *string    `dynamodbav:"payment_reference_id,omitempty"`
	OrderId              *string    `dynamodbav:"order_id,omitempty"`
	UpdatedAt            time.Time  `dynamodbav:"updated_at"`
}

type paymentRecord struct {
	Authority             string     `dynamodbav:"authority"`
	Id                    string     `dynamodbav:"id"`
	GatewayType           string     `dynamodbav:"gateway_type"`
	Status                string     `dynamodbav:"status"`
	UserId                string     `dynamodbav:"user_id"`
	WalletId              string     `dynamodbav:"wallet_id"`
	AccountId             string     `dynamodbav:"account_id"`
	Amount                string     `dynamodbav:"amount"`
	Currency              string     `dynamodbav:"currency"`
	OrderId               *string    `dynamodbav:"order_id,omitempty"`
	Description           string     `dynamodbav:"description"`
	IsIntegrated          bool       `dynamodbav:"is_integrated"`
	PurchaseTransactionId *string    `dynamodbav:"purchase_transaction_id,omitempty"`
	DepositTransactionId  *string    `dynamodbav:"deposit_transaction_id,omitempty"`
	FailureReason         *string    `dynamodbav:"failure_reason,omitempty"`
	CreatedAt             time.Time  `dynamodbav:"created_at"`
	UpdatedAt             time.Time  `dynamodbav:"updated_at"`
	CompletedAt           *time.Time `dynamodbav:"completed_at,omitempty"`
}

type outboxRecord struct {
	Id          string     `dynamodbav:"id"`
	AggregateId string     `dynamodbav:"aggregate_id"`
	Type        string     `dynamodbav:"type"`
	Payload     string     `dynamodbav:"payload"`
	Status      string     `dynamodbav:"status"`
	CreatedAt   time.Time  `dynamodbav:"created_at"`
	PublishedAt *time.Time `dynamodbav:"published_at,omitempty"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func toWalletRecord(w *models.Wallet) walletRecord {
	rec := walletRecord{
		UserId:        w.UserId,
		Id:            w.Id,
		IsActive:      w.IsActive,
		CreditLimit:   w.CreditLimit.String(),
		CreditBalance: w.CreditBalance.String(),
		CreditDueDate: utcPtr(w.CreditDueDate),
		Version:       w.Version,
		CreatedAt:     w.CreatedAt.UTC(),
		UpdatedAt:     w.UpdatedAt.UTC(),
		Accounts:      make([]accountRecord, 0, len(w.Accounts)),
		CreditHistory: make([]creditRecord, 0, len(w.CreditHistory)),
	}
	for _, a := range w.Accounts {
		rec.Accounts = append(rec.Accounts, accountRecord{
			Id:        a.Id,
			Currency:  string(a.Currency),
			Balance:   a.Balance.String(),
			IsActive:  a.IsActive,
			IsDeleted: a.IsDeleted,
			CreatedAt: a.CreatedAt.UTC(),
		})
	}
	for _, h := range w.CreditHistory {
		rec.CreditHistory = append(rec.CreditHistory, creditRecord{
			Id:                      h.Id,
			Amount:                  h.Amount.String(),
			GrantDate:               h.GrantDate.UTC(),
			DueDate:                 h.DueDate.UTC(),
			SettlementDate:          utcPtr(h.SettlementDate),
			SettlementTransactionId: h.SettlementTransactionId,
			Status:                  string(h.Status),
			Description:             h.Description,
		})
		// Only Active grants are swept; the sparse index drops everything else.
		if h.Status == models.CreditActive {
			rec.CreditSweep = creditSweepActive
			rec.SweepDue = h.DueDate.UTC().Format(time.RFC3339Nano)
		}
	}
	return rec
}

func (r walletRecord) toModel() (*models.Wallet, error) {
	limit, err := parseAmount("credit_limit", r.CreditLimit)
	if err != nil {
		return nil, err
	}
	balance, err := parseAmount("credit_balance", r.CreditBalance)
	if err != nil {
		return nil, err
	}
	w := &models.Wallet{
		Id:            r.Id,
		UserId:        r.UserId,
		IsActive:      r.IsActive,
		CreditLimit:   limit,
		CreditBalance: balance,
		CreditDueDate: r.CreditDueDate,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, a := range r.Accounts {
		bal, err := parseAmount("account balance", a.Balance)
		if err != nil {
			return nil, err
		}
		w.Accounts = append(w.Accounts, models.CurrencyAccount{
			Id:        a.Id,
			WalletId:  r.Id,
			Currency:  models.Currency(a.Currency),
			Balance:   bal,
			IsActive:  a.IsActive,
			IsDeleted: a.IsDeleted,
			CreatedAt: a.CreatedAt,
		})
	}
	for _, h := range r.CreditHistory {
		amount, err := parseAmount("credit amount", h.Amount)
		if err != nil {
			return nil, err
		}
		w.CreditHistory = append(w.CreditHistory, models.CreditHistory{
			Id:                      h.Id,
			WalletId:                r.Id,
			Amount:                  amount,
			GrantDate:               h.GrantDate,
			DueDate:                 h.DueDate,
			SettlementDate:          h.SettlementDate,
			SettlementTransactionId: h.SettlementTransactionId,
			Status:                  models.CreditStatus(h.Status),
			Description:             h.Description,
		})
	}
	return w, nil
}

func toTransactionRecord(t *models.Transaction) transactionRecord {
	return transactionRecord{
		Id:                   t.Id,
		WalletId:             t.WalletId,
		AccountId:            t.AccountId,
		RelatedTransactionId: t.RelatedTransactionId,
		Amount:               t.Amount.String(),
		RefundedAmount:       t.RefundedAmount.String(),
		Direction:            string(t.Direction),
		Type:                 string(t.Type),
		Status:               string(t.Status),
		Currency:             string(t.Currency),
		TransactionDate:      t.TransactionDate.UTC(),
		Description:          t.Description,
		IsCredit:             t.IsCredit,
		DueDate:              utcPtr(t.DueDate),
		PaymentReferenceId:   t.PaymentReferenceId,
		OrderId:              t.OrderId,
		UpdatedAt:            t.UpdatedAt.UTC(),
	}
}

func (r transactionRecord) toModel() (*models.Transaction, error) {
	amount, err := parseAmount("transaction amount", r.Amount)
	if err != nil {
		return nil, err
	}
	refunded := decimal.Zero
	if r.RefundedAmount != "" {
		if refunded, err = parseAmount("transaction refunded amount", r.RefundedAmount); err != nil {
			return nil, err
		}
	}
	return &models.Transaction{
		Id:                   r.Id,
		WalletId:             r.WalletId,
		AccountId:            r.AccountId,
		RelatedTransactionId: r.RelatedTransactionId,
		Amount:               amount,
		RefundedAmount:       refunded,
		Direction:            models.Direction(r.Direction),
		Type:                 models.TransactionType(r.Type),
		Status:               models.TransactionStatus(r.Status),
		Currency:             models.Currency(r.Currency),
		TransactionDate:      r.TransactionDate,
		Description:          r.Description,
		IsCredit:             r.IsCredit,
		DueDate:              r.DueDate,
		PaymentReferenceId:   r.PaymentReferenceId,
		OrderId:              r.OrderId,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

func toPaymentRecord(p *models.PaymentTransaction) paymentRecord {
	return paymentRecord{
		Authority:             p.Authority,
		Id:                    p.Id,
		GatewayType:           string(p.GatewayType),
		Status:                string(p.Status),
		UserId:                p.UserId,
		WalletId:              p.WalletId,
		AccountId:             p.AccountId,
		Amount:                p.Amount.String(),
		Currency:              string(p.Currency),
		OrderId:               p.OrderId,
		Description:           p.Description,
		IsIntegrated:          p.IsIntegrated,
		PurchaseTransactionId: p.PurchaseTransactionId,
		DepositTransactionId:  p.DepositTransactionId,
		FailureReason:         p.FailureReason,
		CreatedAt:             p.CreatedAt.UTC(),
		UpdatedAt:             p.UpdatedAt.UTC(),
		CompletedAt:           utcPtr(p.CompletedAt),
	}
}

func (r paymentRecord) toModel() (*models.PaymentTransaction, error) {
	amount, err := parseAmount("payment amount", r.Amount)
	if err != nil {
		return nil, err
	}
	return &models.PaymentTransaction{
		Id:                    r.Id,
		Authority:             r.Authority,
		GatewayType:           models.GatewayType(r.GatewayType),
		Status:                models.PaymentStatus(r.Status),
		UserId:                r.UserId,
		WalletId:              r.WalletId,
		AccountId:             r.AccountId,
		Amount:                amount,
		Currency:              models.Currency(r.Currency),
		OrderId:               r.OrderId,
		Description:           r.Description,
		IsIntegrated:          r.IsIntegrated,
		PurchaseTransactionId: r.PurchaseTransactionId,
		DepositTransactionId:  r.DepositTransactionId,
		FailureReason:         r.FailureReason,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		CompletedAt:           r.CompletedAt,
	}, nil
}

func toOutboxRecord(e *models.OutboxEvent) outboxRecord {
	return outboxRecord{
		Id:          e.Id,
		AggregateId: e.AggregateId,
		Type:        string(e.Type),
		Payload:     string(e.Payload),
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt.UTC(),
		PublishedAt: utcPtr(e.PublishedAt),
	}
}

func (r outboxRecord) toModel() models.OutboxEvent {
	return models.OutboxEvent{
		Id:          r.Id,
		AggregateId: r.AggregateId,
		Type:        models.EventType(r.Type),
		Payload:     json.RawMessage(r.Payload),
		Status:      models.OutboxStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		PublishedAt: r.PublishedAt,
	}
}
