// Package mapping converts domain models to the JSON shapes served over HTTP.
package mapping

import (
	"time"

	"github.com/chris/wallet-ledger/pkg/currency"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/refund"
	"github.com/chris/wallet-ledger/pkg/sweeper"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/shopspring/decimal"
)

type Account struct {
	Id        string          `json:"id"`
	Currency  models.Currency `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
}

type CreditGrant struct {
	Id                      string              `json:"id"`
	Amount                  decimal.Decimal     `json:"amount"`
	GrantDate               time.Time           `json:"grantDate"`
	DueDate                 time.Time           `json:"dueDate"`
	SettlementDate          *time.Time          `json:"settlementDate,omitempty"`
	SettlementTransactionId *string             `json:"settlementTransactionId,omitempty"`
	Status                  models.CreditStatus `json:"status"`
	Description             string              `json:"description"`
}

type CreditStatus struct {
	HasActiveCredit bool            `json:"hasActiveCredit"`
	IsOverdue       bool            `json:"isOverdue"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	CreditBalance   decimal.Decimal `json:"creditBalance"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	DaysRemaining   int             `json:"daysRemaining"`
}

type Wallet struct {
	Id            string        `json:"id"`
	UserId        string        `json:"userId"`
	IsActive      bool          `json:"isActive"`
	Accounts      []Account     `json:"accounts"`
	Credit        CreditStatus  `json:"credit"`
	CreditHistory []CreditGrant `json:"creditHistory"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type CreatedWallet struct {
	WalletId         string `json:"walletId"`
	DefaultAccountId string `json:"defaultAccountId"`
}

type Transaction struct {
	Id                   string                   `json:"id"`
	WalletId             string                   `json:"walletId"`
	AccountId            string                   `json:"accountId"`
	RelatedTransactionId *string                  `json:"relatedTransactionId,omitempty"`
	Amount               decimal.Decimal          `json:"amount"`
	RefundedAmount       *decimal.Decimal         `json:"refundedAmount,omitempty"`
	Currency             models.Currency          `json:"currency"`
	Direction            models.Direction         `json:"direction"`
	Type                 models.TransactionType   `json:"type"`
	Status               models.TransactionStatus `json:"status"`
	Description          string                   `json:"description"`
	IsCredit             bool                     `json:"isCredit"`
	DueDate              *time.Time               `json:"dueDate,omitempty"`
	PaymentReferenceId   *string                  `json:"paymentReferenceId,omitempty"`
	OrderId              *string                  `json:"orderId,omitempty"`
	TransactionDate      time.Time                `json:"transactionDate"`
}

type Payment struct {
	Id                    string               `json:"id"`
	Authority             string               `json:"authority"`
	Gateway               models.GatewayType   `json:"gateway"`
	Status                models.PaymentStatus `json:"status"`
	WalletId              string               `json:"walletId"`
	AccountId             string               `json:"accountId"`
	Amount                decimal.Decimal      `json:"amount"`
	Currency              models.Currency      `json:"currency"`
	OrderId               *string              `json:"orderId,omitempty"`
	IsIntegrated          bool                 `json:"isIntegrated"`
	PurchaseTransactionId *string              `json:"purchaseTransactionId,omitempty"`
	DepositTransactionId  *string              `json:"depositTransactionId,omitempty"`
	FailureReason         *string              `json:"failureReason,omitempty"`
	CreatedAt             time.Time            `json:"createdAt"`
	CompletedAt           *time.Time           `json:"completedAt,omitempty"`
}

type Conversion struct {
	SourceCurrency models.Currency `json:"sourceCurrency"`
	TargetCurrency models.Currency `json:"targetCurrency"`
	SourceAmount   decimal.Decimal `json:"sourceAmount"`
	TargetAmount   decimal.Decimal `json:"targetAmount"`
	FeeAmount      decimal.Decimal `json:"feeAmount"`
	Rate           decimal.Decimal `json:"rate"`
	FeeRate        decimal.Decimal `json:"feeRate"`
	ValidUntil     time.Time       `json:"validUntil"`
}

type Rate struct {
	Source models.Currency `json:"source"`
	Target models.Currency `json:"target"`
	Rate   decimal.Decimal `json:"rate"`
}

type Refundability struct {
	SourceId              string                  `json:"sourceId"`
	SourceKind            models.RefundSourceKind `json:"sourceKind"`
	TransactionId         string                  `json:"transactionId,omitempty"`
	OriginalAmount        decimal.Decimal         `json:"originalAmount"`
	AlreadyRefundedAmount decimal.Decimal         `json:"alreadyRefundedAmount"`
	RefundableAmount      decimal.Decimal         `json:"refundableAmount"`
	Currency              models.Currency         `json:"currency"`
	IsRefundable          bool                    `json:"isRefundable"`
	Reason                string                  `json:"reason,omitempty"`
}

type Refund struct {
	Refund        Transaction   `json:"refund"`
	Refundability Refundability `json:"refundability"`
}

type SweepResult struct {
	Scanned       int `json:"scanned"`
	MarkedOverdue int `json:"markedOverdue"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// ToApiWallet converts a wallet and its credit position. Deleted accounts are left out.
func ToApiWallet(w *models.Wallet, status wallet.CreditStatus) *Wallet {
	out := &Wallet{
		Id:            w.Id,
		UserId:        w.UserId,
		IsActive:      w.IsActive,
		Accounts:      make([]Account, 0, len(w.Accounts)),
		Credit:        ToApiCreditStatus(status),
		CreditHistory: make([]CreditGrant, 0, len(w.CreditHistory)),
		Version:       w.Version,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	for i := range w.Accounts {
		if w.Accounts[i].IsDeleted {
			continue
		}
		out.Accounts = append(out.Accounts, ToApiAccount(&w.Accounts[i]))
	}
	for i := range w.CreditHistory {
		out.CreditHistory = append(out.CreditHistory, ToApiCreditGrant(&w.CreditHistory[i]))
	}
	return out
}

func ToApiAccount(a *models.CurrencyAccount) Account {
	return Account{
		Id:        a.Id,
		Currency:  a.Currency,
		Balance:   a.Balance,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
}

func ToApiCreditGrant(c *models.CreditHistory) CreditGrant {
	return CreditGrant{
		Id:                      c.Id,
		Amount:                  c.Amount,
		GrantDate:               c.GrantDate,
		DueDate:                 c.DueDate,
		SettlementDate:          c.SettlementDate,
		SettlementTransactionId: c.SettlementTransactionId,
		Status:                  c.Status,
		Description:             c.Description,
	}
}

func ToApiCreditStatus(s wallet.CreditStatus) CreditStatus {
	return CreditStatus{
		HasActiveCredit: s.HasActiveCredit,
		IsOverdue:       s.IsOverdue,
		CreditLimit:     s.CreditLimit,
		CreditBalance:   s.CreditBalance,
		DueDate:         s.DueDate,
		DaysRemaining:   s.DaysRemaining,
	}
}

func ToApiCreatedWallet(r *wallet.CreateWalletResult) CreatedWallet {
	return CreatedWallet{WalletId: r.WalletID, DefaultAccountId: r.DefaultAccountID}
}

// ToApiTransaction converts a domain Transaction model to its API shape.
func ToApiTransaction(tx *models.Transaction) Transaction {
	var refunded *decimal.Decimal
	if !tx.RefundedAmount.IsZero() {
		r := tx.RefundedAmount
		refunded = &r
	}
	return Transaction{
		Id:                   tx.Id,
		WalletId:             tx.WalletId,
		AccountId:            tx.AccountId,
		RelatedTransactionId: tx.RelatedTransactionId,
		Amount:               tx.Amount,
		RefundedAmount:       refunded,
		Currency:             tx.Currency,
		Direction:            tx.Direction,
		Type:                 tx.Type,
		Status:               tx.Status,
		Description:          tx.Description,
		IsCredit:             tx.IsCredit,
		DueDate:              tx.DueDate,
		PaymentReferenceId:   tx.PaymentReferenceId,
		OrderId:              tx.OrderId,
		TransactionDate:      tx.TransactionDate,
	}
}

func ToApiTransactions(txs []models.Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i := range txs {
		out[i] = ToApiTransaction(&txs[i])
	}
	return out
}

func ToApiPayment(p *models.PaymentTransaction) Payment {
	return Payment{
		Id:                    p.Id,
		Authority:             p.Authority,
		Gateway:               p.GatewayType,
		Status:                p.Status,
		WalletId:              p.WalletId,
		AccountId:             p.AccountId,
		Amount:                p.Amount,
		Currency:              p.Currency,
		OrderId:               p.OrderId,
		IsIntegrated:          p.IsIntegrated,
		PurchaseTransactionId: p.PurchaseTransactionId,
		DepositTransactionId:  p.DepositTransactionId,
		FailureReason:         p.FailureReason,
		CreatedAt:             p.CreatedAt,
		CompletedAt:           p.CompletedAt,
	}
}

func ToApiConversion(c *currency.Conversion) Conversion {
	return Conversion{
		SourceCurrency: c.SourceCurrency,
		TargetCurrency: c.TargetCurrency,
		SourceAmount:   c.SourceAmount,
		TargetAmount:   c.TargetAmount,
		FeeAmount:      c.FeeAmount,
		Rate:           c.Rate,
		FeeRate:        c.FeeRate,
		ValidUntil:     c.ValidUntil,
	}
}

// ToApiRates flattens a rate table, ordered by source then target.
func ToApiRates(rates map[currency.Pair]decimal.Decimal) []Rate {
	out := make([]Rate, 0, len(rates))
	for _, src := range models.SupportedCurrencies() {
		for _, dst := range models.SupportedCurrencies() {
			if r, ok := rates[currency.Pair{Source: src, Target: dst}]; ok {
				out = append(out, Rate{Source: src, Target: dst, Rate: r})
			}
		}
	}
	return out
}

func ToApiRefundability(r *models.RefundabilityResult) Refundability {
	return Refundability{
		SourceId:              r.SourceId,
		SourceKind:            r.SourceKind,
		TransactionId:         r.TransactionId,
		OriginalAmount:        r.OriginalAmount,
		AlreadyRefundedAmount: r.AlreadyRefundedAmount,
		RefundableAmount:      r.RefundableAmount,
		Currency:              r.Currency,
		IsRefundable:          r.IsRefundable,
		Reason:                r.Reason,
	}
}

func ToApiRefund(r *refund.Result) Refund {
	return Refund{
		Refund:        ToApiTransaction(r.Refund),
		Refundability: ToApiRefundability(&r.Refundability),
	}
}

func ToApiSweepResult(r sweeper.Result) SweepResult {
	return SweepResult{
		Scanned:       r.Scanned,
		MarkedOverdue: r.MarkedOverdue,
		Skipped:       r.Skipped,
		Failed:        r.Failed,
	}
}
