// Package memory is an in-process Storage with the same commit semantics as
// the DynamoDB store. It backs local runs and service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// Store implements storage.Storage in memory.
type Store struct {
	mu sync.RWMutex

	wallets       map[string]*models.Wallet // by wallet ID
	walletsByUser map[string]string
	accounts      map[string]string // account ID -> wallet ID

	transactions map[string]*models.Transaction
	txOrder      []string

	payments         map[string]*models.PaymentTransaction // by authority
	paymentAuthority map[string]string                     // payment ID -> authority

	outbox []*models.OutboxEvent
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		wallets:          make(map[string]*models.Wallet),
		walletsByUser:    make(map[string]string),
		accounts:         make(map[string]string),
		transactions:     make(map[string]*models.Transaction),
		payments:         make(map[string]*models.PaymentTransaction),
		paymentAuthority: make(map[string]string),
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

func (s *Store) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", walletID, storage.ErrNotFound)
	}
	return w.Clone(), nil
}

func (s *Store) GetWalletByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	s.mu.RLock()
	id, ok := s.walletsByUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wallet for user ID %s: %w", userID, storage.ErrNotFound)
	}
	return s.GetWallet(ctx, id)
}

func (s *Store) GetWalletByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	s.mu.RLock()
	id, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	return s.GetWallet(ctx, id)
}

func (s *Store) ListWalletsWithCreditDueBefore(ctx context.Context, t time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, w := range s.wallets {
		for _, h := range w.CreditHistory {
			if h.Status == models.CreditActive && h.DueDate.Before(t) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	c := *tx
	return &c, nil
}

func (s *Store) ListTransactionsByWallet(ctx context.Context, walletID string, limit int32) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		tx := s.transactions[s.txOrder[i]]
		if tx.WalletId != walletID {
			continue
		}
		out = append(out, *tx)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListTransactionsByRelated(ctx context.Context, relatedID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.RelatedTransactionId != nil && *tx.RelatedTransactionId == relatedID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *Store) GetPaymentByAuthority(ctx context.Context, authority string) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[authority]
	if !ok {
		return nil, fmt.Errorf("payment with authority %s: %w", authority, storage.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID string) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	authority, ok := s.paymentAuthority[paymentID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, storage.ErrNotFound)
	}
	return s.GetPaymentByAuthority(ctx, authority)
}

func (s *Store) ListPendingEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OutboxEvent
	for _, e := range s.outbox {
		if e.Status != models.OutboxPending {
			continue
		}
		out = append(out, *e)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkEventPublished(ctx context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.Id == eventID {
			if e.Status == models.OutboxPending {
				e.Status = models.OutboxPublished
				e.PublishedAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("outbox event %s: %w", eventID, storage.ErrNotFound)
}

// Commit checks every condition before applying anything, so a failed
// commit leaves the store untouched.
func (s *Store) Commit(ctx context.Context, c *storage.Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(c); err != nil {
		return err
	}

	if w := c.Wallet; w != nil {
		saved := w.Clone()
		saved.Version = w.Version + 1
		s.wallets[w.Id] = saved
		s.walletsByUser[w.UserId] = w.Id
		w.Version = saved.Version
	}
	for _, a := range c.NewAccounts {
		s.accounts[a.Id] = a.WalletId
	}
	for _, tx := range c.NewTransactions {
		t := tx
		s.transactions[t.Id] = &t
		s.txOrder = append(s.txOrder, t.Id)
	}
	for _, u := range c.TransactionUpdates {
		tx := s.transactions[u.TransactionID]
		tx.Status = u.To
		tx.UpdatedAt = u.At
		if u.Refunded != nil {
			tx.RefundedAmount = u.Refunded.To
		}
	}
	if p := c.NewPayment; p != nil {
		saved := *p
		s.payments[p.Authority] = &saved
		s.paymentAuthority[p.Id] = p.Authority
	}
	if u := c.PaymentUpdate; u != nil {
		saved := *u.Payment
		s.payments[saved.Authority] = &saved
	}
	for _, e := range c.Events {
		ev := e
		s.outbox = append(s.outbox, &ev)
	}
	return nil
}

func (s *Store) check(c *storage.Changes) error {
	if w := c.Wallet; w != nil {
		if w.Version == 0 {
			if _, taken := s.walletsByUser[w.UserId]; taken {
				return fmt.Errorf("wallet for user ID %s already exists: %w", w.UserId, storage.ErrConflict)
			}
		} else {
			cur, ok := s.wallets[w.Id]
			if !ok || cur.Version != w.Version {
				return fmt.Errorf("wallet %s version %d is stale: %w", w.Id, w.Version, storage.ErrConflict)
			}
		}
	}
	for _, a := range c.NewAccounts {
		if _, taken := s.accounts[a.Id]; taken {
			return fmt.Errorf("account %s already exists: %w", a.Id, storage.ErrConflict)
		}
	}
	for _, tx := range c.NewTransactions {
		if _, taken := s.transactions[tx.Id]; taken {
			return fmt.Errorf("transaction %s already exists: %w", tx.Id, storage.ErrConflict)
		}
	}
	for _, u := range c.TransactionUpdates {
		tx, ok := s.transactions[u.TransactionID]
		if !ok || tx.Status != u.From {
			return fmt.Errorf("transaction %s is no longer %s: %w", u.TransactionID, u.From, storage.ErrConflict)
		}
		if u.Refunded != nil && !tx.RefundedAmount.Equal(u.Refunded.From) {
			return fmt.Errorf("transaction %s refunded amount is no longer %s: %w", u.TransactionID, u.Refunded.From, storage.ErrConflict)
		}
	}
	if p := c.NewPayment; p != nil {
		if _, taken := s.payments[p.Authority]; taken {
			return fmt.Errorf("payment with authority %s already exists: %w", p.Authority, storage.ErrConflict)
		}
	}
	if u := c.PaymentUpdate; u != nil {
		cur, ok := s.payments[u.Payment.Authority]
		if !ok || cur.Status != u.From {
			return fmt.Errorf("payment %s is no longer %s: %w", u.Payment.Authority, u.From, storage.ErrConflict)
		}
	}
	return nil
}
