// Package sweeper moves credit grants past their due date to Overdue.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/wallet"
)

// ErrAlreadyRunning is returned by RunOnce while another sweep is in progress.
var ErrAlreadyRunning = errors.New("credit sweep already running")

const (
	// DefaultInterval is used when New is given a non-positive interval.
	DefaultInterval = time.Hour

	lockKey = "sweeper:credit-overdue"
)

// Result summarizes one sweep.
type Result struct {
	Scanned       int
	MarkedOverdue int
	Skipped       int
	Failed        int
}

// Sweeper periodically marks overdue credit grants.
type Sweeper struct {
	store    storage.WalletReader
	wallets  *wallet.Service
	locker   Locker
	logger   *slog.Logger
	interval time.Duration

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sweeper. locker may be nil when only one process sweeps.
func New(store storage.WalletReader, wallets *wallet.Service, locker Locker, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		wallets:  wallets,
		locker:   locker,
		logger:   logger,
		interval: interval,
	}
}

// Start runs a sweep every interval until ctx is done or Stop is called.
// It returns immediately; calling Start on a started Sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) && ctx.Err() == nil {
					s.logger.Error("credit sweep failed", "error", err)
				}
			}
		}
	}(s.done)
	s.logger.Info("credit sweeper started", "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("credit sweeper stopped")
}

// RunOnce performs a single sweep. A failure on one wallet is logged and
// counted; it never stops the rest of the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, lockKey, s.interval)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			s.logger.Info("credit sweep held by another instance")
			return Result{}, ErrAlreadyRunning
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	start := time.Now()
	now := s.wallets.Now()
	ids, err := s.store.ListWalletsWithCreditDueBefore(ctx, now)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		marked, err := s.markOverdue(ctx, id)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("failed to mark credit overdue", "wallet_id", id, "error", err)
		case marked:
			res.MarkedOverdue++
		default:
			res.Skipped++
		}
	}

	s.logger.Info("credit sweep finished",
		"scanned", res.Scanned,
		"marked_overdue", res.MarkedOverdue,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration", time.Since(start))
	return res, nil
}

// markOverdue reports false when the wallet no longer has an Active grant
// that is due, e.g. because it was settled after the scan.
func (s *Sweeper) markOverdue(ctx context.Context, walletID string) (bool, error) {
	var marked bool
	err := s.wallets.Update(ctx, "mark_credit_overdue", walletID, func(ctx context.Context, w *models.Wallet, changes *storage.Changes) error {
		marked = false
		grant := w.OutstandingCredit()
		if grant == nil || grant.Status != models.CreditActive {
			return nil
		}
		now := s.wallets.Now()
		g, err := w.MarkCreditOverdue(now)
		if err != nil || g == nil {
			return err
		}
		marked = true
		return changes.AddEvent(models.CreditEvent(models.EventCreditOverdue, g, now))
	})
	return marked, err
}
