package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/chris/wallet-ledger/pkg/sweeper/mocks"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store   *memory.Store
	wallets *wallet.Service
	clock   *clock
	logger  *slog.Logger
}

func newFixture() *fixture {
	f := &fixture{
		store:  memory.New(),
		clock:  &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.wallets = wallet.NewService(f.store, f.logger, wallet.Options{
		DefaultCreditLimit: decimal.NewFromInt(1000),
		Now:                f.clock.Now,
	})
	return f
}

func (f *fixture) walletWithCredit(t *testing.T, userID string, due time.Duration) string {
	t.Helper()
	ctx := context.Background()
	created, err := f.wallets.CreateWallet(ctx, userID)
	require.NoError(t, err)
	_, err = f.wallets.AssignCredit(ctx, created.WalletID, decimal.NewFromInt(100), f.clock.Now().Add(due), "loan")
	require.NoError(t, err)
	return created.WalletID
}

func grantStatus(t *testing.T, f *fixture, walletID string) models.CreditStatus {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.NotEmpty(t, w.CreditHistory)
	return w.CreditHistory[len(w.CreditHistory)-1].Status
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	due := f.walletWithCredit(t, "user-1", time.Hour)
	notDue := f.walletWithCredit(t, "user-2", 48*time.Hour)
	f.clock.Advance(2 * time.Hour)

	s := New(f.store, f.wallets, nil, f.logger, time.Minute)
	res, err := s.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, MarkedOverdue: 1}, res)
	assert.Equal(t, models.CreditOverdue, grantStatus(t, f, due))
	assert.Equal(t, models.CreditActive, grantStatus(t, f, notDue))

	res, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "overdue grants are not scanned again")

	events, err := f.store.ListPendingEvents(ctx, 0)
	require.NoError(t, err)
	var overdue int
	for _, ev := range events {
		if ev.Type == models.EventCreditOverdue {
			overdue++
		}
	}
	assert.Equal(t, 1, overdue)
}

// staleScan reports wallets the way a scan that ran before a settlement would.
type staleScan struct {
	*memory.Store
	ids []string
}

func (s *staleScan) ListWalletsWithCreditDueBefore(ctx context.Context, t time.Time) ([]string, error) {
	return s.ids, nil
}

func TestRunOnceSkipsAndContinues(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	settled := f.walletWithCredit(t, "user-1", time.Hour)
	due := f.walletWithCredit(t, "user-2", time.Hour)
	_, err := f.wallets.SettleCredit(ctx, settled, "tx-1")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	scan := &staleScan{Store: f.store, ids: []string{"missing-wallet", settled, due}}
	s := New(scan, f.wallets, nil, f.logger, time.Minute)
	res, err := s.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, MarkedOverdue: 1, Skipped: 1, Failed: 1}, res)
	assert.Equal(t, models.CreditSettled, grantStatus(t, f, settled))
	assert.Equal(t, models.CreditOverdue, grantStatus(t, f, due))
}

type failingScan struct {
	*memory.Store
}

func (failingScan) ListWalletsWithCreditDueBefore(ctx context.Context, t time.Time) ([]string, error) {
	return nil, errors.New("ThrottlingException")
}

func TestRunOnceErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Already Running", func(t *testing.T) {
		f := newFixture()
		s := New(f.store, f.wallets, nil, f.logger, time.Minute)
		s.running.Store(true)

		_, err := s.RunOnce(ctx)

		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("Scan Error", func(t *testing.T) {
		f := newFixture()
		s := New(failingScan{Store: f.store}, f.wallets, nil, f.logger, time.Minute)

		_, err := s.RunOnce(ctx)

		assert.Error(t, err)
		assert.False(t, s.running.Load())
	})
}

func TestRunOnceWithLock(t *testing.T) {
	ctx := context.Background()

	t.Run("Held Elsewhere", func(t *testing.T) {
		f := newFixture()
		client := mocks.NewLockClient(t)
		client.On("SetNX", mock.Anything, lockKey, mock.Anything, time.Minute).Return(redis.NewBoolResult(false, nil)).Once()

		s := New(f.store, f.wallets, NewRedisLocker(client), f.logger, time.Minute)
		_, err := s.RunOnce(ctx)

		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("Acquired And Released", func(t *testing.T) {
		f := newFixture()
		locker := NewRedisLocker(nil)
		client := mocks.NewLockClient(t)
		locker.client = client
		client.On("SetNX", mock.Anything, lockKey, locker.owner, time.Minute).Return(redis.NewBoolResult(true, nil)).Once()
		client.On("Eval", mock.Anything, unlockScript, []string{lockKey}, locker.owner).Return(redis.NewCmdResult(int64(1), nil)).Once()

		s := New(f.store, f.wallets, locker, f.logger, time.Minute)
		_, err := s.RunOnce(ctx)

		assert.NoError(t, err)
	})

	t.Run("Redis Error", func(t *testing.T) {
		f := newFixture()
		client := mocks.NewLockClient(t)
		client.On("SetNX", mock.Anything, lockKey, mock.Anything, time.Minute).Return(redis.NewBoolResult(false, errors.New("connection refused"))).Once()

		s := New(f.store, f.wallets, NewRedisLocker(client), f.logger, time.Minute)
		_, err := s.RunOnce(ctx)

		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestStartStop(t *testing.T) {
	f := newFixture()
	walletID := f.walletWithCredit(t, "user-1", time.Hour)
	f.clock.Advance(2 * time.Hour)

	s := New(f.store, f.wallets, nil, f.logger, 10*time.Millisecond)
	s.Start(context.Background())
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		w, err := f.store.GetWallet(context.Background(), walletID)
		return err == nil && w.CreditHistory[0].Status == models.CreditOverdue
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}
