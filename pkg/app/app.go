// Package app assembles the services from configuration. The HTTP server and
// the lambdas share it so they run against the same wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/currency"
	"github.com/chris/wallet-ledger/pkg/outbox"
	"github.com/chris/wallet-ledger/pkg/reconciler"
	"github.com/chris/wallet-ledger/pkg/refund"
	"github.com/chris/wallet-ledger/pkg/storage"
	dydbstore "github.com/chris/wallet-ledger/pkg/storage/dynamodb"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/chris/wallet-ledger/pkg/sweeper"
	"github.com/chris/wallet-ledger/pkg/wallet"
	"github.com/redis/go-redis/v9"
)

// App holds the wired services.
type App struct {
	Store      storage.Storage
	Wallets    *wallet.Service
	Currency   *currency.Service
	Reconciler *reconciler.Reconciler
	Refunds    *refund.Engine
	Sweeper    *sweeper.Sweeper
	Relay      *outbox.Relay

	redis *redis.Client
}

// New builds every service from cfg. AWS clients are only created for the
// backends that need them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	needAWS := cfg.Storage.Backend == config.BackendDynamoDB || cfg.Queue.EventsQueueURL != ""
	var publisher outbox.Publisher = &outbox.LogPublisher{Logger: logger}
	if needAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		if cfg.Storage.Backend == config.BackendDynamoDB {
			a.Store = dydbstore.New(dynamodb.NewFromConfig(awsCfg), dydbstore.Tables{
				Wallets:      cfg.Storage.WalletsTable,
				Accounts:     cfg.Storage.AccountsTable,
				Transactions: cfg.Storage.TransactionsTable,
				Payments:     cfg.Storage.PaymentsTable,
				Outbox:       cfg.Storage.OutboxTable,
			})
		}
		if cfg.Queue.EventsQueueURL != "" {
			publisher = outbox.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue.EventsQueueURL)
		}
	}
	if a.Store == nil {
		logger.Warn("using in-memory storage; data is lost on restart")
		a.Store = memory.New()
	}

	var rates currency.RateSource = currency.NewStaticRateSource(currency.DefaultRates())
	var locker sweeper.Locker
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		rates = currency.NewCachedRateSource(rates, a.redis, cfg.Redis.RateCacheTTL, logger)
		locker = sweeper.NewRedisLocker(a.redis)
	}

	a.Wallets = wallet.NewService(a.Store, logger, wallet.Options{
		HomeCurrency:       cfg.Ledger.HomeCurrency,
		DefaultCreditLimit: cfg.Ledger.DefaultCreditLimit,
		CommitAttempts:     cfg.Ledger.CommitAttempts,
	})
	a.Currency = currency.NewService(rates, cfg.Ledger.ConversionFeeRate)
	a.Reconciler = reconciler.New(a.Wallets, a.Store, logger, reconciler.RedirectURLs{
		Success: cfg.Payments.SuccessURL,
		Failure: cfg.Payments.FailureURL,
	})
	a.Refunds = refund.New(a.Wallets, a.Store, logger, cfg.Ledger.RefundWindow)
	a.Sweeper = sweeper.New(a.Store, a.Wallets, locker, logger, cfg.Jobs.SweepInterval)
	a.Relay = outbox.NewRelay(a.Store, publisher, logger, cfg.Jobs.RelayInterval)
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
