package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/wallet-ledger/pkg/app"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/sweeper"
	"github.com/joho/godotenv"
)

var (
	sweep  *sweeper.Sweeper
	logger *slog.Logger
)

func init() {
	// Load environment variables for local testing.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise services: %v", err)
	}
	sweep = a.Sweeper
}

// HandleRequest is triggered by an EventBridge schedule.
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	logger.Info("starting credit sweep", "event_id", event.ID)

	res, err := sweep.RunOnce(ctx)
	if errors.Is(err, sweeper.ErrAlreadyRunning) {
		logger.Info("credit sweep skipped, another run holds the lock")
		return nil
	}
	if err != nil {
		logger.Error("credit sweep failed", "error", err)
		return err
	}
	// Failed wallets are retried by the next scheduled run.
	logger.Info("credit sweep finished", "scanned", res.Scanned, "marked_overdue", res.MarkedOverdue, "failed", res.Failed)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
