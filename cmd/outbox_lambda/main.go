package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/wallet-ledger/pkg/app"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/outbox"
	"github.com/joho/godotenv"
)

var (
	relay  *outbox.Relay
	logger *slog.Logger
)

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.Queue.EventsQueueURL == "" {
		log.Fatal("SQS_EVENTS_QUEUE_URL environment variable not set")
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise services: %v", err)
	}
	relay = a.Relay
}

// HandleRequest drains pending outbox events on each scheduled invocation.
// Returning an error makes the scheduler retry; events already sent are
// marked published and are not sent again.
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	total := 0
	for {
		n, err := relay.RunOnce(ctx)
		total += n
		if err != nil {
			logger.Error("outbox relay failed", "published", total, "error", err)
			return err
		}
		if n < outbox.DefaultBatchSize {
			break
		}
	}
	logger.Info("outbox relay finished", "event_id", event.ID, "published", total)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
