package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/storage"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = 5 * time.Second
)

// Relay publishes pending outbox events and marks them published.
// Delivery is at least once: an event published just before a crash is sent again.
type Relay struct {
	store     storage.OutboxStore
	publisher Publisher
	logger    *slog.Logger
	batchSize int32
	interval  time.Duration
}

// NewRelay creates a Relay with the default batch size.
func NewRelay(store storage.OutboxStore, publisher Publisher, logger *slog.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		batchSize: DefaultBatchSize,
		interval:  interval,
	}
}

// RunOnce publishes one batch, oldest first, and returns how many events
// were published. It stops at the first publish failure so later events
// are not delivered ahead of it.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.ListPendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range events {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Error("failed to publish event", "event_id", ev.Id, "event_type", ev.Type, "error", err)
			return published, err
		}
		if err := r.store.MarkEventPublished(ctx, ev.Id, time.Now().UTC()); err != nil {
			r.logger.Error("failed to mark event published", "event_id", ev.Id, "error", err)
			return published, err
		}
		published++
	}
	if published > 0 {
		r.logger.Info("outbox events published", "count", published)
	}
	return published, nil
}

// Run relays events every interval until ctx is done. A full batch is
// followed immediately by the next one.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox relay pass failed", "error", err)
		}
		if err == nil && n == int(r.batchSize) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
