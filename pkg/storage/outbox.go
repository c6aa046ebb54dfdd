package storage

import (
	"context"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
)

// OutboxStore is used by the relay that publishes committed domain events.
type OutboxStore interface {
	// ListPendingEvents returns up to limit unpublished events, oldest first.
	ListPendingEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error)

	// MarkEventPublished flags an event as published. Marking it twice is not an error.
	MarkEventPublished(ctx context.Context, eventID string, at time.Time) error
}
