package repository

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/models"
)

// OutboxEntry is an event awaiting delivery
type OutboxEntry = database.OutboxEntry

// OutboxRepository records events with the state change and serves the dispatcher
type OutboxRepository interface {
	Record(ctx context.Context, events ...models.DomainEvent) error
	Pending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, eventID models.ID, attempts int) error
	MarkFailed(ctx context.Context, eventID models.ID, attempts int, reason string) error
}

// NewOutboxRepository creates a relational outbox
func NewOutboxRepository(db *database.Outbox) OutboxRepository {
	return db
}
