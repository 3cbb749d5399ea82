package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imyashkale/inventoryserver/internal/models"
	"gorm.io/gorm"
)

// Outbox stores domain events next to the state change that produced them
type Outbox struct {
	db *gorm.DB
}

// NewOutbox creates an Outbox handle bound to db
func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// OutboxEntry is a pending event with its queue position
type OutboxEntry struct {
	Sequence int64
	Attempts int
	Event    models.DomainEvent
}

// Record appends events in emission order
func (o *Outbox) Record(ctx context.Context, events ...models.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]OutboxRecord, 0, len(events))
	for _, e := range events {
		oldValue, err := json.Marshal(e.OldValue())
		if err != nil {
			return fmt.Errorf("failed to encode old value of %s: %w", e.EventID(), err)
		}
		newValue, err := json.Marshal(e.NewValue())
		if err != nil {
			return fmt.Errorf("failed to encode new value of %s: %w", e.EventID(), err)
		}
		rows = append(rows, OutboxRecord{
			EventID:       e.EventID().String(),
			AggregateType: string(e.AggregateType()),
			AggregateID:   e.AggregateID().String(),
			Kind:          string(e.Kind()),
			RoutingKey:    e.RoutingKey(),
			OldValue:      string(oldValue),
			NewValue:      string(newValue),
			OccurredOn:    e.OccurredOn(),
			Status:        OutboxPending,
		})
	}

	if err := o.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record events: %w", err)
	}
	return nil
}

// Pending returns up to limit undelivered events, oldest first
func (o *Outbox) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	var rows []OutboxRecord
	err := o.db.WithContext(ctx).
		Where("status = ?", OutboxPending).
		Order("sequence").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}

	entries := make([]OutboxEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, OutboxEntry{
			Sequence: r.Sequence,
			Attempts: r.Attempts,
			Event: models.RestoreDomainEvent(
				models.ID(r.EventID),
				models.AggregateType(r.AggregateType),
				models.ID(r.AggregateID),
				models.EventKind(r.Kind),
				decodeValue(r.OldValue),
				decodeValue(r.NewValue),
				r.OccurredOn,
			),
		})
	}
	return entries, nil
}

// MarkDelivered closes an event after the sink accepted it
func (o *Outbox) MarkDelivered(ctx context.Context, eventID models.ID, attempts int) error {
	now := time.Now().UTC()
	return o.db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("event_id = ?", eventID.String()).
		UpdateColumns(map[string]any{
			"status":       OutboxDelivered,
			"attempts":     attempts,
			"last_error":   "",
			"delivered_at": now,
		}).Error
}

// MarkFailed parks an event once retries are exhausted. The entity rows are untouched.
func (o *Outbox) MarkFailed(ctx context.Context, eventID models.ID, attempts int, reason string) error {
	return o.db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("event_id = ?", eventID.String()).
		UpdateColumns(map[string]any{
			"status":     OutboxFailed,
			"attempts":   attempts,
			"last_error": reason,
		}).Error
}

// CountByStatus reports how many events are in each delivery state
func (o *Outbox) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string
		Total  int
	}
	err := o.db.WithContext(ctx).Model(&OutboxRecord{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

func decodeValue(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
