// Package events delivers recorded domain events to an external sink.
//
// Events reach a Publisher only through the outbox Dispatcher, never straight
// from a command handler, so a sink outage cannot undo a committed change.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/sirupsen/logrus"
)

// Publisher hands one event to a sink. Implementations must tolerate the
// same event arriving twice.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// PublisherFunc adapts a plain function to Publisher
type PublisherFunc func(ctx context.Context, event models.DomainEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event models.DomainEvent) error {
	return f(ctx, event)
}

// LogPublisher writes every event to the structured log
type LogPublisher struct{}

// NewLogPublisher creates the default sink
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, event models.DomainEvent) error {
	logger.WithFields(eventFields(event)).WithFields(logrus.Fields{
		"old_value": event.OldValue(),
		"new_value": event.NewValue(),
	}).Info("Domain event published")
	return nil
}

// DeliveryError reports an event the sink never accepted. It matches
// models.ErrDelivery as well as the sink's own error.
type DeliveryError struct {
	EventID    models.ID
	RoutingKey string
	Attempts   int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: event %s (%s) after %d attempts: %v", models.ErrDelivery, e.EventID, e.RoutingKey, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{models.ErrDelivery, e.Err}
}

// IsDeliveryError reports whether err carries a DeliveryError
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

func eventFields(event models.DomainEvent) logrus.Fields {
	return logrus.Fields{
		"event_id":       event.EventID(),
		"aggregate_type": event.AggregateType(),
		"aggregate_id":   event.AggregateID(),
		"routing_key":    event.RoutingKey(),
		"occurred_on":    event.OccurredOn(),
	}
}
