package models

import (
	"fmt"
	"strings"
)

// AggregateRoot carries identity, lifecycle and the pending event buffer
// shared by Server and Application. Events are dispatched after persistence.
type AggregateRoot struct {
	id            ID
	aggregateType AggregateType
	discarded     bool
	revision      int
	events        []DomainEvent
}

// ID returns the aggregate's identity. It stays readable after discard.
func (a *AggregateRoot) ID() ID { return a.id }

// Revision returns the persisted revision used for conditional updates.
func (a *AggregateRoot) Revision() int { return a.revision }

// IsDiscarded reports whether the aggregate reached its terminal state.
func (a *AggregateRoot) IsDiscarded() bool { return a.discarded }

// RegisterDomainEvent appends an event; emission order is preserved.
func (a *AggregateRoot) RegisterDomainEvent(e DomainEvent) {
	a.events = append(a.events, e)
}

// DomainEvents returns a copy of the pending events in emission order.
func (a *AggregateRoot) DomainEvents() []DomainEvent {
	out := make([]DomainEvent, len(a.events))
	copy(out, a.events)
	return out
}

// ClearDomainEvents empties the buffer.
func (a *AggregateRoot) ClearDomainEvents() {
	a.events = nil
}

// MarkPersisted records the revision the store now holds.
func (a *AggregateRoot) MarkPersisted(revision int) {
	a.revision = revision
}

func (a *AggregateRoot) ensureActive() error {
	if a.discarded {
		return fmt.Errorf("%w: %s %s", ErrDiscardedEntity, a.aggregateType, a.id)
	}
	return nil
}

func (a *AggregateRoot) record(kind EventKind, oldValue, newValue any) {
	a.RegisterDomainEvent(NewDomainEvent(a.aggregateType, a.id, kind, oldValue, newValue))
}

// discard moves the aggregate to its terminal state and emits Discarded.
func (a *AggregateRoot) discard() error {
	if err := a.ensureActive(); err != nil {
		return err
	}
	a.discarded = true
	a.record(EventDiscarded, false, true)
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrValidation, field)
	}
	return nil
}
