package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AggregateType names the kind of aggregate that produced an event.
type AggregateType string

const (
	AggregateServer      AggregateType = "Server"
	AggregateApplication AggregateType = "Application"
)

// EventKind classifies what happened to an aggregate.
type EventKind string

// Kinds shared by both aggregates
const (
	EventRegistered  EventKind = "Registered"
	EventNameChanged EventKind = "NameChanged"
	EventDiscarded   EventKind = "Discarded"
)

// Server kinds
const (
	EventCPUChanged             EventKind = "CPUChanged"
	EventRAMChanged             EventKind = "RAMChanged"
	EventHDDChanged             EventKind = "HDDChanged"
	EventEnvironmentChanged     EventKind = "EnvironmentChanged"
	EventOperatingSystemChanged EventKind = "OperatingSystemChanged"
	EventCredentialsChanged     EventKind = "CredentialsChanged"
	EventApplicationsChanged    EventKind = "ApplicationsChanged"
	EventStatusChanged          EventKind = "StatusChanged"
)

// Application kinds
const (
	EventVersionChanged   EventKind = "VersionChanged"
	EventArchitectChanged EventKind = "ArchitectChanged"
)

// DomainEvent is an immutable record of a state change on an aggregate.
// All fields are set at construction and only exposed through getters.
type DomainEvent struct {
	eventID       ID
	aggregateType AggregateType
	aggregateID   ID
	kind          EventKind
	oldValue      any
	newValue      any
	occurredOn    time.Time
}

// NewDomainEvent creates an event stamped with the current UTC time.
func NewDomainEvent(aggregateType AggregateType, aggregateID ID, kind EventKind, oldValue, newValue any) DomainEvent {
	return DomainEvent{
		eventID:       NewID(),
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		kind:          kind,
		oldValue:      oldValue,
		newValue:      newValue,
		occurredOn:    time.Now().UTC(),
	}
}

// RestoreDomainEvent rebuilds an event read back from the outbox.
func RestoreDomainEvent(eventID ID, aggregateType AggregateType, aggregateID ID, kind EventKind, oldValue, newValue any, occurredOn time.Time) DomainEvent {
	return DomainEvent{
		eventID:       eventID,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		kind:          kind,
		oldValue:      oldValue,
		newValue:      newValue,
		occurredOn:    occurredOn.UTC(),
	}
}

func (e DomainEvent) EventID() ID                  { return e.eventID }
func (e DomainEvent) AggregateType() AggregateType { return e.aggregateType }
func (e DomainEvent) AggregateID() ID              { return e.aggregateID }
func (e DomainEvent) Kind() EventKind              { return e.kind }
func (e DomainEvent) OldValue() any                { return e.oldValue }
func (e DomainEvent) NewValue() any                { return e.newValue }
func (e DomainEvent) OccurredOn() time.Time        { return e.occurredOn }

// RoutingKey returns the lower-case dotted "<aggregate>.<kind>" name used by sinks.
func (e DomainEvent) RoutingKey() string {
	return strings.ToLower(string(e.aggregateType) + "." + string(e.kind))
}

type domainEventJSON struct {
	EventID       ID            `json:"event_id"`
	AggregateType AggregateType `json:"aggregate_type"`
	AggregateID   ID            `json:"aggregate_id"`
	Kind          EventKind     `json:"kind"`
	OldValue      any           `json:"old_value"`
	NewValue      any           `json:"new_value"`
	OccurredOn    time.Time     `json:"occurred_on"`
}

// MarshalJSON serializes every field plus occurred_on.
func (e DomainEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(domainEventJSON{
		EventID:       e.eventID,
		AggregateType: e.aggregateType,
		AggregateID:   e.aggregateID,
		Kind:          e.kind,
		OldValue:      e.oldValue,
		NewValue:      e.newValue,
		OccurredOn:    e.occurredOn,
	})
}
