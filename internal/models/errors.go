package models

import "errors"

var (
	// ErrNotFound is returned when an id-scoped operation targets a missing entity
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a name is already taken
	ErrAlreadyExists = errors.New("record already exists")
	// ErrDiscardedEntity is returned by accessors and mutators of a discarded aggregate
	ErrDiscardedEntity = errors.New("entity is discarded")
	// ErrInvalidIdentifier is returned when an identifier cannot be parsed
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrValidation is returned when a value object or attribute is malformed
	ErrValidation = errors.New("validation failed")
	// ErrConcurrentUpdate is returned when the stored version moved underneath an update
	ErrConcurrentUpdate = errors.New("concurrent update detected")
	// ErrImmutableEvent is reserved for attempts to rewrite a recorded domain event.
	// DomainEvent exposes no setters, so nothing in this module returns it.
	ErrImmutableEvent = errors.New("domain event is immutable")
	// ErrDelivery is returned when an event could not be handed to the sink
	ErrDelivery = errors.New("event delivery failed")
)
