// Package commands holds the state-changing use cases. Every handler persists
// the aggregate and its pending events in one transaction, then wakes the
// outbox dispatcher.
package commands

import (
	"context"
	"fmt"

	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/repository"
)

// Notifier is told when new events are waiting in the outbox
type Notifier interface {
	Notify()
}

// NopNotifier ignores notifications; the dispatcher still finds events on its next poll
type NopNotifier struct{}

func (NopNotifier) Notify() {}

type eventSource interface {
	DomainEvents() []models.DomainEvent
	ClearDomainEvents()
}

// Handlers implements every command against a Store
type Handlers struct {
	store    repository.Store
	notifier Notifier
}

// NewHandlers creates the command handlers
func NewHandlers(store repository.Store, notifier Notifier) *Handlers {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Handlers{store: store, notifier: notifier}
}

// Register adds every command handler to the bus builder
func (h *Handlers) Register(b *bus.Builder) {
	bus.HandleCommand(b, h.RegisterServer)
	bus.HandleCommand(b, h.ModifyServer)
	bus.HandleCommand(b, h.DiscardServer)
	bus.HandleCommand(b, h.RegisterApplication)
	bus.HandleCommand(b, h.ModifyApplication)
	bus.HandleCommand(b, h.DiscardApplication)
}

// commit runs write and records the aggregate's events atomically. The buffer
// is cleared only once the transaction has committed.
func (h *Handlers) commit(ctx context.Context, agg eventSource, write func(repository.Repositories) error) error {
	events := agg.DomainEvents()
	err := h.store.WithinTx(ctx, func(r repository.Repositories) error {
		if err := write(r); err != nil {
			return err
		}
		return r.Outbox.Record(ctx, events...)
	})
	if err != nil {
		return err
	}

	agg.ClearDomainEvents()
	if len(events) > 0 {
		h.notifier.Notify()
	}
	return nil
}

func nameFilter(name string) repository.ListOptions {
	return repository.ListOptions{
		Limit:  1,
		Filter: filter.Filter{{Attribute: "name", Operator: filter.OpEq, Value: name}},
	}
}

func alreadyExists(kind, name string) error {
	return fmt.Errorf("%w: %s named %q", models.ErrAlreadyExists, kind, name)
}

func notFound(kind string, id models.ID) error {
	return fmt.Errorf("%w: %s %s", models.ErrNotFound, kind, id)
}
