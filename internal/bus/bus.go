// Package bus routes commands and queries to the handler registered for their type.
//
// Handlers are registered on a Builder during startup. Build freezes the table
// into a Bus that is safe for concurrent use and cannot be changed afterwards.
package bus

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/imyashkale/inventoryserver/internal/logger"
)

// ErrNoHandler is returned when nothing is registered for a message type
var ErrNoHandler = errors.New("no handler registered")

type handlerFunc func(ctx context.Context, msg any) (any, error)

// Builder collects handlers before the bus is built
type Builder struct {
	commands map[reflect.Type]handlerFunc
	queries  map[reflect.Type]handlerFunc
}

// NewBuilder creates an empty Builder
func NewBuilder() *Builder {
	return &Builder{
		commands: make(map[reflect.Type]handlerFunc),
		queries:  make(map[reflect.Type]handlerFunc),
	}
}

// HandleCommand registers h for commands of type C. Registering C twice panics.
func HandleCommand[C, R any](b *Builder, h func(context.Context, C) (R, error)) {
	register(b.commands, "command", h)
}

// HandleQuery registers h for queries of type Q. Registering Q twice panics.
func HandleQuery[Q, R any](b *Builder, h func(context.Context, Q) (R, error)) {
	register(b.queries, "query", h)
}

func register[M, R any](table map[reflect.Type]handlerFunc, kind string, h func(context.Context, M) (R, error)) {
	t := reflect.TypeFor[M]()
	if _, dup := table[t]; dup {
		panic(fmt.Sprintf("bus: %s handler for %s registered twice", kind, t))
	}
	table[t] = func(ctx context.Context, msg any) (any, error) {
		return h(ctx, msg.(M))
	}
}

// Build returns an immutable Bus holding a copy of the registered handlers
func (b *Builder) Build() *Bus {
	return &Bus{
		commands: maps.Clone(b.commands),
		queries:  maps.Clone(b.queries),
	}
}

// Bus dispatches messages by their dynamic type
type Bus struct {
	commands map[reflect.Type]handlerFunc
	queries  map[reflect.Type]handlerFunc
}

// Send dispatches a command and returns its result as R
func Send[R any](ctx context.Context, b *Bus, cmd any) (R, error) {
	return dispatch[R](ctx, b.commands, "command", cmd)
}

// Ask dispatches a query and returns its result as R
func Ask[R any](ctx context.Context, b *Bus, query any) (R, error) {
	return dispatch[R](ctx, b.queries, "query", query)
}

func dispatch[R any](ctx context.Context, table map[reflect.Type]handlerFunc, kind string, msg any) (R, error) {
	var zero R

	t := reflect.TypeOf(msg)
	h, ok := table[t]
	if !ok {
		return zero, fmt.Errorf("%w for %s %v", ErrNoHandler, kind, t)
	}

	logger.WithField(kind, t.String()).Debug("Dispatching")

	out, err := h(ctx, msg)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	result, ok := out.(R)
	if !ok {
		return zero, fmt.Errorf("bus: %s %v returned %T, caller expected %v", kind, t, out, reflect.TypeFor[R]())
	}
	return result, nil
}
