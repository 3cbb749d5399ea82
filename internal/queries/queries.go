// Package queries holds the read-side use cases. They never mutate state.
package queries

import (
	"context"
	"fmt"

	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/repository"
	"github.com/sirupsen/logrus"
)

// FindServers lists servers matching Options
type FindServers struct {
	Options repository.ListOptions
}

// FindServer loads one server by id, discarded or not
type FindServer struct {
	ID models.ID
}

// FindApplications lists applications matching Options
type FindApplications struct {
	Options repository.ListOptions
}

// FindApplication loads one application by id, discarded or not
type FindApplication struct {
	ID models.ID
}

// Handlers implements every query against the store's repositories
type Handlers struct {
	store repository.Store
}

// NewHandlers creates the query handlers
func NewHandlers(store repository.Store) *Handlers {
	return &Handlers{store: store}
}

// Register adds every query handler to the bus builder
func (h *Handlers) Register(b *bus.Builder) {
	bus.HandleQuery(b, h.FindServers)
	bus.HandleQuery(b, h.FindServer)
	bus.HandleQuery(b, h.FindApplications)
	bus.HandleQuery(b, h.FindApplication)
}

func (h *Handlers) FindServers(ctx context.Context, q FindServers) (models.QueryResponse[models.ServerResponse], error) {
	if err := filter.ServerSchema.Validate(q.Options); err != nil {
		return models.QueryResponse[models.ServerResponse]{}, err
	}

	page, err := h.store.Repositories().Servers.FindMany(ctx, q.Options)
	if err != nil {
		return models.QueryResponse[models.ServerResponse]{}, err
	}

	items := make([]models.ServerResponse, 0, len(page.Items))
	for _, s := range page.Items {
		items = append(items, s.ToResponse())
	}

	logListed(ctx, "servers", q.Options, page.Total, len(items))
	return envelope(page.Total, q.Options, items), nil
}

func (h *Handlers) FindServer(ctx context.Context, q FindServer) (models.ServerResponse, error) {
	server, err := h.store.Repositories().Servers.FindByID(ctx, q.ID)
	if err != nil {
		return models.ServerResponse{}, err
	}
	if server == nil {
		return models.ServerResponse{}, fmt.Errorf("%w: server %s", models.ErrNotFound, q.ID)
	}
	return server.ToResponse(), nil
}

func (h *Handlers) FindApplications(ctx context.Context, q FindApplications) (models.QueryResponse[models.ApplicationResponse], error) {
	if err := filter.ApplicationSchema.Validate(q.Options); err != nil {
		return models.QueryResponse[models.ApplicationResponse]{}, err
	}

	page, err := h.store.Repositories().Applications.FindMany(ctx, q.Options)
	if err != nil {
		return models.QueryResponse[models.ApplicationResponse]{}, err
	}

	items := make([]models.ApplicationResponse, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, a.ToResponse())
	}

	logListed(ctx, "applications", q.Options, page.Total, len(items))
	return envelope(page.Total, q.Options, items), nil
}

func (h *Handlers) FindApplication(ctx context.Context, q FindApplication) (models.ApplicationResponse, error) {
	app, err := h.store.Repositories().Applications.FindByID(ctx, q.ID)
	if err != nil {
		return models.ApplicationResponse{}, err
	}
	if app == nil {
		return models.ApplicationResponse{}, fmt.Errorf("%w: application %s", models.ErrNotFound, q.ID)
	}
	return app.ToResponse(), nil
}

// envelope reports a zero limit as the total so the offsets stay meaningful
func envelope[T any](total int, opts repository.ListOptions, items []T) models.QueryResponse[T] {
	limit := opts.Limit
	if limit == 0 {
		limit = total
	}
	return models.NewQueryResponse(total, limit, opts.Offset, items)
}

func logListed(ctx context.Context, resource string, opts repository.ListOptions, total, returned int) {
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"resource": resource,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
		"total":    total,
		"returned": returned,
	}).Debug("Listed")
}
