package commands

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/repository"
)

// RegisterApplication creates a new application
type RegisterApplication struct {
	Request models.RegisterApplicationRequest
}

// ModifyApplication replaces name, version and architect
type ModifyApplication struct {
	ID      models.ID
	Request models.ModifyApplicationRequest
}

// DiscardApplication retires an application
type DiscardApplication struct {
	ID models.ID
}

func (h *Handlers) RegisterApplication(ctx context.Context, cmd RegisterApplication) (models.ApplicationResponse, error) {
	req := cmd.Request
	app, err := models.RegisterApplication(req.Name, req.Version, req.Architect)
	if err != nil {
		return models.ApplicationResponse{}, err
	}

	if err := ensureApplicationNameFree(ctx, h.store.Repositories(), req.Name); err != nil {
		return models.ApplicationResponse{}, err
	}

	err = h.commit(ctx, app, func(r repository.Repositories) error {
		return r.Applications.Add(ctx, app)
	})
	if err != nil {
		return models.ApplicationResponse{}, err
	}

	logger.FromContext(ctx).WithField("application_id", app.ID()).Info("Application registered")
	return app.ToResponse(), nil
}

func (h *Handlers) ModifyApplication(ctx context.Context, cmd ModifyApplication) (models.ApplicationResponse, error) {
	repos := h.store.Repositories()
	app, err := repos.Applications.FindByID(ctx, cmd.ID)
	if err != nil {
		return models.ApplicationResponse{}, err
	}
	if app == nil {
		return models.ApplicationResponse{}, notFound("application", cmd.ID)
	}

	current, err := app.Name()
	if err != nil {
		return models.ApplicationResponse{}, err
	}
	req := cmd.Request
	if req.Name != current {
		if err := ensureApplicationNameFree(ctx, repos, req.Name); err != nil {
			return models.ApplicationResponse{}, err
		}
	}

	if err := app.SetName(req.Name); err != nil {
		return models.ApplicationResponse{}, err
	}
	if err := app.SetVersion(req.Version); err != nil {
		return models.ApplicationResponse{}, err
	}
	if err := app.SetArchitect(req.Architect); err != nil {
		return models.ApplicationResponse{}, err
	}

	if len(app.DomainEvents()) > 0 {
		err = h.commit(ctx, app, func(r repository.Repositories) error {
			return r.Applications.Update(ctx, app)
		})
		if err != nil {
			return models.ApplicationResponse{}, err
		}
	}

	logger.FromContext(ctx).WithField("application_id", app.ID()).Info("Application modified")
	return app.ToResponse(), nil
}

func (h *Handlers) DiscardApplication(ctx context.Context, cmd DiscardApplication) (models.ApplicationResponse, error) {
	app, err := h.store.Repositories().Applications.FindByID(ctx, cmd.ID)
	if err != nil {
		return models.ApplicationResponse{}, err
	}
	if app == nil {
		return models.ApplicationResponse{}, notFound("application", cmd.ID)
	}

	if err := app.Discard(); err != nil {
		return models.ApplicationResponse{}, err
	}
	err = h.commit(ctx, app, func(r repository.Repositories) error {
		return r.Applications.Update(ctx, app)
	})
	if err != nil {
		return models.ApplicationResponse{}, err
	}

	logger.FromContext(ctx).WithField("application_id", app.ID()).Info("Application discarded")
	return app.ToResponse(), nil
}

func ensureApplicationNameFree(ctx context.Context, repos repository.Repositories, name string) error {
	page, err := repos.Applications.FindMany(ctx, nameFilter(name))
	if err != nil {
		return err
	}
	if page.Total > 0 {
		return alreadyExists("application", name)
	}
	return nil
}
