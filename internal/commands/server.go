package commands

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/repository"
	"github.com/sirupsen/logrus"
)

// RegisterServer creates a new server
type RegisterServer struct {
	Request models.RegisterServerRequest
}

// ModifyServer replaces every mutable attribute of a server
type ModifyServer struct {
	ID      models.ID
	Request models.ModifyServerRequest
}

// DiscardServer retires a server. The row stays readable by id.
type DiscardServer struct {
	ID models.ID
}

func (h *Handlers) RegisterServer(ctx context.Context, cmd RegisterServer) (models.ServerResponse, error) {
	server, err := models.RegisterServer(cmd.Request.ToSpec())
	if err != nil {
		return models.ServerResponse{}, err
	}

	repos := h.store.Repositories()
	if err := ensureServerNameFree(ctx, repos, cmd.Request.Name); err != nil {
		return models.ServerResponse{}, err
	}
	apps, _ := server.Applications()
	if err := ensureApplicationsActive(ctx, repos, apps); err != nil {
		return models.ServerResponse{}, err
	}

	err = h.commit(ctx, server, func(r repository.Repositories) error {
		return r.Servers.Add(ctx, server)
	})
	if err != nil {
		return models.ServerResponse{}, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"server_id": server.ID(),
		"name":      cmd.Request.Name,
	}).Info("Server registered")
	return server.ToResponse(), nil
}

func (h *Handlers) ModifyServer(ctx context.Context, cmd ModifyServer) (models.ServerResponse, error) {
	repos := h.store.Repositories()
	server, err := repos.Servers.FindByID(ctx, cmd.ID)
	if err != nil {
		return models.ServerResponse{}, err
	}
	if server == nil {
		return models.ServerResponse{}, notFound("server", cmd.ID)
	}

	current, err := server.Name()
	if err != nil {
		return models.ServerResponse{}, err
	}
	req := cmd.Request
	if req.Name != current {
		if err := ensureServerNameFree(ctx, repos, req.Name); err != nil {
			return models.ServerResponse{}, err
		}
	}

	spec := req.ToSpec()
	installed, err := server.Applications()
	if err != nil {
		return models.ServerResponse{}, err
	}
	if err := ensureApplicationsActive(ctx, repos, newInstalls(installed, spec.Applications)); err != nil {
		return models.ServerResponse{}, err
	}

	if err := applyServerChanges(server, spec, req.Status); err != nil {
		return models.ServerResponse{}, err
	}

	changes := len(server.DomainEvents())
	if changes > 0 {
		err = h.commit(ctx, server, func(r repository.Repositories) error {
			return r.Servers.Update(ctx, server)
		})
		if err != nil {
			return models.ServerResponse{}, err
		}
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"server_id": server.ID(),
		"changes":   changes,
		"revision":  server.Revision(),
	}).Info("Server modified")
	return server.ToResponse(), nil
}

func (h *Handlers) DiscardServer(ctx context.Context, cmd DiscardServer) (models.ServerResponse, error) {
	server, err := h.store.Repositories().Servers.FindByID(ctx, cmd.ID)
	if err != nil {
		return models.ServerResponse{}, err
	}
	if server == nil {
		return models.ServerResponse{}, notFound("server", cmd.ID)
	}

	if err := server.Discard(); err != nil {
		return models.ServerResponse{}, err
	}
	err = h.commit(ctx, server, func(r repository.Repositories) error {
		return r.Servers.Update(ctx, server)
	})
	if err != nil {
		return models.ServerResponse{}, err
	}

	logger.FromContext(ctx).WithField("server_id", server.ID()).Info("Server discarded")
	return server.ToResponse(), nil
}

// applyServerChanges runs each setter in attribute order so events follow it too
func applyServerChanges(server *models.Server, spec models.ServerSpec, status string) error {
	steps := []func() error{
		func() error { return server.SetName(spec.Name) },
		func() error { return server.SetCPU(spec.CPU) },
		func() error { return server.SetRAM(spec.RAM) },
		func() error { return server.SetHDD(spec.HDD) },
		func() error { return server.SetEnvironment(spec.Environment) },
		func() error { return server.SetOperatingSystem(spec.OperatingSystem) },
		func() error { return server.SetCredentials(spec.Credentials) },
		func() error { return server.SetApplications(spec.Applications) },
	}
	if status != "" {
		steps = append(steps, func() error { return server.SetStatus(models.ServerStatus(status)) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func ensureServerNameFree(ctx context.Context, repos repository.Repositories, name string) error {
	page, err := repos.Servers.FindMany(ctx, nameFilter(name))
	if err != nil {
		return err
	}
	if page.Total > 0 {
		return alreadyExists("server", name)
	}
	return nil
}

// newInstalls returns the requested installs whose application is not already
// installed. Existing installs stay valid after their application is discarded.
func newInstalls(installed, requested []models.ServerApplication) []models.ServerApplication {
	known := make(map[models.ID]struct{}, len(installed))
	for _, sa := range installed {
		known[sa.ApplicationID] = struct{}{}
	}
	var added []models.ServerApplication
	for _, sa := range requested {
		if _, ok := known[sa.ApplicationID]; !ok {
			added = append(added, sa)
		}
	}
	return added
}

// ensureApplicationsActive rejects installs that point at unknown or discarded applications
func ensureApplicationsActive(ctx context.Context, repos repository.Repositories, installs []models.ServerApplication) error {
	for _, install := range installs {
		app, err := repos.Applications.FindByID(ctx, install.ApplicationID)
		if err != nil {
			return err
		}
		if app == nil || app.IsDiscarded() {
			return notFound("application", install.ApplicationID)
		}
	}
	return nil
}
