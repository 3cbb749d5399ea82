// Package seed loads an inventory YAML file and registers its contents
// through the command bus.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/commands"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/queries"
	"github.com/imyashkale/inventoryserver/internal/repository"
	"gopkg.in/yaml.v2"
)

// Inventory is the document layout of a seed file
type Inventory struct {
	Applications []models.RegisterApplicationRequest `yaml:"applications"`
	Servers      []Server                            `yaml:"servers"`
}

// Server is a server entry. Installs refer to applications by name.
type Server struct {
	models.RegisterServerRequest `yaml:",inline"`
	Installs                     []Install `yaml:"installs"`
}

// Install places a named application on a server
type Install struct {
	Application string `yaml:"application"`
	InstallDir  string `yaml:"install_dir"`
	LogDir      string `yaml:"log_dir"`
}

// Result counts what a seed run did
type Result struct {
	Created int
	Skipped int
}

// LoadFile reads and decodes an inventory file. Unknown keys are rejected.
func LoadFile(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an inventory document
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.UnmarshalStrict(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: seed file: %v", models.ErrValidation, err)
	}
	return &inv, nil
}

// Apply registers applications first, then servers. Names that already exist
// are skipped so a file can be applied repeatedly.
func Apply(ctx context.Context, b *bus.Bus, inv *Inventory) (Result, error) {
	var res Result

	for _, req := range inv.Applications {
		_, err := bus.Send[models.ApplicationResponse](ctx, b, commands.RegisterApplication{Request: req})
		if err := tally(&res, "application", req.Name, err); err != nil {
			return res, err
		}
	}

	for _, entry := range inv.Servers {
		req := entry.RegisterServerRequest
		for _, install := range entry.Installs {
			id, err := applicationID(ctx, b, install.Application)
			if err != nil {
				return res, fmt.Errorf("server %s: %w", req.Name, err)
			}
			req.Applications = append(req.Applications, models.ServerApplicationRequest{
				ApplicationId: id.String(),
				InstallDir:    install.InstallDir,
				LogDir:        install.LogDir,
			})
		}

		_, err := bus.Send[models.ServerResponse](ctx, b, commands.RegisterServer{Request: req})
		if err := tally(&res, "server", req.Name, err); err != nil {
			return res, err
		}
	}

	logger.WithField("created", res.Created).WithField("skipped", res.Skipped).Info("Seed applied")
	return res, nil
}

func tally(res *Result, kind, name string, err error) error {
	switch {
	case err == nil:
		res.Created++
		return nil
	case errors.Is(err, models.ErrAlreadyExists):
		logger.WithField(kind, name).Warn("Already registered, skipping")
		res.Skipped++
		return nil
	default:
		return fmt.Errorf("%s %s: %w", kind, name, err)
	}
}

// applicationID resolves an active application by name
func applicationID(ctx context.Context, b *bus.Bus, name string) (models.ID, error) {
	q := queries.FindApplications{Options: repository.ListOptions{
		Limit:  1,
		Filter: filter.Filter{{Attribute: "name", Operator: filter.OpEq, Value: name}},
	}}
	resp, err := bus.Ask[models.QueryResponse[models.ApplicationResponse]](ctx, b, q)
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("%w: application %q", models.ErrNotFound, name)
	}
	return models.ID(resp.Items[0].Id), nil
}
