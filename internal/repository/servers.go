package repository

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/models"
)

// ServerRepository defines the interface for server persistence
type ServerRepository interface {
	FindMany(ctx context.Context, opts ListOptions) (Page[*models.Server], error)
	// FindByID returns nil, nil when the id is unknown. Discarded servers are returned.
	FindByID(ctx context.Context, id models.ID) (*models.Server, error)
	Add(ctx context.Context, server *models.Server) error
	Update(ctx context.Context, server *models.Server) error
	DeleteByID(ctx context.Context, id models.ID) error
}

// gormServerRepository implements ServerRepository on the relational store
type gormServerRepository struct {
	db *database.Servers
}

// NewServerRepository creates a new relational server repository
func NewServerRepository(db *database.Servers) ServerRepository {
	return &gormServerRepository{db: db}
}

func (r *gormServerRepository) FindMany(ctx context.Context, opts ListOptions) (Page[*models.Server], error) {
	items, total, err := r.db.FindMany(ctx, opts)
	if err != nil {
		return Page[*models.Server]{}, err
	}
	return Page[*models.Server]{Total: total, Items: items}, nil
}

func (r *gormServerRepository) FindByID(ctx context.Context, id models.ID) (*models.Server, error) {
	return r.db.FindByID(ctx, id)
}

func (r *gormServerRepository) Add(ctx context.Context, server *models.Server) error {
	return r.db.Add(ctx, server)
}

func (r *gormServerRepository) Update(ctx context.Context, server *models.Server) error {
	return r.db.Update(ctx, server)
}

func (r *gormServerRepository) DeleteByID(ctx context.Context, id models.ID) error {
	return r.db.DeleteByID(ctx, id)
}
