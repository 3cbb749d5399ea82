package repository

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/models"
)

// ApplicationRepository defines the interface for application persistence
type ApplicationRepository interface {
	FindMany(ctx context.Context, opts ListOptions) (Page[*models.Application], error)
	FindByID(ctx context.Context, id models.ID) (*models.Application, error)
	Add(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	DeleteByID(ctx context.Context, id models.ID) error
}

type gormApplicationRepository struct {
	db *database.Applications
}

// NewApplicationRepository creates a new relational application repository
func NewApplicationRepository(db *database.Applications) ApplicationRepository {
	return &gormApplicationRepository{db: db}
}

func (r *gormApplicationRepository) FindMany(ctx context.Context, opts ListOptions) (Page[*models.Application], error) {
	items, total, err := r.db.FindMany(ctx, opts)
	if err != nil {
		return Page[*models.Application]{}, err
	}
	return Page[*models.Application]{Total: total, Items: items}, nil
}

func (r *gormApplicationRepository) FindByID(ctx context.Context, id models.ID) (*models.Application, error) {
	return r.db.FindByID(ctx, id)
}

func (r *gormApplicationRepository) Add(ctx context.Context, app *models.Application) error {
	return r.db.Add(ctx, app)
}

func (r *gormApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	return r.db.Update(ctx, app)
}

func (r *gormApplicationRepository) DeleteByID(ctx context.Context, id models.ID) error {
	return r.db.DeleteByID(ctx, id)
}
