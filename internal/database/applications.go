package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"gorm.io/gorm"
)

// Applications handles all relational operations for applications
type Applications struct {
	db *gorm.DB
}

// NewApplications creates an Applications table handle bound to db
func NewApplications(db *gorm.DB) *Applications {
	return &Applications{db: db}
}

// FindMany returns one page of applications matching q and the total match count
func (a *Applications) FindMany(ctx context.Context, q filter.Query) ([]*models.Application, int, error) {
	var rows []ApplicationRecord
	total, err := findPage(a.db.WithContext(ctx), &ApplicationRecord{}, filter.ApplicationSchema, q, &rows, nil)
	if err != nil {
		return nil, 0, err
	}

	apps := make([]*models.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.toModel())
	}
	return apps, total, nil
}

// FindByID returns nil, nil when no row has the id
func (a *Applications) FindByID(ctx context.Context, id models.ID) (*models.Application, error) {
	var rec ApplicationRecord
	err := a.db.WithContext(ctx).Where("id = ?", id.String()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return rec.toModel(), nil
}

// Add inserts a new application at revision 1
func (a *Applications) Add(ctx context.Context, app *models.Application) error {
	rec := applicationRecordFrom(app)
	rec.Revision = 1

	if err := a.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translateError(err)
	}

	app.MarkPersisted(rec.Revision)
	logger.WithField("application_id", rec.ID).Debug("Application row inserted")
	return nil
}

// Update replaces the row if the stored revision still matches
func (a *Applications) Update(ctx context.Context, app *models.Application) error {
	rec := applicationRecordFrom(app)
	next := rec.Revision + 1

	db := a.db.WithContext(ctx)
	res := db.Model(&ApplicationRecord{}).
		Where("id = ? AND revision = ?", rec.ID, rec.Revision).
		UpdateColumns(map[string]any{
			"name":       rec.Name,
			"version":    rec.Version,
			"architect":  rec.Architect,
			"discarded":  rec.Discarded,
			"revision":   next,
			"updated_at": rec.UpdatedAt,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return staleOrMissing(db, &ApplicationRecord{}, rec.ID)
	}

	app.MarkPersisted(next)
	return nil
}

// DeleteByID physically removes the application and its install rows
func (a *Applications) DeleteByID(ctx context.Context, id models.ID) error {
	if err := a.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&ApplicationRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	return nil
}
