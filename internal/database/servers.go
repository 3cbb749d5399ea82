package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Servers handles all relational operations for servers and their child rows
type Servers struct {
	db *gorm.DB
}

// NewServers creates a Servers table handle bound to db (which may be a transaction)
func NewServers(db *gorm.DB) *Servers {
	return &Servers{db: db}
}

func preloadServerChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Credentials", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Applications", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

// FindMany returns one page of servers matching q together with the total match count
func (s *Servers) FindMany(ctx context.Context, q filter.Query) ([]*models.Server, int, error) {
	var rows []ServerRecord
	total, err := findPage(s.db.WithContext(ctx), &ServerRecord{}, filter.ServerSchema, q, &rows, preloadServerChildren)
	if err != nil {
		return nil, 0, err
	}

	servers := make([]*models.Server, 0, len(rows))
	for _, r := range rows {
		servers = append(servers, r.toModel())
	}
	return servers, total, nil
}

// FindByID returns nil, nil when no row has the id
func (s *Servers) FindByID(ctx context.Context, id models.ID) (*models.Server, error) {
	var rec ServerRecord
	err := preloadServerChildren(s.db.WithContext(ctx)).Where("id = ?", id.String()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return rec.toModel(), nil
}

// Add inserts the server with its credentials and installs at revision 1
func (s *Servers) Add(ctx context.Context, server *models.Server) error {
	rec := serverRecordFrom(server)
	rec.Revision = 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return translateError(err)
		}
		return insertServerChildren(tx, rec)
	})
	if err != nil {
		return err
	}

	server.MarkPersisted(rec.Revision)
	logger.WithField("server_id", rec.ID).Debug("Server row inserted")
	return nil
}

// Update replaces the row and its children if the stored revision still matches
func (s *Servers) Update(ctx context.Context, server *models.Server) error {
	rec := serverRecordFrom(server)
	next := rec.Revision + 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ServerRecord{}).
			Where("id = ? AND revision = ?", rec.ID, rec.Revision).
			UpdateColumns(map[string]any{
				"name":             rec.Name,
				"cpu":              rec.CPU,
				"ram":              rec.RAM,
				"hdd":              rec.HDD,
				"environment":      rec.Environment,
				"operating_system": operatingSystemJSON(rec.OperatingSystem),
				"status":           rec.Status,
				"discarded":        rec.Discarded,
				"revision":         next,
				"updated_at":       rec.UpdatedAt,
			})
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return staleOrMissing(tx, &ServerRecord{}, rec.ID)
		}

		if err := tx.Where("server_id = ?", rec.ID).Delete(&CredentialRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", rec.ID).Delete(&ServerApplicationRecord{}).Error; err != nil {
			return err
		}
		return insertServerChildren(tx, rec)
	})
	if err != nil {
		return err
	}

	server.MarkPersisted(next)
	return nil
}

// DeleteByID physically removes the server. Child rows cascade. Missing ids are not an error.
func (s *Servers) DeleteByID(ctx context.Context, id models.ID) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&ServerRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

func insertServerChildren(tx *gorm.DB, rec ServerRecord) error {
	if len(rec.Credentials) > 0 {
		if err := tx.Create(&rec.Credentials).Error; err != nil {
			return translateError(err)
		}
	}
	if len(rec.Applications) > 0 {
		if err := tx.Create(&rec.Applications).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// staleOrMissing explains why a conditional update touched no rows
func staleOrMissing(tx *gorm.DB, model any, id string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s was modified concurrently", models.ErrConcurrentUpdate, id)
}
