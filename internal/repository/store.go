package repository

import (
	"context"

	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"gorm.io/gorm"
)

// ListOptions selects, orders and pages a list query
type ListOptions = filter.Query

// Page is one slice of a list result plus the total match count
type Page[T any] struct {
	Total int
	Items []T
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Servers      ServerRepository
	Applications ApplicationRepository
	Outbox       OutboxRepository
}

// Store hands out repositories and runs units of work atomically
type Store interface {
	Repositories() Repositories
	// WithinTx commits when fn returns nil and rolls back otherwise
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a Store over the relational client
func NewStore(client *database.Client) Store {
	return &gormStore{db: client.DB}
}

func (s *gormStore) Repositories() Repositories {
	return bind(s.db)
}

func (s *gormStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(bind(tx))
	})
}

func bind(db *gorm.DB) Repositories {
	return Repositories{
		Servers:      NewServerRepository(database.NewServers(db)),
		Applications: NewApplicationRepository(database.NewApplications(db)),
		Outbox:       NewOutboxRepository(database.NewOutbox(db)),
	}
}
