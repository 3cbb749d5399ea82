package database

import (
	"context"
	"fmt"

	appConfig "github.com/imyashkale/inventoryserver/internal/config"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds the relational store configuration
type Config struct {
	Path string
}

// Client wraps the gorm handle shared by every table
type Client struct {
	DB *gorm.DB
}

// NewConfig creates a new database configuration from the application config
func NewConfig(appCfg *appConfig.Config) *Config {
	return &Config{Path: appCfg.DatabasePath}
}

// DSN enables foreign keys so credential and install rows cascade with their server.
func (c *Config) DSN() string {
	return c.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// NewClient opens the sqlite database and verifies the connection
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.DSN(),
	}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open database %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to access database handle: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY under load
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database %s is not reachable: %w", cfg.Path, err)
	}

	logger.WithField("path", cfg.Path).Info("Database opened")
	return &Client{DB: db}, nil
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database still answers
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
