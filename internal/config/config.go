package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Event sinks understood by the outbox dispatcher
const (
	SinkLog      = "log"
	SinkDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string `env:"PORT" envDefault:"3001"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	// Relational store
	DatabasePath string `env:"DATABASE_PATH" envDefault:"inventory.db"`

	// Bearer token validation. One of the shared secret or the Auth0 domain is required.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	Auth0Domain   string `env:"AUTH0_DOMAIN"`
	Auth0Audience string `env:"AUTH0_AUDIENCE"`

	// Event delivery
	EventSink           string `env:"EVENT_SINK" envDefault:"log"`
	AWSRegion           string `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoDBEventsTable string `env:"DYNAMODB_EVENTS_TABLE" envDefault:"InventoryEvents"`

	// Outbox dispatcher
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxWorkers      int           `env:"OUTBOX_WORKERS" envDefault:"4"`
	PublishMaxTries    uint          `env:"PUBLISH_MAX_TRIES" envDefault:"5"`
}

// New creates a new Config instance by loading environment variables
// from .env file (if present) and OS environment.
// OS environment variables take precedence over .env file values.
// Panics if required configuration values are missing or invalid.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load is New without the panic.
func Load() (*Config, error) {
	// Load .env file from project root (silently ignore if not found)
	_ = godotenv.Load(filepath.Join(".", ".env"))

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required configuration values are present and valid
func (c *Config) validate() error {
	var problems []string

	if c.AuthJWTSecret == "" && c.Auth0Domain == "" {
		problems = append(problems, "one of AUTH_JWT_SECRET or AUTH0_DOMAIN is required")
	}
	if c.Auth0Domain != "" && c.Auth0Audience == "" {
		problems = append(problems, "AUTH0_AUDIENCE is required with AUTH0_DOMAIN")
	}

	switch c.EventSink {
	case SinkLog:
	case SinkDynamoDB:
		if c.DynamoDBEventsTable == "" {
			problems = append(problems, "DYNAMODB_EVENTS_TABLE is required for the dynamodb sink")
		}
	default:
		problems = append(problems, fmt.Sprintf("EVENT_SINK must be %q or %q (got %q)", SinkLog, SinkDynamoDB, c.EventSink))
	}

	if c.OutboxPollInterval <= 0 {
		problems = append(problems, "OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		problems = append(problems, "OUTBOX_BATCH_SIZE must be positive")
	}
	if c.OutboxWorkers <= 0 {
		problems = append(problems, "OUTBOX_WORKERS must be positive")
	}
	if c.PublishMaxTries == 0 {
		problems = append(problems, "PUBLISH_MAX_TRIES must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// GetPort returns the server port
func (c *Config) GetPort() string {
	return c.Port
}

// GetLogLevel returns the logging level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
