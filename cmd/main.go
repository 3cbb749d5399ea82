package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/commands"
	"github.com/imyashkale/inventoryserver/internal/config"
	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/events"
	"github.com/imyashkale/inventoryserver/internal/handlers"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/middleware"
	"github.com/imyashkale/inventoryserver/internal/queries"
	"github.com/imyashkale/inventoryserver/internal/repository"
	"github.com/imyashkale/inventoryserver/internal/router"
	"github.com/imyashkale/inventoryserver/internal/seed"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventoryserver",
		Short: "Inventory of servers and the applications installed on them",
		Long: `inventoryserver tracks servers and applications behind a REST API and
relays every change as a domain event to the configured sink.

Configuration is read from the environment (and a .env file when present).

  inventoryserver migrate               # Apply database migrations
  inventoryserver seed inventory.yaml   # Register servers and applications from YAML
  inventoryserver serve                 # Run the API and the event dispatcher`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(seedCmd())
	return cmd
}

// app holds everything the subcommands share
type app struct {
	cfg        *config.Config
	client     *database.Client
	dispatcher *events.Dispatcher
	bus        *bus.Bus
}

func (a *app) Close() {
	if err := a.client.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close database")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.GetLogLevel())
	logger.Info("Configuration loaded successfully")
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.Client, error) {
	client, err := database.NewClient(ctx, database.NewConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// bootstrap wires the store, the outbox dispatcher and the bus
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(client)

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	dispatcher := events.NewDispatcher(store.Repositories().Outbox, publisher, events.NewDispatcherConfig(cfg))

	b := bus.NewBuilder()
	commands.NewHandlers(store, dispatcher).Register(b)
	queries.NewHandlers(store).Register(b)
	logger.Info("Command and query handlers registered")

	return &app{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		bus:        b.Build(),
	}, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventSink {
	case config.SinkDynamoDB:
		dynamo, err := database.NewDynamoClient(ctx, database.NewDynamoConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DynamoDB client: %w", err)
		}
		logger.WithField("table", dynamo.TableName).Info("Publishing events to DynamoDB")
		return events.NewDynamoPublisherFromClient(dynamo), nil
	default:
		logger.Info("Publishing events to the log")
		return events.NewLogPublisher(), nil
	}
}

func newValidator(cfg *config.Config) middleware.TokenValidator {
	if cfg.AuthJWTSecret != "" {
		return middleware.NewHMACValidator(cfg.AuthJWTSecret, cfg.Auth0Audience)
	}
	return middleware.NewJWKSValidator(middleware.NewAuth0Config(cfg.Auth0Domain, cfg.Auth0Audience))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !strings.EqualFold(a.cfg.GetLogLevel(), string(logger.DEBUG)) {
				gin.SetMode(gin.ReleaseMode)
			}

			r := router.Setup(
				handlers.NewHealthHandler(a.client, database.NewOutbox(a.client.DB)),
				handlers.NewServerHandler(a.bus),
				handlers.NewApplicationHandler(a.bus),
				newValidator(a.cfg),
			)
			srv := &http.Server{
				Addr:              ":" + a.cfg.GetPort(),
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.dispatcher.Run(gctx)
			})
			g.Go(func() error {
				logger.Infof("Starting server on :%s", a.cfg.GetPort())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down server gracefully...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			logger.WithField("path", cfg.DatabasePath).Info("Database is up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Register the servers and applications listed in a YAML file",
		Long: `Register the servers and applications listed in a YAML file.

Applications are registered before servers, and server installs name their
application. Entries whose name is already taken are skipped. Their events are
delivered the next time serve runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := seed.Apply(cmd.Context(), a.bus, inv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", res.Created, res.Skipped)
			return nil
		},
	}
}
