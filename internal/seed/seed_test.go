package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/commands"
	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/queries"
	"github.com/imyashkale/inventoryserver/internal/repository"
)

const inventoryYAML = `
applications:
  - name: billing
    version: "2.3"
    architect: alice
  - name: search
    version: "1.0"
servers:
  - name: web-1
    cpu: "4"
    ram: 16GB
    hdd: 500GB
    environment: production
    operating_system:
      name: debian
      version: "12"
      architecture: amd64
    credentials:
      - connection_type: SSH
        username: deploy
        password: hunter2
        local_port: 22
    installs:
      - application: billing
        install_dir: /opt/billing
        log_dir: /var/log/billing
      - application: search
        install_dir: /opt/search
        log_dir: /var/log/search
`

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	ctx := context.Background()

	client, err := database.NewClient(ctx, &database.Config{Path: filepath.Join(t.TempDir(), "seed_test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := database.RunMigrations(ctx, client); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	store := repository.NewStore(client)
	b := bus.NewBuilder()
	commands.NewHandlers(store, nil).Register(b)
	queries.NewHandlers(store).Register(b)
	return b.Build()
}

func TestLoadFileAndApply(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte(inventoryYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	inv, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(inv.Applications) != 2 || len(inv.Servers) != 1 {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	if inv.Servers[0].OperatingSystem.Architecture != "amd64" {
		t.Errorf("inline server fields not decoded: %+v", inv.Servers[0].RegisterServerRequest)
	}

	b := newTestBus(t)
	res, err := Apply(ctx, b, inv)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Created != 3 || res.Skipped != 0 {
		t.Errorf("first run: %+v", res)
	}

	servers, err := bus.Ask[models.QueryResponse[models.ServerResponse]](ctx, b, queries.FindServers{})
	if err != nil {
		t.Fatalf("find servers: %v", err)
	}
	if servers.Total != 1 || len(servers.Items[0].Applications) != 2 {
		t.Fatalf("server not seeded with installs: %+v", servers)
	}
	if servers.Items[0].Applications[0].InstallDir != "/opt/billing" {
		t.Errorf("install order not kept: %+v", servers.Items[0].Applications)
	}

	res, err = Apply(ctx, b, inv)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if res.Created != 0 || res.Skipped != 3 {
		t.Errorf("second run should skip everything: %+v", res)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("servers:\n  - name: x\n    flavour: large\n"))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestApplyUnknownInstall(t *testing.T) {
	inv, err := Parse([]byte(`
servers:
  - name: web-1
    environment: staging
    operating_system: {name: debian, version: "12", architecture: amd64}
    installs:
      - {application: ghost, install_dir: /opt/ghost, log_dir: /var/log/ghost}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = Apply(context.Background(), newTestBus(t), inv)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
