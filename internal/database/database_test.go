package database

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/models"
)

func openTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "inventory_test.db")}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := RunMigrations(ctx, client); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return client
}

func seedServer(t *testing.T, servers *Servers, name, env string, apps ...models.ServerApplication) *models.Server {
	t.Helper()
	s, err := models.RegisterServer(models.ServerSpec{
		Name:        name,
		CPU:         "4",
		RAM:         "16GB",
		HDD:         "1TB",
		Environment: env,
		OperatingSystem: models.OperatingSystem{
			Name: "ubuntu", Version: "24.04", Architecture: "amd64",
		},
		Credentials: []models.Credential{
			{ConnectionType: "SSH", Username: "root", Password: "hunter2", LocalPort: 22},
			{ConnectionType: "RDP", Username: "admin", LocalPort: 3389},
		},
		Applications: apps,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if err := servers.Add(context.Background(), s); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return s
}

func names(t *testing.T, servers []*models.Server) []string {
	t.Helper()
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		out = append(out, s.ToResponse().Name)
	}
	return out
}

func mustFilter(t *testing.T, raw string) filter.Filter {
	t.Helper()
	f, err := filter.ParseFilter(raw)
	if err != nil {
		t.Fatalf("parse filter %s: %v", raw, err)
	}
	return f
}

func TestServerFilters(t *testing.T) {
	ctx := context.Background()
	servers := NewServers(openTestClient(t).DB)
	seedServer(t, servers, "a", "prod")
	seedServer(t, servers, "b", "staging")
	seedServer(t, servers, "c", "prod")

	tests := []struct {
		name  string
		query filter.Query
		want  []string
	}{
		{name: "Membership", query: filter.Query{Filter: mustFilter(t, `{"name": {"in": "a,c"}}`)}, want: []string{"a", "c"}},
		{name: "Substring", query: filter.Query{Filter: mustFilter(t, `{"name": {"lk": "B"}}`)}, want: []string{"b"}},
		{name: "Range", query: filter.Query{Filter: mustFilter(t, `{"name": {"btw": "b,c"}}`)}, want: []string{"b", "c"}},
		{
			name:  "Multiple keys are conjunctive",
			query: filter.Query{Filter: mustFilter(t, `{"environment": {"eq": "prod"}, "name": {"gt": "a"}}`)},
			want:  []string{"c"},
		},
		{
			name: "Or list",
			query: filter.Query{Or: []filter.Filter{
				mustFilter(t, `{"name": {"eq": "a"}}`),
				mustFilter(t, `{"environment": {"eq": "staging"}}`),
			}},
			want: []string{"a", "b"},
		},
		{
			name:  "JSON path",
			query: filter.Query{Filter: mustFilter(t, `{"operating_system.name": {"eq": "ubuntu"}}`)},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "Sort descending",
			query: filter.Query{Sort: []filter.SortField{{Attribute: "name", Descending: true}}},
			want:  []string{"c", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := servers.FindMany(ctx, tt.query)
			if err != nil {
				t.Fatalf("find many: %v", err)
			}
			gotNames := names(t, got)
			if len(tt.query.Sort) == 0 {
				sort.Strings(gotNames)
			}
			if diff := cmp.Diff(tt.want, gotNames); diff != "" {
				t.Errorf("names mismatch (-want +got):\n%s", diff)
			}
			if total != len(tt.want) {
				t.Errorf("expected total %d, got %d", len(tt.want), total)
			}
		})
	}
}

func TestServerPagination(t *testing.T) {
	ctx := context.Background()
	servers := NewServers(openTestClient(t).DB)
	for _, n := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"} {
		seedServer(t, servers, n, "prod")
	}
	byName := []filter.SortField{{Attribute: "name"}}

	page, total, err := servers.FindMany(ctx, filter.Query{Limit: 3, Offset: 3, Sort: byName})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if total != 7 {
		t.Errorf("expected total 7, got %d", total)
	}
	if diff := cmp.Diff([]string{"s4", "s5", "s6"}, names(t, page)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}

	all, _, err := servers.FindMany(ctx, filter.Query{Offset: 5, Sort: byName})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if diff := cmp.Diff([]string{"s6", "s7"}, names(t, all)); diff != "" {
		t.Errorf("unbounded page mismatch (-want +got):\n%s", diff)
	}

	beyond, total, err := servers.FindMany(ctx, filter.Query{Limit: 3, Offset: 9})
	if err != nil || len(beyond) != 0 || total != 7 {
		t.Errorf("offset past the end: %d rows, total %d, err %v", len(beyond), total, err)
	}
}

func TestServerRoundTripKeepsChildrenInOrder(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)
	servers := NewServers(client.DB)
	apps := NewApplications(client.DB)

	app, _ := models.RegisterApplication("billing", "1.0", "alice")
	if err := apps.Add(ctx, app); err != nil {
		t.Fatalf("add application: %v", err)
	}
	s := seedServer(t, servers, "web", "prod", models.ServerApplication{
		ApplicationID: app.ID(), InstallDir: "/opt/billing", LogDir: "/var/log/billing",
	})

	got, err := servers.FindByID(ctx, s.ID())
	if err != nil || got == nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.Revision() != 1 {
		t.Errorf("expected revision 1, got %d", got.Revision())
	}

	want := s.State()
	have := got.State()
	if diff := cmp.Diff(want.Credentials, have.Credentials); diff != "" {
		t.Errorf("credentials mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Applications, have.Applications); diff != "" {
		t.Errorf("applications mismatch (-want +got):\n%s", diff)
	}
	if have.OperatingSystem != want.OperatingSystem {
		t.Errorf("operating system mismatch: %+v", have.OperatingSystem)
	}

	missing, err := servers.FindByID(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for a miss, got %v, %v", missing, err)
	}
}

func TestServerUniqueNameAmongActive(t *testing.T) {
	ctx := context.Background()
	servers := NewServers(openTestClient(t).DB)
	first := seedServer(t, servers, "dup", "prod")

	clash, _ := models.RegisterServer(models.ServerSpec{
		Name: "dup", Environment: "prod",
		OperatingSystem: models.OperatingSystem{Name: "a", Version: "b", Architecture: "c"},
	})
	if err := servers.Add(ctx, clash); !errors.Is(err, models.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := first.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if err := servers.Update(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := servers.Add(ctx, clash); err != nil {
		t.Errorf("name should be free once the holder is discarded: %v", err)
	}
}

func TestServerDiscardedVisibility(t *testing.T) {
	ctx := context.Background()
	servers := NewServers(openTestClient(t).DB)
	s := seedServer(t, servers, "old", "prod")
	seedServer(t, servers, "new", "prod")

	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if err := servers.Update(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, total, err := servers.FindMany(ctx, filter.Query{})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if total != 1 || active[0].ToResponse().Name != "new" {
		t.Errorf("discarded rows must be hidden by default, got %v", names(t, active))
	}

	discarded, _, err := servers.FindMany(ctx, filter.Query{Filter: mustFilter(t, `{"discarded": {"eq": true}}`)})
	if err != nil {
		t.Fatalf("find discarded: %v", err)
	}
	if len(discarded) != 1 || !discarded[0].IsDiscarded() {
		t.Errorf("expected the discarded server, got %d rows", len(discarded))
	}

	byID, err := servers.FindByID(ctx, s.ID())
	if err != nil || byID == nil || !byID.IsDiscarded() {
		t.Errorf("discarded server must stay retrievable by id, got %v, %v", byID, err)
	}
}

func TestServerStaleRevision(t *testing.T) {
	ctx := context.Background()
	servers := NewServers(openTestClient(t).DB)
	s := seedServer(t, servers, "web", "prod")

	first, _ := servers.FindByID(ctx, s.ID())
	second, _ := servers.FindByID(ctx, s.ID())

	if err := first.SetCPU("8"); err != nil {
		t.Fatalf("set cpu: %v", err)
	}
	if err := servers.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Revision() != 2 {
		t.Errorf("expected revision 2, got %d", first.Revision())
	}

	if err := second.SetRAM("64GB"); err != nil {
		t.Fatalf("set ram: %v", err)
	}
	if err := servers.Update(ctx, second); !errors.Is(err, models.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}

	ghost := models.RestoreServer(models.ServerState{ID: "ghost", Name: "ghost", Environment: "prod"})
	if err := servers.Update(ctx, ghost); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing row, got %v", err)
	}
}

func TestServerDeleteCascades(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)
	servers := NewServers(client.DB)
	s := seedServer(t, servers, "web", "prod")

	if err := servers.DeleteByID(ctx, s.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := servers.DeleteByID(ctx, s.ID()); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}

	var credentials int64
	client.DB.Model(&CredentialRecord{}).Where("server_id = ?", s.ID().String()).Count(&credentials)
	if credentials != 0 {
		t.Errorf("expected credentials to cascade, %d left", credentials)
	}
}

func TestApplicationUpdateAndFilter(t *testing.T) {
	ctx := context.Background()
	apps := NewApplications(openTestClient(t).DB)

	for _, n := range []string{"Billing", "billing-worker", "search"} {
		a, _ := models.RegisterApplication(n, "1.0", "alice")
		if err := apps.Add(ctx, a); err != nil {
			t.Fatalf("add %s: %v", n, err)
		}
	}

	found, total, err := apps.FindMany(ctx, filter.Query{Filter: mustFilter(t, `{"name": {"lk": "billing"}}`)})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if total != 2 || len(found) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", total)
	}

	app := found[0]
	if err := app.SetVersion("2.0"); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := apps.Update(ctx, app); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := apps.FindByID(ctx, app.ID())
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if v, _ := reloaded.AppVersion(); v != "2.0" || reloaded.Revision() != 2 {
		t.Errorf("expected version 2.0 at revision 2, got %s at %d", v, reloaded.Revision())
	}
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	outbox := NewOutbox(openTestClient(t).DB)

	app, _ := models.RegisterApplication("billing", "1.0", "alice")
	_ = app.SetName("billing-v2")
	events := app.DomainEvents()

	if err := outbox.Record(ctx, events...); err != nil {
		t.Fatalf("record: %v", err)
	}

	pending, err := outbox.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending events, got %d", len(pending))
	}
	if pending[0].Event.Kind() != models.EventRegistered || pending[1].Event.Kind() != models.EventNameChanged {
		t.Errorf("events out of order: %s, %s", pending[0].Event.Kind(), pending[1].Event.Kind())
	}
	if pending[1].Event.OldValue() != "billing" || pending[1].Event.NewValue() != "billing-v2" {
		t.Errorf("values lost in transit: %v -> %v", pending[1].Event.OldValue(), pending[1].Event.NewValue())
	}
	if pending[0].Event.EventID() != events[0].EventID() {
		t.Errorf("event id not preserved")
	}

	if err := outbox.MarkDelivered(ctx, events[0].EventID(), 1); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := outbox.MarkFailed(ctx, events[1].EventID(), 5, "sink down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, _ = outbox.Pending(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}

	counts, err := outbox.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	want := map[string]int{OutboxDelivered: 1, OutboxFailed: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("status counts mismatch (-want +got):\n%s", diff)
	}
}
