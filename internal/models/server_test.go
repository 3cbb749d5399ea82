package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := RegisterServer(ServerSpec{
		Name:        "web-1",
		CPU:         "4 vCPU",
		RAM:         "16GB",
		HDD:         "200GB",
		Environment: "production",
		OperatingSystem: OperatingSystem{
			Name:         "ubuntu",
			Version:      "24.04",
			Architecture: "amd64",
		},
		Credentials: []Credential{{ConnectionType: "SSH", Username: "root", LocalPort: 22}},
	})
	if err != nil {
		t.Fatalf("register server: %v", err)
	}
	return s
}

func TestRegisterServerDefaults(t *testing.T) {
	s := newTestServer(t)

	if s.ID().IsZero() {
		t.Fatal("expected a generated id")
	}
	if s.IsDiscarded() {
		t.Fatal("new server must not be discarded")
	}
	status, err := s.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != StatusStopped {
		t.Errorf("expected status %q, got %q", StatusStopped, status)
	}

	events := s.DomainEvents()
	if len(events) != 1 || events[0].Kind() != EventRegistered {
		t.Fatalf("expected a single Registered event, got %+v", events)
	}
	if events[0].RoutingKey() != "server.registered" {
		t.Errorf("unexpected routing key %q", events[0].RoutingKey())
	}

	creds, _ := s.Credentials()
	if len(creds) != 1 || creds[0].ID.IsZero() || creds[0].ServerID != s.ID() {
		t.Errorf("credential was not adopted by the server: %+v", creds)
	}
}

func TestRegisterServerValidation(t *testing.T) {
	tests := []struct {
		name string
		spec ServerSpec
	}{
		{
			name: "Empty name",
			spec: ServerSpec{Environment: "dev", OperatingSystem: OperatingSystem{Name: "a", Version: "b", Architecture: "c"}},
		},
		{
			name: "Empty environment",
			spec: ServerSpec{Name: "x", OperatingSystem: OperatingSystem{Name: "a", Version: "b", Architecture: "c"}},
		},
		{
			name: "Incomplete operating system",
			spec: ServerSpec{Name: "x", Environment: "dev", OperatingSystem: OperatingSystem{Name: "a"}},
		},
		{
			name: "Credential without connection type",
			spec: ServerSpec{
				Name: "x", Environment: "dev",
				OperatingSystem: OperatingSystem{Name: "a", Version: "b", Architecture: "c"},
				Credentials:     []Credential{{Username: "root"}},
			},
		},
		{
			name: "Application without log dir",
			spec: ServerSpec{
				Name: "x", Environment: "dev",
				OperatingSystem: OperatingSystem{Name: "a", Version: "b", Architecture: "c"},
				Applications:    []ServerApplication{{ApplicationID: "app", InstallDir: "/opt/app"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RegisterServer(tt.spec); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestServerSetterCapturesOldValue(t *testing.T) {
	s := newTestServer(t)
	s.ClearDomainEvents()

	if err := s.SetName("web-2"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := s.SetStatus(StatusRunning); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := s.SetCPU("8 vCPU"); err != nil {
		t.Fatalf("set cpu: %v", err)
	}

	events := s.DomainEvents()
	got := make([]EventKind, 0, len(events))
	for _, e := range events {
		got = append(got, e.Kind())
	}
	want := []EventKind{EventNameChanged, EventStatusChanged, EventCPUChanged}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}

	if events[0].OldValue() != "web-1" || events[0].NewValue() != "web-2" {
		t.Errorf("name event carried %v -> %v", events[0].OldValue(), events[0].NewValue())
	}
	if events[1].OldValue() != StatusStopped {
		t.Errorf("status event old value = %v", events[1].OldValue())
	}

	s.ClearDomainEvents()
	s.ClearDomainEvents()
	if len(s.DomainEvents()) != 0 {
		t.Error("expected empty buffer after clear")
	}
}

func TestServerSetterSameValueEmitsNothing(t *testing.T) {
	s := newTestServer(t)
	s.ClearDomainEvents()

	if err := s.SetName("web-1"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := s.SetOperatingSystem(OperatingSystem{Name: "ubuntu", Version: "24.04", Architecture: "amd64"}); err != nil {
		t.Fatalf("set os: %v", err)
	}
	if n := len(s.DomainEvents()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestServerInvalidStatus(t *testing.T) {
	s := newTestServer(t)
	if err := s.SetStatus("paused"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestServerDiscardInvariant(t *testing.T) {
	s := newTestServer(t)
	s.ClearDomainEvents()

	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if !s.IsDiscarded() {
		t.Fatal("expected discarded")
	}
	events := s.DomainEvents()
	if len(events) != 1 || events[0].Kind() != EventDiscarded {
		t.Fatalf("expected Discarded event, got %+v", events)
	}

	calls := map[string]func() error{
		"Name":               func() error { _, err := s.Name(); return err },
		"CPU":                func() error { _, err := s.CPU(); return err },
		"RAM":                func() error { _, err := s.RAM(); return err },
		"HDD":                func() error { _, err := s.HDD(); return err },
		"Environment":        func() error { _, err := s.Environment(); return err },
		"OperatingSystem":    func() error { _, err := s.OperatingSystem(); return err },
		"Credentials":        func() error { _, err := s.Credentials(); return err },
		"Applications":       func() error { _, err := s.Applications(); return err },
		"Status":             func() error { _, err := s.Status(); return err },
		"SetName":            func() error { return s.SetName("other") },
		"SetName empty":      func() error { return s.SetName("") },
		"SetCPU":             func() error { return s.SetCPU("1") },
		"SetRAM":             func() error { return s.SetRAM("1") },
		"SetHDD":             func() error { return s.SetHDD("1") },
		"SetEnvironment":     func() error { return s.SetEnvironment("dev") },
		"SetStatus":          func() error { return s.SetStatus(StatusRunning) },
		"SetCredentials":     func() error { return s.SetCredentials(nil) },
		"SetApplications":    func() error { return s.SetApplications(nil) },
		"SetOperatingSystem": func() error { return s.SetOperatingSystem(OperatingSystem{Name: "a", Version: "b", Architecture: "c"}) },
		"Discard":            s.Discard,
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrDiscardedEntity) {
				t.Errorf("expected ErrDiscardedEntity, got %v", err)
			}
		})
	}

	if !s.ToResponse().Discarded {
		t.Error("read projection should report discarded")
	}
}

func TestRestoreServerEmitsNothing(t *testing.T) {
	s := newTestServer(t)
	restored := RestoreServer(s.State())

	if len(restored.DomainEvents()) != 0 {
		t.Error("restored aggregate must not carry events")
	}
	if diff := cmp.Diff(s.ToResponse(), restored.ToResponse()); diff != "" {
		t.Errorf("restored projection mismatch (-want +got):\n%s", diff)
	}
}

func TestSetApplicationsRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	apps := []ServerApplication{
		{ApplicationID: "a1", InstallDir: "/opt/a", LogDir: "/var/log/a"},
		{ApplicationID: "a1", InstallDir: "/opt/b", LogDir: "/var/log/b"},
	}
	if err := s.SetApplications(apps); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSetCredentialsKeepsStoredPasswords(t *testing.T) {
	s, err := RegisterServer(ServerSpec{
		Name:            "web-1",
		Environment:     "production",
		OperatingSystem: OperatingSystem{Name: "ubuntu", Version: "24.04", Architecture: "amd64"},
		Credentials:     []Credential{{ConnectionType: "SSH", Username: "root", Password: "secret", LocalPort: 22}},
	})
	if err != nil {
		t.Fatalf("register server: %v", err)
	}
	s.ClearDomainEvents()
	stored, _ := s.Credentials()

	tests := []struct {
		name string
		in   Credential
	}{
		{name: "Same id, blank password", in: Credential{ID: stored[0].ID, ConnectionType: "SSH", Username: "root", LocalPort: 22}},
		{name: "No id, blank password", in: Credential{ConnectionType: "SSH", Username: "root", LocalPort: 22}},
		{name: "No id, same password", in: Credential{ConnectionType: "SSH", Username: "root", Password: "secret", LocalPort: 22}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SetCredentials([]Credential{tt.in}); err != nil {
				t.Fatalf("set credentials: %v", err)
			}
			if events := s.DomainEvents(); len(events) != 0 {
				t.Errorf("expected no events, got %+v", events)
			}
			got, _ := s.Credentials()
			if diff := cmp.Diff(stored, got); diff != "" {
				t.Errorf("credentials changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetCredentialsDetectsRealChanges(t *testing.T) {
	s := newTestServer(t)
	s.ClearDomainEvents()
	stored, _ := s.Credentials()

	err := s.SetCredentials([]Credential{
		{ConnectionType: "SSH", Username: "root", LocalPort: 22},
		{ConnectionType: "SSH", Username: "root", LocalPort: 22},
	})
	if err != nil {
		t.Fatalf("set credentials: %v", err)
	}

	got, _ := s.Credentials()
	if len(got) != 2 || got[0].ID != stored[0].ID {
		t.Fatalf("first entry should keep the stored id: %+v", got)
	}
	if got[1].ID.IsZero() || got[1].ID == stored[0].ID {
		t.Errorf("second entry should get its own id: %+v", got)
	}
	events := s.DomainEvents()
	if len(events) != 1 || events[0].Kind() != EventCredentialsChanged {
		t.Errorf("expected one CredentialsChanged, got %+v", events)
	}
}
