package models

import (
	"fmt"
	"slices"
	"time"
)

// ServerStatus is the operational state of a server.
type ServerStatus string

const (
	StatusRunning ServerStatus = "running"
	StatusStopped ServerStatus = "stopped"
	StatusError   ServerStatus = "error"
	StatusUnknown ServerStatus = "unknown"
)

// ParseServerStatus validates a status label.
func ParseServerStatus(s string) (ServerStatus, error) {
	switch st := ServerStatus(s); st {
	case StatusRunning, StatusStopped, StatusError, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown server status %q", ErrValidation, s)
}

// OperatingSystem is a value object persisted as a JSON document.
type OperatingSystem struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version" yaml:"version"`
	Architecture string `json:"architecture" yaml:"architecture"`
}

// Validate checks that every component is present.
func (os OperatingSystem) Validate() error {
	if err := requireText("operating_system.name", os.Name); err != nil {
		return err
	}
	if err := requireText("operating_system.version", os.Version); err != nil {
		return err
	}
	return requireText("operating_system.architecture", os.Architecture)
}

// Credential is a child entity of Server describing how to reach it.
type Credential struct {
	ID             ID
	ServerID       ID
	ConnectionType string
	Username       string
	Password       string
	LocalIP        string
	LocalPort      int
	PublicIP       string
	PublicPort     int
	Discarded      bool
}

// Validate checks the credential's own invariants.
func (c Credential) Validate() error {
	return requireText("credential.connection_type", c.ConnectionType)
}

// ServerApplication associates an Application with a Server install.
// It is a value object: replace it, never mutate it.
type ServerApplication struct {
	ServerID      ID
	ApplicationID ID
	InstallDir    string
	LogDir        string
}

// Validate checks that both directories are present.
func (sa ServerApplication) Validate() error {
	if sa.ApplicationID.IsZero() {
		return fmt.Errorf("%w: application id must not be empty", ErrInvalidIdentifier)
	}
	if err := requireText("install_dir", sa.InstallDir); err != nil {
		return err
	}
	return requireText("log_dir", sa.LogDir)
}

// ServerSpec carries the attributes needed to register a Server.
type ServerSpec struct {
	Name            string
	CPU             string
	RAM             string
	HDD             string
	Environment     string
	OperatingSystem OperatingSystem
	Credentials     []Credential
	Applications    []ServerApplication
}

// Server is the aggregate root for a tracked machine.
type Server struct {
	AggregateRoot

	name            string
	cpu             string
	ram             string
	hdd             string
	environment     string
	operatingSystem OperatingSystem
	credentials     []Credential
	applications    []ServerApplication
	status          ServerStatus
	createdAt       time.Time
	updatedAt       time.Time
}

// ServerState is the persisted shape of a Server.
type ServerState struct {
	ID              ID
	Name            string
	CPU             string
	RAM             string
	HDD             string
	Environment     string
	OperatingSystem OperatingSystem
	Credentials     []Credential
	Applications    []ServerApplication
	Status          ServerStatus
	Discarded       bool
	Revision        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RegisterServer creates a stopped, active Server and emits Registered.
func RegisterServer(spec ServerSpec) (*Server, error) {
	if err := requireText("name", spec.Name); err != nil {
		return nil, err
	}
	if err := requireText("environment", spec.Environment); err != nil {
		return nil, err
	}
	if err := spec.OperatingSystem.Validate(); err != nil {
		return nil, err
	}

	id := NewID()
	credentials, err := adoptCredentials(id, spec.Credentials)
	if err != nil {
		return nil, err
	}
	applications, err := adoptApplications(id, spec.Applications)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &Server{
		AggregateRoot:   AggregateRoot{id: id, aggregateType: AggregateServer},
		name:            spec.Name,
		cpu:             spec.CPU,
		ram:             spec.RAM,
		hdd:             spec.HDD,
		environment:     spec.Environment,
		operatingSystem: spec.OperatingSystem,
		credentials:     credentials,
		applications:    applications,
		status:          StatusStopped,
		createdAt:       now,
		updatedAt:       now,
	}
	s.record(EventRegistered, nil, s.toResponse())
	return s, nil
}

// RestoreServer rebuilds a Server from storage without emitting events.
func RestoreServer(st ServerState) *Server {
	return &Server{
		AggregateRoot: AggregateRoot{
			id:            st.ID,
			aggregateType: AggregateServer,
			discarded:     st.Discarded,
			revision:      st.Revision,
		},
		name:            st.Name,
		cpu:             st.CPU,
		ram:             st.RAM,
		hdd:             st.HDD,
		environment:     st.Environment,
		operatingSystem: st.OperatingSystem,
		credentials:     slices.Clone(st.Credentials),
		applications:    slices.Clone(st.Applications),
		status:          st.Status,
		createdAt:       st.CreatedAt,
		updatedAt:       st.UpdatedAt,
	}
}

// State exposes the persisted shape, including for discarded aggregates.
func (s *Server) State() ServerState {
	return ServerState{
		ID:              s.id,
		Name:            s.name,
		CPU:             s.cpu,
		RAM:             s.ram,
		HDD:             s.hdd,
		Environment:     s.environment,
		OperatingSystem: s.operatingSystem,
		Credentials:     slices.Clone(s.credentials),
		Applications:    slices.Clone(s.applications),
		Status:          s.status,
		Discarded:       s.discarded,
		Revision:        s.revision,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
}

func (s *Server) Name() (string, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.name, nil
}

func (s *Server) CPU() (string, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.cpu, nil
}

func (s *Server) RAM() (string, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.ram, nil
}

func (s *Server) HDD() (string, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.hdd, nil
}

func (s *Server) Environment() (string, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.environment, nil
}

func (s *Server) OperatingSystem() (OperatingSystem, error) {
	if err := s.ensureActive(); err != nil {
		return OperatingSystem{}, err
	}
	return s.operatingSystem, nil
}

func (s *Server) Credentials() ([]Credential, error) {
	if err := s.ensureActive(); err != nil {
		return nil, err
	}
	return slices.Clone(s.credentials), nil
}

func (s *Server) Applications() ([]ServerApplication, error) {
	if err := s.ensureActive(); err != nil {
		return nil, err
	}
	return slices.Clone(s.applications), nil
}

func (s *Server) Status() (ServerStatus, error) {
	if err := s.ensureActive(); err != nil {
		return "", err
	}
	return s.status, nil
}

func (s *Server) SetName(name string) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	if err := requireText("name", name); err != nil {
		return err
	}
	return setText(s, &s.name, name, EventNameChanged)
}

func (s *Server) SetCPU(cpu string) error {
	return setText(s, &s.cpu, cpu, EventCPUChanged)
}

func (s *Server) SetRAM(ram string) error {
	return setText(s, &s.ram, ram, EventRAMChanged)
}

func (s *Server) SetHDD(hdd string) error {
	return setText(s, &s.hdd, hdd, EventHDDChanged)
}

func (s *Server) SetEnvironment(environment string) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	if err := requireText("environment", environment); err != nil {
		return err
	}
	return setText(s, &s.environment, environment, EventEnvironmentChanged)
}

func (s *Server) SetOperatingSystem(os OperatingSystem) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	if err := os.Validate(); err != nil {
		return err
	}
	if os == s.operatingSystem {
		return nil
	}
	old := s.operatingSystem
	s.operatingSystem = os
	s.touch()
	s.record(EventOperatingSystemChanged, old, os)
	return nil
}

func (s *Server) SetStatus(status ServerStatus) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	if _, err := ParseServerStatus(string(status)); err != nil {
		return err
	}
	if status == s.status {
		return nil
	}
	old := s.status
	s.status = status
	s.touch()
	s.record(EventStatusChanged, old, status)
	return nil
}

// SetCredentials replaces the credential list. Incoming entries are first
// matched to the stored ones, so a list read back from a response (ids kept,
// passwords blank) or resent without ids compares equal to what is stored.
func (s *Server) SetCredentials(credentials []Credential) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	adopted, err := adoptCredentials(s.id, reconcileCredentials(s.credentials, credentials))
	if err != nil {
		return err
	}
	if slices.Equal(adopted, s.credentials) {
		return nil
	}
	old := credentialResponses(s.credentials)
	s.credentials = adopted
	s.touch()
	s.record(EventCredentialsChanged, old, credentialResponses(adopted))
	return nil
}

// SetApplications replaces the installed application list.
func (s *Server) SetApplications(applications []ServerApplication) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	adopted, err := adoptApplications(s.id, applications)
	if err != nil {
		return err
	}
	if slices.Equal(adopted, s.applications) {
		return nil
	}
	old := serverApplicationResponses(s.applications)
	s.applications = adopted
	s.touch()
	s.record(EventApplicationsChanged, old, serverApplicationResponses(adopted))
	return nil
}

// Discard retires the server. It is terminal.
func (s *Server) Discard() error {
	if err := s.discard(); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Server) touch() {
	s.updatedAt = time.Now().UTC()
}

// setText captures the old value before assignment so the event carries it.
func setText(s *Server, field *string, value string, kind EventKind) error {
	if err := s.ensureActive(); err != nil {
		return err
	}
	if *field == value {
		return nil
	}
	old := *field
	*field = value
	s.touch()
	s.record(kind, old, value)
	return nil
}

// reconcileCredentials carries stored ids and passwords over to incoming
// entries. An entry with a known id keeps the stored password when its own is
// blank. An entry without an id takes the id of the first unclaimed stored
// credential with the same attributes. Each stored credential is claimed once.
func reconcileCredentials(current, in []Credential) []Credential {
	if len(current) == 0 {
		return in
	}
	byID := make(map[ID]int, len(current))
	for i, c := range current {
		byID[c.ID] = i
	}
	claimed := make([]bool, len(current))
	out := slices.Clone(in)

	for i, c := range out {
		if c.ID.IsZero() {
			continue
		}
		if j, ok := byID[c.ID]; ok && !claimed[j] {
			claimed[j] = true
			if c.Password == "" {
				out[i].Password = current[j].Password
			}
		}
	}

	for i, c := range out {
		if !c.ID.IsZero() {
			continue
		}
		for j, stored := range current {
			if claimed[j] || !sameCredential(stored, c) {
				continue
			}
			claimed[j] = true
			out[i].ID = stored.ID
			if c.Password == "" {
				out[i].Password = stored.Password
			}
			break
		}
	}
	return out
}

// sameCredential compares everything but identity. A blank password matches any.
func sameCredential(stored, c Credential) bool {
	if c.Password != "" && c.Password != stored.Password {
		return false
	}
	return stored.ConnectionType == c.ConnectionType &&
		stored.Username == c.Username &&
		stored.LocalIP == c.LocalIP &&
		stored.LocalPort == c.LocalPort &&
		stored.PublicIP == c.PublicIP &&
		stored.PublicPort == c.PublicPort &&
		stored.Discarded == c.Discarded
}

func adoptCredentials(serverID ID, in []Credential) ([]Credential, error) {
	out := make([]Credential, 0, len(in))
	for _, c := range in {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if c.ID.IsZero() {
			c.ID = NewID()
		}
		c.ServerID = serverID
		out = append(out, c)
	}
	return out, nil
}

func adoptApplications(serverID ID, in []ServerApplication) ([]ServerApplication, error) {
	out := make([]ServerApplication, 0, len(in))
	seen := make(map[ID]struct{}, len(in))
	for _, sa := range in {
		if err := sa.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[sa.ApplicationID]; dup {
			return nil, fmt.Errorf("%w: application %s listed twice", ErrValidation, sa.ApplicationID)
		}
		seen[sa.ApplicationID] = struct{}{}
		sa.ServerID = serverID
		out = append(out, sa)
	}
	return out, nil
}
