package models

import "time"

// Application is the aggregate root for a deployable application.
type Application struct {
	AggregateRoot

	name      string
	version   string
	architect string
	createdAt time.Time
	updatedAt time.Time
}

// ApplicationState is the persisted shape of an Application.
type ApplicationState struct {
	ID        ID
	Name      string
	Version   string
	Architect string
	Discarded bool
	Revision  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterApplication creates a new Application and emits Registered.
func RegisterApplication(name, version, architect string) (*Application, error) {
	if err := requireText("name", name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &Application{
		AggregateRoot: AggregateRoot{id: NewID(), aggregateType: AggregateApplication},
		name:          name,
		version:       version,
		architect:     architect,
		createdAt:     now,
		updatedAt:     now,
	}
	a.record(EventRegistered, nil, a.toResponse())
	return a, nil
}

// RestoreApplication rebuilds an Application from storage without emitting events.
func RestoreApplication(s ApplicationState) *Application {
	return &Application{
		AggregateRoot: AggregateRoot{
			id:            s.ID,
			aggregateType: AggregateApplication,
			discarded:     s.Discarded,
			revision:      s.Revision,
		},
		name:      s.Name,
		version:   s.Version,
		architect: s.Architect,
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}
}

// State exposes the persisted shape, including for discarded aggregates.
func (a *Application) State() ApplicationState {
	return ApplicationState{
		ID:        a.id,
		Name:      a.name,
		Version:   a.version,
		Architect: a.architect,
		Discarded: a.discarded,
		Revision:  a.revision,
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
}

func (a *Application) Name() (string, error) {
	if err := a.ensureActive(); err != nil {
		return "", err
	}
	return a.name, nil
}

func (a *Application) AppVersion() (string, error) {
	if err := a.ensureActive(); err != nil {
		return "", err
	}
	return a.version, nil
}

func (a *Application) Architect() (string, error) {
	if err := a.ensureActive(); err != nil {
		return "", err
	}
	return a.architect, nil
}

// SetName renames the application.
func (a *Application) SetName(name string) error {
	if err := a.ensureActive(); err != nil {
		return err
	}
	if err := requireText("name", name); err != nil {
		return err
	}
	if name == a.name {
		return nil
	}
	old := a.name
	a.name = name
	a.touch()
	a.record(EventNameChanged, old, name)
	return nil
}

func (a *Application) SetVersion(version string) error {
	if err := a.ensureActive(); err != nil {
		return err
	}
	if version == a.version {
		return nil
	}
	old := a.version
	a.version = version
	a.touch()
	a.record(EventVersionChanged, old, version)
	return nil
}

func (a *Application) SetArchitect(architect string) error {
	if err := a.ensureActive(); err != nil {
		return err
	}
	if architect == a.architect {
		return nil
	}
	old := a.architect
	a.architect = architect
	a.touch()
	a.record(EventArchitectChanged, old, architect)
	return nil
}

// Discard retires the application. It is terminal.
func (a *Application) Discard() error {
	if err := a.discard(); err != nil {
		return err
	}
	a.touch()
	return nil
}

func (a *Application) touch() {
	a.updatedAt = time.Now().UTC()
}
