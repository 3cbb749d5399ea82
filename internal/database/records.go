package database

import (
	"encoding/json"
	"time"

	"github.com/imyashkale/inventoryserver/internal/models"
)

// ServerRecord is the row shape of the server table
type ServerRecord struct {
	ID              string                 `gorm:"column:id;primaryKey"`
	Name            string                 `gorm:"column:name"`
	CPU             string                 `gorm:"column:cpu"`
	RAM             string                 `gorm:"column:ram"`
	HDD             string                 `gorm:"column:hdd"`
	Environment     string                 `gorm:"column:environment"`
	OperatingSystem models.OperatingSystem `gorm:"column:operating_system;serializer:json"`
	Status          string                 `gorm:"column:status"`
	Discarded       bool                   `gorm:"column:discarded"`
	Revision        int                    `gorm:"column:revision"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime:false"`

	Credentials  []CredentialRecord        `gorm:"foreignKey:ServerID"`
	Applications []ServerApplicationRecord `gorm:"foreignKey:ServerID"`
}

func (ServerRecord) TableName() string { return "server" }

// CredentialRecord is a credential row, ordered within its server by Position
type CredentialRecord struct {
	ID             string `gorm:"column:id;primaryKey"`
	ServerID       string `gorm:"column:server_id"`
	Position       int    `gorm:"column:position"`
	ConnectionType string `gorm:"column:connection_type"`
	Username       string `gorm:"column:username"`
	Password       string `gorm:"column:password"`
	LocalIP        string `gorm:"column:local_ip"`
	LocalPort      int    `gorm:"column:local_port"`
	PublicIP       string `gorm:"column:public_ip"`
	PublicPort     int    `gorm:"column:public_port"`
	Discarded      bool   `gorm:"column:discarded"`
}

func (CredentialRecord) TableName() string { return "credential" }

// ServerApplicationRecord is the composite-keyed install row
type ServerApplicationRecord struct {
	ServerID      string `gorm:"column:server_id;primaryKey"`
	ApplicationID string `gorm:"column:application_id;primaryKey"`
	Position      int    `gorm:"column:position"`
	InstallDir    string `gorm:"column:install_dir"`
	LogDir        string `gorm:"column:log_dir"`
}

func (ServerApplicationRecord) TableName() string { return "server_application" }

// ApplicationRecord is the row shape of the application table
type ApplicationRecord struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Version   string    `gorm:"column:version"`
	Architect string    `gorm:"column:architect"`
	Discarded bool      `gorm:"column:discarded"`
	Revision  int       `gorm:"column:revision"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (ApplicationRecord) TableName() string { return "application" }

// Outbox delivery states
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// OutboxRecord is a domain event waiting for, or done with, delivery
type OutboxRecord struct {
	Sequence      int64      `gorm:"column:sequence;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id"`
	AggregateType string     `gorm:"column:aggregate_type"`
	AggregateID   string     `gorm:"column:aggregate_id"`
	Kind          string     `gorm:"column:kind"`
	RoutingKey    string     `gorm:"column:routing_key"`
	OldValue      string     `gorm:"column:old_value"`
	NewValue      string     `gorm:"column:new_value"`
	OccurredOn    time.Time  `gorm:"column:occurred_on"`
	Status        string     `gorm:"column:status"`
	Attempts      int        `gorm:"column:attempts"`
	LastError     string     `gorm:"column:last_error"`
	DeliveredAt   *time.Time `gorm:"column:delivered_at"`
}

func (OutboxRecord) TableName() string { return "outbox_event" }

func serverRecordFrom(s *models.Server) ServerRecord {
	st := s.State()
	rec := ServerRecord{
		ID:              st.ID.String(),
		Name:            st.Name,
		CPU:             st.CPU,
		RAM:             st.RAM,
		HDD:             st.HDD,
		Environment:     st.Environment,
		OperatingSystem: st.OperatingSystem,
		Status:          string(st.Status),
		Discarded:       st.Discarded,
		Revision:        st.Revision,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	}
	for i, c := range st.Credentials {
		rec.Credentials = append(rec.Credentials, CredentialRecord{
			ID:             c.ID.String(),
			ServerID:       rec.ID,
			Position:       i,
			ConnectionType: c.ConnectionType,
			Username:       c.Username,
			Password:       c.Password,
			LocalIP:        c.LocalIP,
			LocalPort:      c.LocalPort,
			PublicIP:       c.PublicIP,
			PublicPort:     c.PublicPort,
			Discarded:      c.Discarded,
		})
	}
	for i, a := range st.Applications {
		rec.Applications = append(rec.Applications, ServerApplicationRecord{
			ServerID:      rec.ID,
			ApplicationID: a.ApplicationID.String(),
			Position:      i,
			InstallDir:    a.InstallDir,
			LogDir:        a.LogDir,
		})
	}
	return rec
}

func (r ServerRecord) toModel() *models.Server {
	st := models.ServerState{
		ID:              models.ID(r.ID),
		Name:            r.Name,
		CPU:             r.CPU,
		RAM:             r.RAM,
		HDD:             r.HDD,
		Environment:     r.Environment,
		OperatingSystem: r.OperatingSystem,
		Status:          models.ServerStatus(r.Status),
		Discarded:       r.Discarded,
		Revision:        r.Revision,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	for _, c := range r.Credentials {
		st.Credentials = append(st.Credentials, models.Credential{
			ID:             models.ID(c.ID),
			ServerID:       models.ID(c.ServerID),
			ConnectionType: c.ConnectionType,
			Username:       c.Username,
			Password:       c.Password,
			LocalIP:        c.LocalIP,
			LocalPort:      c.LocalPort,
			PublicIP:       c.PublicIP,
			PublicPort:     c.PublicPort,
			Discarded:      c.Discarded,
		})
	}
	for _, a := range r.Applications {
		st.Applications = append(st.Applications, models.ServerApplication{
			ServerID:      models.ID(a.ServerID),
			ApplicationID: models.ID(a.ApplicationID),
			InstallDir:    a.InstallDir,
			LogDir:        a.LogDir,
		})
	}
	return models.RestoreServer(st)
}

func applicationRecordFrom(a *models.Application) ApplicationRecord {
	st := a.State()
	return ApplicationRecord{
		ID:        st.ID.String(),
		Name:      st.Name,
		Version:   st.Version,
		Architect: st.Architect,
		Discarded: st.Discarded,
		Revision:  st.Revision,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
}

func (r ApplicationRecord) toModel() *models.Application {
	return models.RestoreApplication(models.ApplicationState{
		ID:        models.ID(r.ID),
		Name:      r.Name,
		Version:   r.Version,
		Architect: r.Architect,
		Discarded: r.Discarded,
		Revision:  r.Revision,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	})
}

// operatingSystemJSON renders the column value for map based updates, which
// bypass the field serializer.
func operatingSystemJSON(os models.OperatingSystem) string {
	b, _ := json.Marshal(os)
	return string(b)
}
