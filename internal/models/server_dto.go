package models

import "time"

// CredentialRequest is the wire form of a credential in create/update bodies
type CredentialRequest struct {
	Id             string `json:"id" yaml:"id"`
	ConnectionType string `json:"connection_type" yaml:"connection_type" binding:"required"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	LocalIP        string `json:"local_ip" yaml:"local_ip"`
	LocalPort      int    `json:"local_port" yaml:"local_port"`
	PublicIP       string `json:"public_ip" yaml:"public_ip"`
	PublicPort     int    `json:"public_port" yaml:"public_port"`
}

// ServerApplicationRequest links an existing application to a server
type ServerApplicationRequest struct {
	ApplicationId string `json:"application_id" yaml:"application_id" binding:"required"`
	InstallDir    string `json:"install_dir" yaml:"install_dir" binding:"required"`
	LogDir        string `json:"log_dir" yaml:"log_dir" binding:"required"`
}

// RegisterServerRequest represents the request body for registering a server
type RegisterServerRequest struct {
	Name            string                     `json:"name" yaml:"name" binding:"required"`
	CPU             string                     `json:"cpu" yaml:"cpu"`
	RAM             string                     `json:"ram" yaml:"ram"`
	HDD             string                     `json:"hdd" yaml:"hdd"`
	Environment     string                     `json:"environment" yaml:"environment" binding:"required"`
	OperatingSystem OperatingSystem            `json:"operating_system" yaml:"operating_system"`
	Credentials     []CredentialRequest        `json:"credentials" yaml:"credentials"`
	Applications    []ServerApplicationRequest `json:"applications" yaml:"applications"`
}

// ToSpec converts the request DTO to the aggregate's registration spec
func (req *RegisterServerRequest) ToSpec() ServerSpec {
	return ServerSpec{
		Name:            req.Name,
		CPU:             req.CPU,
		RAM:             req.RAM,
		HDD:             req.HDD,
		Environment:     req.Environment,
		OperatingSystem: req.OperatingSystem,
		Credentials:     credentialsFromRequest(req.Credentials),
		Applications:    applicationsFromRequest(req.Applications),
	}
}

// ModifyServerRequest represents the full-replacement body for PUT /servers/:id
type ModifyServerRequest struct {
	RegisterServerRequest
	Status string `json:"status" yaml:"status"`
}

func credentialsFromRequest(in []CredentialRequest) []Credential {
	out := make([]Credential, 0, len(in))
	for _, c := range in {
		out = append(out, Credential{
			ID:             ID(c.Id),
			ConnectionType: c.ConnectionType,
			Username:       c.Username,
			Password:       c.Password,
			LocalIP:        c.LocalIP,
			LocalPort:      c.LocalPort,
			PublicIP:       c.PublicIP,
			PublicPort:     c.PublicPort,
		})
	}
	return out
}

func applicationsFromRequest(in []ServerApplicationRequest) []ServerApplication {
	out := make([]ServerApplication, 0, len(in))
	for _, a := range in {
		out = append(out, ServerApplication{
			ApplicationID: ID(a.ApplicationId),
			InstallDir:    a.InstallDir,
			LogDir:        a.LogDir,
		})
	}
	return out
}

// CredentialResponse is the read projection of a credential. Passwords never leave the store.
type CredentialResponse struct {
	Id             string `json:"id"`
	ConnectionType string `json:"connection_type"`
	Username       string `json:"username"`
	LocalIP        string `json:"local_ip"`
	LocalPort      int    `json:"local_port"`
	PublicIP       string `json:"public_ip"`
	PublicPort     int    `json:"public_port"`
}

// ServerApplicationResponse is the read projection of an installed application
type ServerApplicationResponse struct {
	ApplicationId string `json:"application_id"`
	InstallDir    string `json:"install_dir"`
	LogDir        string `json:"log_dir"`
}

// ServerResponse represents the response structure for a single server
type ServerResponse struct {
	Id              string                      `json:"id"`
	Name            string                      `json:"name"`
	CPU             string                      `json:"cpu"`
	RAM             string                      `json:"ram"`
	HDD             string                      `json:"hdd"`
	Environment     string                      `json:"environment"`
	OperatingSystem OperatingSystem             `json:"operating_system"`
	Credentials     []CredentialResponse        `json:"credentials"`
	Applications    []ServerApplicationResponse `json:"applications"`
	Status          ServerStatus                `json:"status"`
	Discarded       bool                        `json:"discarded"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// ToResponse converts a Server to its read DTO. Discarded servers are
// projected as-is so a direct lookup can report discarded=true.
func (s *Server) ToResponse() ServerResponse {
	return s.toResponse()
}

func (s *Server) toResponse() ServerResponse {
	return ServerResponse{
		Id:              s.id.String(),
		Name:            s.name,
		CPU:             s.cpu,
		RAM:             s.ram,
		HDD:             s.hdd,
		Environment:     s.environment,
		OperatingSystem: s.operatingSystem,
		Credentials:     credentialResponses(s.credentials),
		Applications:    serverApplicationResponses(s.applications),
		Status:          s.status,
		Discarded:       s.discarded,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
}

func credentialResponses(in []Credential) []CredentialResponse {
	out := make([]CredentialResponse, 0, len(in))
	for _, c := range in {
		out = append(out, CredentialResponse{
			Id:             c.ID.String(),
			ConnectionType: c.ConnectionType,
			Username:       c.Username,
			LocalIP:        c.LocalIP,
			LocalPort:      c.LocalPort,
			PublicIP:       c.PublicIP,
			PublicPort:     c.PublicPort,
		})
	}
	return out
}

func serverApplicationResponses(in []ServerApplication) []ServerApplicationResponse {
	out := make([]ServerApplicationResponse, 0, len(in))
	for _, a := range in {
		out = append(out, ServerApplicationResponse{
			ApplicationId: a.ApplicationID.String(),
			InstallDir:    a.InstallDir,
			LogDir:        a.LogDir,
		})
	}
	return out
}
