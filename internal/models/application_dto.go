package models

import "time"

// RegisterApplicationRequest represents the request body for registering an application
type RegisterApplicationRequest struct {
	Name      string `json:"name" yaml:"name" binding:"required"`
	Version   string `json:"version" yaml:"version"`
	Architect string `json:"architect" yaml:"architect"`
}

// ModifyApplicationRequest represents the full-replacement body for PUT /applications/:id
type ModifyApplicationRequest = RegisterApplicationRequest

// ApplicationResponse represents the response structure for a single application
type ApplicationResponse struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Architect string    `json:"architect"`
	Discarded bool      `json:"discarded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts an Application to its read DTO
func (a *Application) ToResponse() ApplicationResponse {
	return a.toResponse()
}

func (a *Application) toResponse() ApplicationResponse {
	return ApplicationResponse{
		Id:        a.id.String(),
		Name:      a.name,
		Version:   a.version,
		Architect: a.architect,
		Discarded: a.discarded,
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
}
