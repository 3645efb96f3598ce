// AngelaMos | 2026
// dto.go

package project

import (
	"time"
)

type CreateProjectRequest struct {
	Name         string   `json:"name"          validate:"required,min=1,max=200"`
	ConsultantID string   `json:"consultant_id" validate:"required,uuid"`
	AuxiliaryID  string   `json:"auxiliary_id"  validate:"omitempty,uuid"`
	ClientIDs    []string `json:"client_ids"    validate:"required,min=1,dive,uuid"`
}

func (r CreateProjectRequest) ToNewProject() NewProject {
	return NewProject{
		Name:         r.Name,
		ConsultantID: r.ConsultantID,
		AuxiliaryID:  r.AuxiliaryID,
		ClientIDs:    r.ClientIDs,
	}
}

type UpdateProjectRequest struct {
	Name         *string  `json:"name,omitempty"          validate:"omitempty,min=1,max=200"`
	Status       *string  `json:"status,omitempty"        validate:"omitempty,oneof=in-progress completed archived"`
	CurrentPhase *int     `json:"current_phase,omitempty" validate:"omitempty,min=1,max=10"`
	ConsultantID *string  `json:"consultant_id,omitempty" validate:"omitempty,uuid"`
	AuxiliaryID  *string  `json:"auxiliary_id,omitempty"`
	ClientIDs    []string `json:"client_ids,omitempty"    validate:"omitempty,min=1,dive,uuid"`
	Phases       []Phase  `json:"phases,omitempty"`
}

func (r UpdateProjectRequest) ToUpdate() Update {
	u := Update{
		Fields: Fields{
			Name:         r.Name,
			CurrentPhase: r.CurrentPhase,
			ConsultantID: r.ConsultantID,
			AuxiliaryID:  r.AuxiliaryID,
		},
		ClientIDs: r.ClientIDs,
		Phases:    r.Phases,
	}
	if r.Status != nil {
		st := Status(*r.Status)
		u.Status = &st
	}
	return u
}

type CreateTaskRequest struct {
	PhaseID     int        `json:"phase_id"    validate:"required,min=1,max=10"`
	Title       string     `json:"title"       validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	AssigneeID  string     `json:"assignee_id" validate:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *string    `json:"status,omitempty"      validate:"omitempty,oneof=pending completed approved"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (r UpdateTaskRequest) ToFields() TaskFields {
	f := TaskFields{
		Title:       r.Title,
		Description: r.Description,
		AssigneeID:  r.AssigneeID,
		DueDate:     r.DueDate,
	}
	if r.Status != nil {
		st := TaskStatus(*r.Status)
		f.Status = &st
	}
	return f
}

// onlyStatus reports whether the request touches nothing but the status.
func (r UpdateTaskRequest) onlyStatus() bool {
	return r.Title == nil && r.Description == nil && r.AssigneeID == nil && r.DueDate == nil
}

type PostMessageRequest struct {
	Channel string `json:"channel" validate:"required,oneof=client internal"`
	Content string `json:"content" validate:"required,min=1,max=4000"`
}
