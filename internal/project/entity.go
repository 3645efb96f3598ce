// AngelaMos | 2026
// entity.go

package project

import (
	"time"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

func (s Status) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted || s == StatusArchived
}

type DocumentStatus string

const (
	DocumentActive     DocumentStatus = "active"
	DocumentDeprecated DocumentStatus = "deprecated"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskApproved  TaskStatus = "approved"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskCompleted || s == TaskApproved
}

type Channel string

const (
	ChannelClient   Channel = "client"
	ChannelInternal Channel = "internal"
)

func (c Channel) Valid() bool {
	return c == ChannelClient || c == ChannelInternal
}

type Row struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Status       string    `db:"status"`
	CurrentPhase int       `db:"current_phase"`
	ConsultantID string    `db:"consultant_id"`
	AuxiliaryID  *string   `db:"auxiliary_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type ClientRow struct {
	ProjectID string `db:"project_id"`
	ClientID  string `db:"client_id"`
}

type PhaseRow struct {
	ProjectID string     `db:"project_id"`
	PhaseID   int        `db:"phase_id"`
	Status    string     `db:"status"`
	Data      core.JSONB `db:"data"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type DiagnosticRow struct {
	ProjectID         string     `db:"project_id"`
	Objective         string     `db:"objective"`
	FamilyComposition string     `db:"family_composition"`
	AssetsSummary     string     `db:"assets_summary"`
	Concerns          string     `db:"concerns"`
	Notes             string     `db:"notes"`
	MeetingDate       *time.Time `db:"meeting_date"`
}

type CompanyFormationRow struct {
	ProjectID      string     `db:"project_id"`
	CompanyName    string     `db:"company_name"`
	LegalType      string     `db:"legal_type"`
	ShareCapital   float64    `db:"share_capital"`
	CNPJ           string     `db:"cnpj"`
	RegistryStatus string     `db:"registry_status"`
	Partners       core.JSONB `db:"partners"`
}

type AssetIntegrationRow struct {
	ProjectID string     `db:"project_id"`
	Assets    core.JSONB `db:"assets"`
	Notes     string     `db:"notes"`
}

type DocumentRow struct {
	ID         string    `db:"id"`
	ProjectID  string    `db:"project_id"`
	PhaseID    *int      `db:"phase_id"`
	Name       string    `db:"name"`
	URL        string    `db:"url"`
	Path       string    `db:"path"`
	Category   string    `db:"category"`
	UploadedBy string    `db:"uploaded_by"`
	Version    int       `db:"version"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

type TaskRow struct {
	ID          string     `db:"id"`
	ProjectID   string     `db:"project_id"`
	PhaseID     int        `db:"phase_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Status      string     `db:"status"`
	AssigneeID  *string    `db:"assignee_id"`
	CreatedBy   string     `db:"created_by"`
	DueDate     *time.Time `db:"due_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type MessageRow struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	AuthorID  string    `db:"author_id"`
	Channel   string    `db:"channel"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

type ActivityRow struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	CreatedAt time.Time `db:"created_at"`
}

// Project is the nested case file handed to the presentation layer.
type Project struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Status       Status          `json:"status"`
	CurrentPhase int             `json:"currentPhase"`
	ConsultantID string          `json:"consultantId"`
	AuxiliaryID  string          `json:"auxiliaryId,omitempty"`
	ClientIDs    []string        `json:"clients"`
	Phases       []Phase         `json:"phases"`
	Documents    []Document      `json:"documents"`
	Tasks        []Task          `json:"tasks"`
	Messages     []ChatMessage   `json:"chat"`
	Activity     []ActivityEntry `json:"activityLog"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// HasClient reports whether userID is a client member of the project.
func (p *Project) HasClient(userID string) bool {
	for _, id := range p.ClientIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (p *Project) Phase(id int) *Phase {
	for i := range p.Phases {
		if p.Phases[i].ID == id {
			return &p.Phases[i]
		}
	}
	return nil
}

type Phase struct {
	ID               int               `json:"id"`
	Title            string            `json:"title"`
	Status           PhaseStatus       `json:"status"`
	Data             map[string]any    `json:"data,omitempty"`
	Diagnostic       *Diagnostic       `json:"diagnostic,omitempty"`
	CompanyFormation *CompanyFormation `json:"companyFormation,omitempty"`
	AssetIntegration *AssetIntegration `json:"assetIntegration,omitempty"`
}

type Diagnostic struct {
	Objective         string     `json:"objective"`
	FamilyComposition string     `json:"familyComposition,omitempty"`
	AssetsSummary     string     `json:"assetsSummary,omitempty"`
	Concerns          string     `json:"concerns,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	MeetingDate       *time.Time `json:"meetingDate,omitempty"`
}

type CompanyFormation struct {
	CompanyName    string    `json:"companyName"`
	LegalType      string    `json:"legalType,omitempty"`
	ShareCapital   float64   `json:"shareCapital"`
	CNPJ           string    `json:"cnpj,omitempty"`
	RegistryStatus string    `json:"registryStatus,omitempty"`
	Partners       []Partner `json:"partners"`
}

type Partner struct {
	UserID string  `json:"userId,omitempty"`
	Name   string  `json:"name"`
	Share  float64 `json:"share"`
}

type AssetIntegration struct {
	Assets []Asset `json:"assets"`
	Notes  string  `json:"notes,omitempty"`
}

type Asset struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	OwnerID     string  `json:"ownerId,omitempty"`
}

type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Category   string         `json:"category"`
	PhaseID    int            `json:"phaseId,omitempty"`
	UploadedBy string         `json:"uploadedBy"`
	Version    int            `json:"version"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"uploadedAt"`
}

type Task struct {
	ID          string     `json:"id"`
	PhaseID     int        `json:"phaseId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Channel   Channel   `json:"channel"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActivityEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"userId"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"timestamp"`
}
