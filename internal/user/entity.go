// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type Role string

const (
	RoleClient        Role = "client"
	RoleConsultant    Role = "consultant"
	RoleAuxiliary     Role = "auxiliary"
	RoleAdministrator Role = "administrator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleConsultant, RoleAuxiliary, RoleAdministrator:
		return true
	}
	return false
}

// IsStaff reports whether the role works on the consultancy side.
func (r Role) IsStaff() bool {
	return r == RoleConsultant || r == RoleAuxiliary || r == RoleAdministrator
}

type ClientType string

const (
	ClientPartner    ClientType = "partner"
	ClientInterested ClientType = "interested"
)

func (c ClientType) Valid() bool {
	return c == ClientPartner || c == ClientInterested
}

type Row struct {
	ID         string    `db:"id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	Role       string    `db:"role"`
	ClientType *string   `db:"client_type"`
	AvatarURL  *string   `db:"avatar_url"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type QualificationRow struct {
	UserID         string     `db:"user_id"`
	MaritalStatus  *string    `db:"marital_status"`
	PropertyRegime *string    `db:"property_regime"`
	Nationality    *string    `db:"nationality"`
	BirthDate      *time.Time `db:"birth_date"`
	Profession     *string    `db:"profession"`
	CPF            *string    `db:"cpf"`
	RG             *string    `db:"rg"`
	Address        *string    `db:"address"`
	Phone          *string    `db:"phone"`
	SpouseName     *string    `db:"spouse_name"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type DocumentRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Name       string    `db:"name"`
	URL        string    `db:"url"`
	Path       string    `db:"path"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// User is the nested view of a person: the mirrored row plus their civil
// qualification and personal documents.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Role          Role           `json:"role"`
	ClientType    ClientType     `json:"clientType,omitempty"`
	AvatarURL     string         `json:"avatarUrl,omitempty"`
	Qualification *Qualification `json:"qualificationData,omitempty"`
	Documents     []Document     `json:"documents"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type Qualification struct {
	MaritalStatus  string     `json:"maritalStatus,omitempty"`
	PropertyRegime string     `json:"propertyRegime,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	BirthDate      *time.Time `json:"birthDate,omitempty"`
	Profession     string     `json:"profession,omitempty"`
	CPF            string     `json:"cpf,omitempty"`
	RG             string     `json:"rg,omitempty"`
	Address        string     `json:"address,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	SpouseName     string     `json:"spouseName,omitempty"`
}

type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Update carries the editable top-level fields; nil leaves a column as is.
type Update struct {
	Name       *string
	Role       *Role
	ClientType *ClientType
	AvatarURL  *string
}

func (u Update) Empty() bool {
	return u.Name == nil && u.Role == nil && u.ClientType == nil && u.AvatarURL == nil
}
