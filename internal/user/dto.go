// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type ListParams struct {
	Search string
	Role   string
}

type MirrorRequest struct {
	Name       string `json:"name"        validate:"required,min=1,max=100"`
	Role       string `json:"role"        validate:"omitempty,oneof=client consultant auxiliary administrator"`
	ClientType string `json:"client_type" validate:"omitempty,oneof=partner interested"`
	AvatarURL  string `json:"avatar_url"  validate:"omitempty,url,max=2048"`
}

type UpdateUserRequest struct {
	Name       *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Role       *string `json:"role,omitempty"        validate:"omitempty,oneof=client consultant auxiliary administrator"`
	ClientType *string `json:"client_type,omitempty" validate:"omitempty,oneof=partner interested"`
	AvatarURL  *string `json:"avatar_url,omitempty"  validate:"omitempty,url,max=2048"`
}

func (r UpdateUserRequest) ToUpdate() Update {
	u := Update{Name: r.Name, AvatarURL: r.AvatarURL}
	if r.Role != nil {
		role := Role(*r.Role)
		u.Role = &role
	}
	if r.ClientType != nil {
		ct := ClientType(*r.ClientType)
		u.ClientType = &ct
	}
	return u
}

type QualificationRequest struct {
	MaritalStatus  string     `json:"marital_status"  validate:"max=50"`
	PropertyRegime string     `json:"property_regime" validate:"max=80"`
	Nationality    string     `json:"nationality"     validate:"max=80"`
	BirthDate      *time.Time `json:"birth_date"`
	Profession     string     `json:"profession"      validate:"max=120"`
	CPF            string     `json:"cpf"             validate:"omitempty,max=14"`
	RG             string     `json:"rg"              validate:"omitempty,max=20"`
	Address        string     `json:"address"         validate:"max=255"`
	Phone          string     `json:"phone"           validate:"omitempty,max=20"`
	SpouseName     string     `json:"spouse_name"     validate:"max=100"`
}

func (r QualificationRequest) ToQualification() Qualification {
	return Qualification{
		MaritalStatus:  r.MaritalStatus,
		PropertyRegime: r.PropertyRegime,
		Nationality:    r.Nationality,
		BirthDate:      r.BirthDate,
		Profession:     r.Profession,
		CPF:            r.CPF,
		RG:             r.RG,
		Address:        r.Address,
		Phone:          r.Phone,
		SpouseName:     r.SpouseName,
	}
}
