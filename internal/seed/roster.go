// AngelaMos | 2026
// roster.go

package seed

import (
	"time"

	"github.com/planejarpatrimonio/backend/internal/user"
)

// Account is one demo login created on an empty system.
type Account struct {
	Email         string
	Name          string
	Role          user.Role
	ClientType    user.ClientType
	Qualification *user.Qualification
}

const (
	adminEmail      = "admin@planejarpatrimonio.com.br"
	consultantEmail = "consultor@planejarpatrimonio.com.br"
	auxiliaryEmail  = "auxiliar@planejarpatrimonio.com.br"
	partnerEmail    = "carlos.silva@exemplo.com.br"
	interestedEmail = "ana.silva@exemplo.com.br"
)

// DemoObjective is the phase-1 objective recorded on the demo project.
const DemoObjective = "Proteção patrimonial e planejamento sucessório."

const demoProjectName = "Holding Família Silva"

func birthDate(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// Roster is the fixed set of demo accounts, one per role plus a second
// client.
var Roster = []Account{
	{
		Email: adminEmail,
		Name:  "Administrador Planejar",
		Role:  user.RoleAdministrator,
	},
	{
		Email: consultantEmail,
		Name:  "Ricardo Almeida",
		Role:  user.RoleConsultant,
	},
	{
		Email: auxiliaryEmail,
		Name:  "Fernanda Costa",
		Role:  user.RoleAuxiliary,
	},
	{
		Email:      partnerEmail,
		Name:       "Carlos Silva",
		Role:       user.RoleClient,
		ClientType: user.ClientPartner,
		Qualification: &user.Qualification{
			MaritalStatus:  "casado",
			PropertyRegime: "comunhão parcial de bens",
			Nationality:    "brasileira",
			BirthDate:      birthDate(1968, time.March, 14),
			Profession:     "empresário",
			CPF:            "123.456.789-09",
			RG:             "12.345.678-9",
			Address:        "Rua das Acácias, 120, São Paulo - SP",
			Phone:          "(11) 98765-4321",
			SpouseName:     "Ana Silva",
		},
	},
	{
		Email:      interestedEmail,
		Name:       "Ana Silva",
		Role:       user.RoleClient,
		ClientType: user.ClientInterested,
		Qualification: &user.Qualification{
			MaritalStatus:  "casada",
			PropertyRegime: "comunhão parcial de bens",
			Nationality:    "brasileira",
			BirthDate:      birthDate(1971, time.August, 2),
			Profession:     "arquiteta",
			CPF:            "987.654.321-00",
			RG:             "98.765.432-1",
			Address:        "Rua das Acácias, 120, São Paulo - SP",
			Phone:          "(11) 91234-5678",
			SpouseName:     "Carlos Silva",
		},
	},
}
