// AngelaMos | 2026
// phases.go

package project

type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in-progress"
	PhaseCompleted  PhaseStatus = "completed"
)

func (s PhaseStatus) Valid() bool {
	return s == PhasePending || s == PhaseInProgress || s == PhaseCompleted
}

const (
	PhaseDiagnostic       = 1
	PhaseCompanyFormation = 2
	PhaseAssetIntegration = 3
	PhaseCount            = 10
)

var phaseTitles = [PhaseCount]string{
	"Diagnóstico e Planejamento",
	"Constituição da Holding",
	"Integralização de Bens",
	"Planejamento Tributário",
	"Acordo de Sócios",
	"Planejamento Sucessório",
	"Proteção Patrimonial",
	"Governança Familiar",
	"Implementação",
	"Acompanhamento",
}

func ValidPhase(id int) bool {
	return id >= 1 && id <= PhaseCount
}

func PhaseTitle(id int) string {
	if !ValidPhase(id) {
		return ""
	}
	return phaseTitles[id-1]
}

// initialPhases is the phase set of a freshly opened project: the first
// phase underway, the rest pending.
func initialPhases() []Phase {
	phases := make([]Phase, 0, PhaseCount)
	for id := 1; id <= PhaseCount; id++ {
		status := PhasePending
		if id == PhaseDiagnostic {
			status = PhaseInProgress
		}
		phases = append(phases, Phase{ID: id, Title: PhaseTitle(id), Status: status})
	}
	return phases
}
