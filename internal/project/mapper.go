// AngelaMos | 2026
// mapper.go

package project

import (
	"fmt"

	"github.com/planejarpatrimonio/backend/internal/core"
)

// related is every per-project set loaded alongside the project rows.
type related struct {
	clients   []ClientRow
	phases    []PhaseRow
	diag      []DiagnosticRow
	company   []CompanyFormationRow
	assets    []AssetIntegrationRow
	documents []DocumentRow
	tasks     []TaskRow
	messages  []MessageRow
	activity  []ActivityRow
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func assemble(rows []Row, rel related) ([]Project, error) {
	byID := make(map[string]*Project, len(rows))
	projects := make([]Project, len(rows))

	for i, r := range rows {
		projects[i] = Project{
			ID:           r.ID,
			Name:         r.Name,
			Status:       Status(r.Status),
			CurrentPhase: r.CurrentPhase,
			ConsultantID: r.ConsultantID,
			AuxiliaryID:  deref(r.AuxiliaryID),
			ClientIDs:    []string{},
			Phases:       initialPhases(),
			Documents:    []Document{},
			Tasks:        []Task{},
			Messages:     []ChatMessage{},
			Activity:     []ActivityEntry{},
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
		byID[r.ID] = &projects[i]
	}

	for _, c := range rel.clients {
		if p, ok := byID[c.ProjectID]; ok {
			p.ClientIDs = append(p.ClientIDs, c.ClientID)
		}
	}

	for _, ph := range rel.phases {
		p, ok := byID[ph.ProjectID]
		if !ok {
			continue
		}
		target := p.Phase(ph.PhaseID)
		if target == nil {
			continue
		}
		target.Status = PhaseStatus(ph.Status)
		if err := ph.Data.Decode(&target.Data); err != nil {
			return nil, fmt.Errorf("decode phase %d of %s: %w", ph.PhaseID, ph.ProjectID, err)
		}
		if len(target.Data) == 0 {
			target.Data = nil
		}
	}

	for _, d := range rel.diag {
		if p, ok := byID[d.ProjectID]; ok {
			p.Phase(PhaseDiagnostic).Diagnostic = &Diagnostic{
				Objective:         d.Objective,
				FamilyComposition: d.FamilyComposition,
				AssetsSummary:     d.AssetsSummary,
				Concerns:          d.Concerns,
				Notes:             d.Notes,
				MeetingDate:       d.MeetingDate,
			}
		}
	}

	for _, c := range rel.company {
		p, ok := byID[c.ProjectID]
		if !ok {
			continue
		}
		cf := &CompanyFormation{
			CompanyName:    c.CompanyName,
			LegalType:      c.LegalType,
			ShareCapital:   c.ShareCapital,
			CNPJ:           c.CNPJ,
			RegistryStatus: c.RegistryStatus,
			Partners:       []Partner{},
		}
		if err := c.Partners.Decode(&cf.Partners); err != nil {
			return nil, fmt.Errorf("decode partners of %s: %w", c.ProjectID, err)
		}
		p.Phase(PhaseCompanyFormation).CompanyFormation = cf
	}

	for _, a := range rel.assets {
		p, ok := byID[a.ProjectID]
		if !ok {
			continue
		}
		ai := &AssetIntegration{Assets: []Asset{}, Notes: a.Notes}
		if err := a.Assets.Decode(&ai.Assets); err != nil {
			return nil, fmt.Errorf("decode assets of %s: %w", a.ProjectID, err)
		}
		p.Phase(PhaseAssetIntegration).AssetIntegration = ai
	}

	for _, d := range rel.documents {
		if p, ok := byID[d.ProjectID]; ok {
			p.Documents = append(p.Documents, toDocument(d))
		}
	}

	for _, t := range rel.tasks {
		if p, ok := byID[t.ProjectID]; ok {
			p.Tasks = append(p.Tasks, toTask(t))
		}
	}

	for _, m := range rel.messages {
		if p, ok := byID[m.ProjectID]; ok {
			p.Messages = append(p.Messages, toMessage(m))
		}
	}

	for _, a := range rel.activity {
		if p, ok := byID[a.ProjectID]; ok {
			p.Activity = append(p.Activity, ActivityEntry{
				ID:        a.ID,
				ActorID:   a.ActorID,
				Action:    a.Action,
				CreatedAt: a.CreatedAt,
			})
		}
	}

	return projects, nil
}

func toDocument(d DocumentRow) Document {
	doc := Document{
		ID:         d.ID,
		Name:       d.Name,
		URL:        d.URL,
		Category:   d.Category,
		UploadedBy: d.UploadedBy,
		Version:    d.Version,
		Status:     DocumentStatus(d.Status),
		CreatedAt:  d.CreatedAt,
	}
	if d.PhaseID != nil {
		doc.PhaseID = *d.PhaseID
	}
	return doc
}

func toTask(t TaskRow) Task {
	return Task{
		ID:          t.ID,
		PhaseID:     t.PhaseID,
		Title:       t.Title,
		Description: t.Description,
		Status:      TaskStatus(t.Status),
		AssigneeID:  deref(t.AssigneeID),
		CreatedBy:   t.CreatedBy,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
	}
}

func toMessage(m MessageRow) ChatMessage {
	return ChatMessage{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Channel:   Channel(m.Channel),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toPhaseRow(projectID string, ph Phase) (PhaseRow, error) {
	data, err := encodeData(ph.Data)
	if err != nil {
		return PhaseRow{}, err
	}
	status := ph.Status
	if status == "" {
		status = PhasePending
	}
	return PhaseRow{
		ProjectID: projectID,
		PhaseID:   ph.ID,
		Status:    string(status),
		Data:      data,
	}, nil
}

func encodeData(data map[string]any) (core.JSONB, error) {
	if data == nil {
		return core.JSONB("{}"), nil
	}
	return core.MarshalJSONB(data)
}
