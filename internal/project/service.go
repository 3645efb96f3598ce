// AngelaMos | 2026
// service.go

package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/user"
)

// ObjectStore is the slice of the blob store projects need.
type ObjectStore interface {
	Put(
		ctx context.Context,
		bucket, path string,
		r io.Reader,
		size int64,
		contentType string,
	) (string, error)
	Remove(ctx context.Context, bucket, path string) error
}

type Buckets struct {
	Documents string
	Contracts string
}

// Update changes a project. ClientIDs replaces the membership when non-nil;
// Phases are compared with the stored phases and only the changed ones are
// written.
type Update struct {
	Fields
	ClientIDs []string
	Phases    []Phase
}

type NewProject struct {
	Name         string
	ConsultantID string
	AuxiliaryID  string
	ClientIDs    []string
}

// Service maps project rows into nested view models. Reads never fail
// outward: errors are logged and surface as empty or nil results.
type Service struct {
	repo    Repository
	store   ObjectStore
	buckets Buckets
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	repo Repository,
	store ObjectStore,
	buckets Buckets,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		buckets: buckets,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	s.logger.ErrorContext(ctx, msg, append(attrs, core.DBErrorAttrs(err)...)...)
}

func (s *Service) List(ctx context.Context) []Project {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logFailure(ctx, "list projects failed", err)
		return []Project{}
	}
	return s.hydrate(ctx, rows)
}

// ListVisible applies the visibility rule: clients see only the projects
// they are members of, without the internal chat channel. Every other role
// sees every project.
func (s *Service) ListVisible(ctx context.Context, userID string, role user.Role) []Project {
	if role != user.RoleClient {
		return s.List(ctx)
	}

	rows, err := s.repo.ListByClient(ctx, userID)
	if err != nil {
		s.logFailure(ctx, "list client projects failed", err, "user_id", userID)
		return []Project{}
	}

	projects := s.hydrate(ctx, rows)
	for i := range projects {
		redactForClient(&projects[i])
	}
	return projects
}

func (s *Service) Get(ctx context.Context, id string) *Project {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "get project failed", err, "project_id", id)
		}
		return nil
	}

	projects := s.hydrate(ctx, []Row{*row})
	if len(projects) == 0 {
		return nil
	}
	return &projects[0]
}

// GetVisible is Get under the ListVisible rule.
func (s *Service) GetVisible(ctx context.Context, id, userID string, role user.Role) *Project {
	p := s.Get(ctx, id)
	if p == nil {
		return nil
	}
	if role == user.RoleClient {
		if !p.HasClient(userID) {
			return nil
		}
		redactForClient(p)
	}
	return p
}

func redactForClient(p *Project) {
	visible := p.Messages[:0]
	for _, m := range p.Messages {
		if m.Channel != ChannelInternal {
			visible = append(visible, m)
		}
	}
	p.Messages = visible
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountByConsultant(ctx context.Context, consultantID string) (int, error) {
	return s.repo.CountByConsultant(ctx, consultantID)
}

func (s *Service) Create(ctx context.Context, in NewProject) *Project {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.ConsultantID == "" || len(in.ClientIDs) == 0 {
		s.logger.WarnContext(ctx, "create project rejected",
			"name", name,
			"clients", len(in.ClientIDs),
		)
		return nil
	}

	row := Row{
		ID:           uuid.New().String(),
		Name:         name,
		Status:       string(StatusInProgress),
		CurrentPhase: PhaseDiagnostic,
		ConsultantID: in.ConsultantID,
		AuxiliaryID:  optional(in.AuxiliaryID),
	}

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		if err := repo.Insert(ctx, &row); err != nil {
			return err
		}
		if err := repo.ReplaceClients(ctx, row.ID, dedupe(in.ClientIDs)); err != nil {
			return err
		}
		for _, ph := range initialPhases() {
			pr, err := toPhaseRow(row.ID, ph)
			if err != nil {
				return err
			}
			if err := repo.UpsertPhase(ctx, pr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "create project failed", err, "name", name)
		return nil
	}

	s.logger.InfoContext(ctx, "project created", "project_id", row.ID)

	return s.Get(ctx, row.ID)
}

func (s *Service) Update(ctx context.Context, id string, u Update) *Project {
	if err := validateUpdate(u); err != nil {
		s.logger.WarnContext(ctx, "update project rejected", "project_id", id, "error", err)
		return nil
	}

	current := s.Get(ctx, id)
	if current == nil {
		return nil
	}

	changed, err := changedPhases(current, u.Phases)
	if err != nil {
		s.logger.ErrorContext(ctx, "compare phases failed", "project_id", id, "error", err)
		return nil
	}

	err = s.repo.WithTx(ctx, func(repo Repository) error {
		if !u.Fields.Empty() {
			if err := repo.UpdateFields(ctx, id, u.Fields); err != nil {
				return err
			}
		}
		if u.ClientIDs != nil {
			if err := repo.ReplaceClients(ctx, id, dedupe(u.ClientIDs)); err != nil {
				return err
			}
		}
		for _, ph := range changed {
			if err := writePhase(ctx, repo, id, ph); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "update project failed", err, "project_id", id)
		return nil
	}

	if len(changed) > 0 {
		s.logger.DebugContext(ctx, "project phases written",
			"project_id", id,
			"phases", len(changed),
		)
	}

	return s.Get(ctx, id)
}

// Delete removes the project and its dependent rows, then its stored
// objects best effort.
func (s *Service) Delete(ctx context.Context, id string) bool {
	docs, err := s.repo.DocumentsFor(ctx, []string{id})
	if err != nil {
		s.logFailure(ctx, "list project documents failed", err, "project_id", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "delete project failed", err, "project_id", id)
		}
		return false
	}

	for _, d := range docs {
		s.removeObject(ctx, s.bucketFor(d.Category), d.Path)
	}

	s.logger.InfoContext(ctx, "project deleted", "project_id", id)
	return true
}

func validateUpdate(u Update) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("name: %w", core.ErrInvalidInput)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("status %q: %w", *u.Status, core.ErrInvalidInput)
	}
	if u.CurrentPhase != nil && !ValidPhase(*u.CurrentPhase) {
		return fmt.Errorf("current phase %d: %w", *u.CurrentPhase, core.ErrInvalidInput)
	}
	if u.ConsultantID != nil && *u.ConsultantID == "" {
		return fmt.Errorf("consultant: %w", core.ErrInvalidInput)
	}
	if u.ClientIDs != nil && len(u.ClientIDs) == 0 {
		return fmt.Errorf("clients: %w", core.ErrInvalidInput)
	}

	for _, ph := range u.Phases {
		if !ValidPhase(ph.ID) {
			return fmt.Errorf("phase %d: %w", ph.ID, core.ErrInvalidInput)
		}
		if ph.Status != "" && !ph.Status.Valid() {
			return fmt.Errorf("phase %d status %q: %w", ph.ID, ph.Status, core.ErrInvalidInput)
		}
	}

	return nil
}

// changedPhases returns the incoming phases whose JSON form differs from
// the stored one. Missing status and title are taken from the stored phase.
func changedPhases(current *Project, incoming []Phase) ([]Phase, error) {
	var changed []Phase

	for _, ph := range incoming {
		prev := current.Phase(ph.ID)
		if prev == nil {
			continue
		}

		ph.Title = prev.Title
		if ph.Status == "" {
			ph.Status = prev.Status
		}

		before, err := json.Marshal(prev)
		if err != nil {
			return nil, err
		}
		after, err := json.Marshal(ph)
		if err != nil {
			return nil, err
		}

		if string(before) != string(after) {
			changed = append(changed, ph)
		}
	}

	return changed, nil
}

func writePhase(ctx context.Context, repo Repository, projectID string, ph Phase) error {
	row, err := toPhaseRow(projectID, ph)
	if err != nil {
		return err
	}
	if err := repo.UpsertPhase(ctx, row); err != nil {
		return err
	}

	if d := ph.Diagnostic; d != nil && ph.ID == PhaseDiagnostic {
		if err := repo.UpsertDiagnostic(ctx, DiagnosticRow{
			ProjectID:         projectID,
			Objective:         d.Objective,
			FamilyComposition: d.FamilyComposition,
			AssetsSummary:     d.AssetsSummary,
			Concerns:          d.Concerns,
			Notes:             d.Notes,
			MeetingDate:       d.MeetingDate,
		}); err != nil {
			return err
		}
	}

	if c := ph.CompanyFormation; c != nil && ph.ID == PhaseCompanyFormation {
		partners := c.Partners
		if partners == nil {
			partners = []Partner{}
		}
		raw, err := core.MarshalJSONB(partners)
		if err != nil {
			return err
		}
		if err := repo.UpsertCompanyFormation(ctx, CompanyFormationRow{
			ProjectID:      projectID,
			CompanyName:    c.CompanyName,
			LegalType:      c.LegalType,
			ShareCapital:   c.ShareCapital,
			CNPJ:           c.CNPJ,
			RegistryStatus: c.RegistryStatus,
			Partners:       raw,
		}); err != nil {
			return err
		}
	}

	if a := ph.AssetIntegration; a != nil && ph.ID == PhaseAssetIntegration {
		assets := a.Assets
		if assets == nil {
			assets = []Asset{}
		}
		raw, err := core.MarshalJSONB(assets)
		if err != nil {
			return err
		}
		if err := repo.UpsertAssetIntegration(ctx, AssetIntegrationRow{
			ProjectID: projectID,
			Assets:    raw,
			Notes:     a.Notes,
		}); err != nil {
			return err
		}
	}

	return nil
}

// hydrate loads every related set with one query each. A failed related
// read degrades to projects without that part.
func (s *Service) hydrate(ctx context.Context, rows []Row) []Project {
	if len(rows) == 0 {
		return []Project{}
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var rel related
	var err error

	if rel.clients, err = s.repo.ClientsFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list project clients failed", err)
	}
	if rel.phases, err = s.repo.PhasesFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list project phases failed", err)
	}
	if rel.diag, err = s.repo.DiagnosticsFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list diagnostics failed", err)
	}
	if rel.company, err = s.repo.CompanyFormationsFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list company formations failed", err)
	}
	if rel.assets, err = s.repo.AssetIntegrationsFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list asset integrations failed", err)
	}
	if rel.documents, err = s.repo.DocumentsFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list documents failed", err)
	}
	if rel.tasks, err = s.repo.TasksFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list tasks failed", err)
	}
	if rel.messages, err = s.repo.MessagesFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list chat messages failed", err)
	}
	if rel.activity, err = s.repo.ActivityFor(ctx, ids); err != nil {
		s.logFailure(ctx, "list activity failed", err)
	}

	projects, err := assemble(rows, rel)
	if err != nil {
		s.logger.ErrorContext(ctx, "assemble projects failed", "error", err)
		return []Project{}
	}
	return projects
}

func (s *Service) bucketFor(category string) string {
	if category == CategoryContracts {
		return s.buckets.Contracts
	}
	return s.buckets.Documents
}

func (s *Service) removeObject(ctx context.Context, bucket, path string) {
	if err := s.store.Remove(ctx, bucket, path); err != nil {
		s.logger.WarnContext(ctx, "remove stored object failed",
			"bucket", bucket,
			"path", path,
			"error", err,
		)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
