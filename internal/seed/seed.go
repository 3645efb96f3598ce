// AngelaMos | 2026
// seed.go

package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/session"
	"github.com/planejarpatrimonio/backend/internal/user"
)

var ErrProductionClear = errors.New("refusing to clear a production database")

// DefaultPassword is the password of every demo account.
const DefaultPassword = "planejar123"

// Accounts creates logins. The session façade satisfies it.
type Accounts interface {
	SignUp(ctx context.Context, p session.SignUpParams) (*session.AuthResult, error)
	SignOut(ctx context.Context) bool
}

type Users interface {
	Count(ctx context.Context) (int, error)
	GetByEmail(ctx context.Context, email string) *user.User
	UpdateQualification(ctx context.Context, id string, q user.Qualification) bool
}

type Projects interface {
	CountByConsultant(ctx context.Context, consultantID string) (int, error)
	Create(ctx context.Context, in project.NewProject) *project.Project
	Update(ctx context.Context, id string, u project.Update) *project.Project
}

type Options struct {
	Accounts   Accounts
	Users      Users
	Projects   Projects
	DB         *sqlx.DB
	Password   string
	Production bool
	Logger     *slog.Logger
}

type Result struct {
	AlreadySeeded bool     `json:"alreadySeeded"`
	UsersCreated  []string `json:"usersCreated"`
	ProjectID     string   `json:"projectId,omitempty"`
}

type Seeder struct {
	accounts   Accounts
	users      Users
	projects   Projects
	db         *sqlx.DB
	password   string
	production bool
	logger     *slog.Logger
}

func New(opts Options) *Seeder {
	password := opts.Password
	if password == "" {
		password = DefaultPassword
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		accounts:   opts.Accounts,
		users:      opts.Users,
		projects:   opts.Projects,
		db:         opts.DB,
		password:   password,
		production: opts.Production,
		logger:     logger,
	}
}

// Initialize populates an empty system with the demo roster and project.
// Every step skips records that already exist, so repeated runs insert
// nothing.
func (s *Seeder) Initialize(ctx context.Context) (Result, error) {
	ctx, span := core.StartSpan(ctx, "seed.initialize")
	defer span.End()

	res, err := s.initialize(ctx)
	if err != nil {
		core.SetSpanError(ctx, err)
		return res, err
	}

	span.SetAttributes(
		attribute.Int("seed.users_created", len(res.UsersCreated)),
		attribute.Bool("seed.already_seeded", res.AlreadySeeded),
	)
	return res, nil
}

func (s *Seeder) initialize(ctx context.Context) (Result, error) {
	res := Result{UsersCreated: []string{}}

	count, err := s.users.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("count users: %w", err)
	}

	ids := make(map[string]string, len(Roster))

	if count == 0 {
		if err := s.createRoster(ctx, ids, &res); err != nil {
			return res, err
		}
	} else {
		s.logger.InfoContext(ctx, "users present, roster skipped", "count", count)
	}

	for _, a := range Roster {
		if _, ok := ids[a.Email]; ok {
			continue
		}
		if u := s.users.GetByEmail(ctx, a.Email); u != nil {
			ids[a.Email] = u.ID
		}
	}

	projectID, err := s.createDemoProject(ctx, ids)
	if err != nil {
		return res, err
	}
	res.ProjectID = projectID

	res.AlreadySeeded = len(res.UsersCreated) == 0 && projectID == ""

	s.logger.InfoContext(ctx, "seed finished",
		"already_seeded", res.AlreadySeeded,
		"users_created", len(res.UsersCreated),
		"project_id", projectID,
	)

	return res, nil
}

func (s *Seeder) createRoster(ctx context.Context, ids map[string]string, res *Result) error {
	defer s.accounts.SignOut(ctx)

	for _, a := range Roster {
		if u := s.users.GetByEmail(ctx, a.Email); u != nil {
			ids[a.Email] = u.ID
			continue
		}

		out, err := s.accounts.SignUp(ctx, session.SignUpParams{
			Email:      a.Email,
			Password:   s.password,
			Name:       a.Name,
			Role:       a.Role,
			ClientType: a.ClientType,
		})
		if err != nil {
			return fmt.Errorf("create account %s: %w", a.Email, err)
		}

		ids[a.Email] = out.User.ID
		res.UsersCreated = append(res.UsersCreated, a.Email)

		s.logger.InfoContext(ctx, "demo account created", "email", a.Email, "role", a.Role)
	}

	return nil
}

// createDemoProject opens the demo case file unless the consultant already
// owns a project. It returns the new project id, or "" when skipped.
func (s *Seeder) createDemoProject(ctx context.Context, ids map[string]string) (string, error) {
	consultantID := ids[consultantEmail]
	partnerID := ids[partnerEmail]
	interestedID := ids[interestedEmail]

	if consultantID == "" || partnerID == "" || interestedID == "" {
		s.logger.WarnContext(ctx, "demo project skipped: roster incomplete")
		return "", nil
	}

	owned, err := s.projects.CountByConsultant(ctx, consultantID)
	if err != nil {
		return "", fmt.Errorf("count consultant projects: %w", err)
	}
	if owned > 0 {
		return "", nil
	}

	p := s.projects.Create(ctx, project.NewProject{
		Name:         demoProjectName,
		ConsultantID: consultantID,
		AuxiliaryID:  ids[auxiliaryEmail],
		ClientIDs:    []string{partnerID, interestedID},
	})
	if p == nil {
		return "", fmt.Errorf("create demo project: %w", core.ErrInvalidInput)
	}

	updated := s.projects.Update(ctx, p.ID, project.Update{
		Phases: []project.Phase{{
			ID:     project.PhaseDiagnostic,
			Status: project.PhaseInProgress,
			Data: map[string]any{
				"objective": DemoObjective,
			},
			Diagnostic: &project.Diagnostic{
				Objective:         DemoObjective,
				FamilyComposition: "Casal com dois filhos maiores de idade.",
				AssetsSummary:     "Imóveis residenciais e comerciais, participações societárias e aplicações financeiras.",
				Concerns:          "Custo e demora de inventário; proteção contra riscos da atividade empresarial.",
			},
		}},
	})
	if updated == nil {
		s.logger.WarnContext(ctx, "demo diagnostic not written", "project_id", p.ID)
	}

	for _, a := range Roster {
		if a.Qualification == nil {
			continue
		}
		if !s.users.UpdateQualification(ctx, ids[a.Email], *a.Qualification) {
			s.logger.WarnContext(ctx, "demo qualification not written", "email", a.Email)
		}
	}

	return p.ID, nil
}

// clearOrder lists every table children first.
var clearOrder = []string{
	"activity_logs",
	"chat_messages",
	"tasks",
	"documents",
	"phase_asset_integration",
	"phase_company_formation",
	"phase_diagnostic",
	"project_phases",
	"project_clients",
	"projects",
	"user_documents",
	"user_qualifications",
	"users",
	"refresh_tokens",
	"auth_users",
}

// Clear deletes every row of every table in one transaction. It is for
// demo and test environments only.
func (s *Seeder) Clear(ctx context.Context) error {
	if s.production {
		return ErrProductionClear
	}
	if s.db == nil {
		return errors.New("clear: no database")
	}

	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { //nolint:gosec // fixed table list
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "all data cleared", "tables", len(clearOrder))
	return nil
}
