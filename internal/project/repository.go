// AngelaMos | 2026
// repository.go

package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/planejarpatrimonio/backend/internal/core"
)

// Fields is the whitelist of top-level project columns a caller may
// change. Nil leaves the column as is; an empty AuxiliaryID clears it.
type Fields struct {
	Name         *string
	Status       *Status
	CurrentPhase *int
	ConsultantID *string
	AuxiliaryID  *string
}

func (f Fields) Empty() bool {
	return f.Name == nil && f.Status == nil && f.CurrentPhase == nil &&
		f.ConsultantID == nil && f.AuxiliaryID == nil
}

type TaskFields struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssigneeID  *string
	DueDate     *time.Time
}

type Repository interface {
	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error

	List(ctx context.Context) ([]Row, error)
	ListByClient(ctx context.Context, clientID string) ([]Row, error)
	GetByID(ctx context.Context, id string) (*Row, error)
	Insert(ctx context.Context, row *Row) error
	UpdateFields(ctx context.Context, id string, f Fields) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByConsultant(ctx context.Context, consultantID string) (int, error)

	ClientsFor(ctx context.Context, ids []string) ([]ClientRow, error)
	ReplaceClients(ctx context.Context, projectID string, clientIDs []string) error

	PhasesFor(ctx context.Context, ids []string) ([]PhaseRow, error)
	UpsertPhase(ctx context.Context, row PhaseRow) error
	DiagnosticsFor(ctx context.Context, ids []string) ([]DiagnosticRow, error)
	UpsertDiagnostic(ctx context.Context, row DiagnosticRow) error
	CompanyFormationsFor(ctx context.Context, ids []string) ([]CompanyFormationRow, error)
	UpsertCompanyFormation(ctx context.Context, row CompanyFormationRow) error
	AssetIntegrationsFor(ctx context.Context, ids []string) ([]AssetIntegrationRow, error)
	UpsertAssetIntegration(ctx context.Context, row AssetIntegrationRow) error

	DocumentsFor(ctx context.Context, ids []string) ([]DocumentRow, error)
	LatestDocumentVersion(ctx context.Context, projectID string, phaseID *int, name string) (int, error)
	DeprecateDocumentsNamed(ctx context.Context, projectID string, phaseID *int, name string) error
	DeprecateDocument(ctx context.Context, projectID, docID string) error
	InsertDocument(ctx context.Context, row *DocumentRow) error

	TasksFor(ctx context.Context, ids []string) ([]TaskRow, error)
	InsertTask(ctx context.Context, row *TaskRow) error
	UpdateTask(ctx context.Context, projectID, taskID string, f TaskFields) (*TaskRow, error)

	MessagesFor(ctx context.Context, ids []string) ([]MessageRow, error)
	InsertMessage(ctx context.Context, row *MessageRow) error

	ActivityFor(ctx context.Context, ids []string) ([]ActivityRow, error)
	InsertActivity(ctx context.Context, row *ActivityRow) error
}

type repository struct {
	db *sqlx.DB
	q  core.DBTX
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, q: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&repository{q: tx})
	})
}

const projectColumns = `id, name, status, current_phase, consultant_id, auxiliary_id, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Row, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`

	var rows []Row
	if err := r.q.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return rows, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID string) ([]Row, error) {
	query := `
		SELECT p.id, p.name, p.status, p.current_phase, p.consultant_id,
		       p.auxiliary_id, p.created_at, p.updated_at
		FROM projects p
		JOIN project_clients pc ON pc.project_id = p.id
		WHERE pc.client_id = $1
		ORDER BY p.created_at DESC`

	var rows []Row
	if err := r.q.SelectContext(ctx, &rows, query, clientID); err != nil {
		return nil, fmt.Errorf("list projects by client: %w", err)
	}
	return rows, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Row, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	var row Row
	err := r.q.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get project: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &row, nil
}

func (r *repository) Insert(ctx context.Context, row *Row) error {
	query := `
		INSERT INTO projects (id, name, status, current_phase, consultant_id, auxiliary_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.q.QueryRowxContext(ctx, query,
		row.ID,
		row.Name,
		row.Status,
		row.CurrentPhase,
		row.ConsultantID,
		row.AuxiliaryID,
	).Scan(&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("insert project: %w", core.ErrInvalidInput)
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *repository) UpdateFields(ctx context.Context, id string, f Fields) error {
	var (
		sets []string
		args = []any{id}
	)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Name != nil {
		set("name", *f.Name)
	}
	if f.Status != nil {
		set("status", string(*f.Status))
	}
	if f.CurrentPhase != nil {
		set("current_phase", *f.CurrentPhase)
	}
	if f.ConsultantID != nil {
		set("consultant_id", *f.ConsultantID)
	}
	if f.AuxiliaryID != nil {
		set("auxiliary_id", optional(*f.AuxiliaryID))
	}

	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE projects SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $1`

	return r.execOne(ctx, "update project", query, args...)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete project", `DELETE FROM projects WHERE id = $1`, id)
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM projects`); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func (r *repository) CountByConsultant(ctx context.Context, consultantID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM projects WHERE consultant_id = $1`
	if err := r.q.GetContext(ctx, &n, query, consultantID); err != nil {
		return 0, fmt.Errorf("count projects by consultant: %w", err)
	}
	return n, nil
}

func (r *repository) ClientsFor(ctx context.Context, ids []string) ([]ClientRow, error) {
	var rows []ClientRow
	err := r.selectFor(ctx, &rows, "list project clients", `
		SELECT project_id, client_id FROM project_clients
		WHERE project_id = ANY($1::uuid[])
		ORDER BY client_id`, ids)
	return rows, err
}

func (r *repository) ReplaceClients(ctx context.Context, projectID string, clientIDs []string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM project_clients WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("replace project clients: %w", err)
	}

	if len(clientIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO project_clients (project_id, client_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`

	if _, err := r.q.ExecContext(ctx, query, projectID, clientIDs); err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("replace project clients: %w", core.ErrInvalidInput)
		}
		return fmt.Errorf("replace project clients: %w", err)
	}
	return nil
}

func (r *repository) PhasesFor(ctx context.Context, ids []string) ([]PhaseRow, error) {
	var rows []PhaseRow
	err := r.selectFor(ctx, &rows, "list project phases", `
		SELECT project_id, phase_id, status, data, updated_at FROM project_phases
		WHERE project_id = ANY($1::uuid[])
		ORDER BY phase_id`, ids)
	return rows, err
}

func (r *repository) UpsertPhase(ctx context.Context, row PhaseRow) error {
	query := `
		INSERT INTO project_phases (project_id, phase_id, status, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, phase_id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = NOW()`

	if _, err := r.q.ExecContext(ctx, query, row.ProjectID, row.PhaseID, row.Status, row.Data); err != nil {
		return fmt.Errorf("upsert phase %d: %w", row.PhaseID, err)
	}
	return nil
}

func (r *repository) DiagnosticsFor(ctx context.Context, ids []string) ([]DiagnosticRow, error) {
	var rows []DiagnosticRow
	err := r.selectFor(ctx, &rows, "list diagnostics", `
		SELECT project_id, objective, family_composition, assets_summary,
		       concerns, notes, meeting_date
		FROM phase_diagnostic
		WHERE project_id = ANY($1::uuid[])`, ids)
	return rows, err
}

func (r *repository) UpsertDiagnostic(ctx context.Context, row DiagnosticRow) error {
	query := `
		INSERT INTO phase_diagnostic (
			project_id, objective, family_composition, assets_summary,
			concerns, notes, meeting_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id) DO UPDATE
		SET objective = EXCLUDED.objective,
		    family_composition = EXCLUDED.family_composition,
		    assets_summary = EXCLUDED.assets_summary,
		    concerns = EXCLUDED.concerns,
		    notes = EXCLUDED.notes,
		    meeting_date = EXCLUDED.meeting_date,
		    updated_at = NOW()`

	_, err := r.q.ExecContext(ctx, query,
		row.ProjectID,
		row.Objective,
		row.FamilyComposition,
		row.AssetsSummary,
		row.Concerns,
		row.Notes,
		row.MeetingDate,
	)
	if err != nil {
		return fmt.Errorf("upsert diagnostic: %w", err)
	}
	return nil
}

func (r *repository) CompanyFormationsFor(ctx context.Context, ids []string) ([]CompanyFormationRow, error) {
	var rows []CompanyFormationRow
	err := r.selectFor(ctx, &rows, "list company formations", `
		SELECT project_id, company_name, legal_type, share_capital, cnpj,
		       registry_status, partners
		FROM phase_company_formation
		WHERE project_id = ANY($1::uuid[])`, ids)
	return rows, err
}

func (r *repository) UpsertCompanyFormation(ctx context.Context, row CompanyFormationRow) error {
	query := `
		INSERT INTO phase_company_formation (
			project_id, company_name, legal_type, share_capital, cnpj,
			registry_status, partners
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id) DO UPDATE
		SET company_name = EXCLUDED.company_name,
		    legal_type = EXCLUDED.legal_type,
		    share_capital = EXCLUDED.share_capital,
		    cnpj = EXCLUDED.cnpj,
		    registry_status = EXCLUDED.registry_status,
		    partners = EXCLUDED.partners,
		    updated_at = NOW()`

	_, err := r.q.ExecContext(ctx, query,
		row.ProjectID,
		row.CompanyName,
		row.LegalType,
		row.ShareCapital,
		row.CNPJ,
		row.RegistryStatus,
		row.Partners,
	)
	if err != nil {
		return fmt.Errorf("upsert company formation: %w", err)
	}
	return nil
}

func (r *repository) AssetIntegrationsFor(ctx context.Context, ids []string) ([]AssetIntegrationRow, error) {
	var rows []AssetIntegrationRow
	err := r.selectFor(ctx, &rows, "list asset integrations", `
		SELECT project_id, assets, notes FROM phase_asset_integration
		WHERE project_id = ANY($1::uuid[])`, ids)
	return rows, err
}

func (r *repository) UpsertAssetIntegration(ctx context.Context, row AssetIntegrationRow) error {
	query := `
		INSERT INTO phase_asset_integration (project_id, assets, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO UPDATE
		SET assets = EXCLUDED.assets, notes = EXCLUDED.notes, updated_at = NOW()`

	if _, err := r.q.ExecContext(ctx, query, row.ProjectID, row.Assets, row.Notes); err != nil {
		return fmt.Errorf("upsert asset integration: %w", err)
	}
	return nil
}

func (r *repository) DocumentsFor(ctx context.Context, ids []string) ([]DocumentRow, error) {
	var rows []DocumentRow
	err := r.selectFor(ctx, &rows, "list documents", `
		SELECT id, project_id, phase_id, name, url, path, category, uploaded_by,
		       version, status, created_at
		FROM documents
		WHERE project_id = ANY($1::uuid[])
		ORDER BY created_at`, ids)
	return rows, err
}

func (r *repository) LatestDocumentVersion(
	ctx context.Context,
	projectID string,
	phaseID *int,
	name string,
) (int, error) {
	query := `
		SELECT COALESCE(MAX(version), 0) FROM documents
		WHERE project_id = $1 AND phase_id IS NOT DISTINCT FROM $2::int AND name = $3`

	var version int
	if err := r.q.GetContext(ctx, &version, query, projectID, phaseID, name); err != nil {
		return 0, fmt.Errorf("latest document version: %w", err)
	}
	return version, nil
}

func (r *repository) DeprecateDocumentsNamed(
	ctx context.Context,
	projectID string,
	phaseID *int,
	name string,
) error {
	query := `
		UPDATE documents SET status = 'deprecated'
		WHERE project_id = $1 AND phase_id IS NOT DISTINCT FROM $2::int
		  AND name = $3 AND status = 'active'`

	if _, err := r.q.ExecContext(ctx, query, projectID, phaseID, name); err != nil {
		return fmt.Errorf("deprecate documents: %w", err)
	}
	return nil
}

func (r *repository) DeprecateDocument(ctx context.Context, projectID, docID string) error {
	return r.execOne(ctx, "deprecate document", `
		UPDATE documents SET status = 'deprecated'
		WHERE id = $1 AND project_id = $2 AND status = 'active'`, docID, projectID)
}

func (r *repository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	query := `
		INSERT INTO documents (
			id, project_id, phase_id, name, url, path, category, uploaded_by,
			version, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.q.QueryRowxContext(ctx, query,
		row.ID,
		row.ProjectID,
		row.PhaseID,
		row.Name,
		row.URL,
		row.Path,
		row.Category,
		row.UploadedBy,
		row.Version,
		row.Status,
	).Scan(&row.CreatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("insert document: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *repository) TasksFor(ctx context.Context, ids []string) ([]TaskRow, error) {
	var rows []TaskRow
	err := r.selectFor(ctx, &rows, "list tasks", `
		SELECT id, project_id, phase_id, title, description, status, assignee_id,
		       created_by, due_date, created_at, updated_at
		FROM tasks
		WHERE project_id = ANY($1::uuid[])
		ORDER BY created_at`, ids)
	return rows, err
}

func (r *repository) InsertTask(ctx context.Context, row *TaskRow) error {
	query := `
		INSERT INTO tasks (
			id, project_id, phase_id, title, description, status, assignee_id,
			created_by, due_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.q.QueryRowxContext(ctx, query,
		row.ID,
		row.ProjectID,
		row.PhaseID,
		row.Title,
		row.Description,
		row.Status,
		row.AssigneeID,
		row.CreatedBy,
		row.DueDate,
	).Scan(&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("insert task: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *repository) UpdateTask(
	ctx context.Context,
	projectID, taskID string,
	f TaskFields,
) (*TaskRow, error) {
	var (
		sets []string
		args = []any{taskID, projectID}
	)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Title != nil {
		set("title", *f.Title)
	}
	if f.Description != nil {
		set("description", *f.Description)
	}
	if f.Status != nil {
		set("status", string(*f.Status))
	}
	if f.AssigneeID != nil {
		set("assignee_id", optional(*f.AssigneeID))
	}
	if f.DueDate != nil {
		set("due_date", *f.DueDate)
	}

	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND project_id = $2
		RETURNING id, project_id, phase_id, title, description, status,
		          assignee_id, created_by, due_date, created_at, updated_at`

	var row TaskRow
	err := r.q.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update task: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &row, nil
}

func (r *repository) MessagesFor(ctx context.Context, ids []string) ([]MessageRow, error) {
	var rows []MessageRow
	err := r.selectFor(ctx, &rows, "list chat messages", `
		SELECT id, project_id, author_id, channel, content, created_at
		FROM chat_messages
		WHERE project_id = ANY($1::uuid[])
		ORDER BY created_at`, ids)
	return rows, err
}

func (r *repository) InsertMessage(ctx context.Context, row *MessageRow) error {
	query := `
		INSERT INTO chat_messages (id, project_id, author_id, channel, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.q.QueryRowxContext(ctx, query,
		row.ID, row.ProjectID, row.AuthorID, row.Channel, row.Content,
	).Scan(&row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (r *repository) ActivityFor(ctx context.Context, ids []string) ([]ActivityRow, error) {
	var rows []ActivityRow
	err := r.selectFor(ctx, &rows, "list activity", `
		SELECT id, project_id, actor_id, action, created_at
		FROM activity_logs
		WHERE project_id = ANY($1::uuid[])
		ORDER BY created_at`, ids)
	return rows, err
}

func (r *repository) InsertActivity(ctx context.Context, row *ActivityRow) error {
	query := `
		INSERT INTO activity_logs (id, project_id, actor_id, action)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.q.QueryRowxContext(ctx, query,
		row.ID, row.ProjectID, row.ActorID, row.Action,
	).Scan(&row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *repository) selectFor(
	ctx context.Context,
	dest any,
	op, query string,
	ids []string,
) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.q.SelectContext(ctx, dest, query, ids); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("%s: %w", op, core.ErrInvalidInput)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
