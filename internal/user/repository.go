// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type Repository interface {
	List(ctx context.Context, params ListParams) ([]Row, error)
	GetByID(ctx context.Context, id string) (*Row, error)
	GetByEmail(ctx context.Context, email string) (*Row, error)
	Upsert(ctx context.Context, row *Row) error
	Update(ctx context.Context, id string, u Update) (*Row, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context) (map[Role]int, error)

	QualificationsFor(ctx context.Context, ids []string) ([]QualificationRow, error)
	UpsertQualification(ctx context.Context, q *QualificationRow) error

	DocumentsFor(ctx context.Context, ids []string) ([]DocumentRow, error)
	InsertDocument(ctx context.Context, d *DocumentRow) error
	DeleteDocument(ctx context.Context, userID, docID string) (*DocumentRow, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, name, role, client_type, avatar_url, created_at, updated_at`

func (r *repository) List(ctx context.Context, params ListParams) ([]Row, error) {
	var (
		conditions []string
		args       []any
	)

	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	if params.Role != "" {
		args = append(args, params.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY name, email`

	var rows []Row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return rows, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row Row
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &row, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var row Row
	err := r.db.GetContext(ctx, &row, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &row, nil
}

// Upsert writes the mirrored profile keyed by the identity subject id.
func (r *repository) Upsert(ctx context.Context, row *Row) error {
	query := `
		INSERT INTO users (id, email, name, role, client_type, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    role = EXCLUDED.role,
		    client_type = EXCLUDED.client_type,
		    avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
		    updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		row.ID,
		row.Email,
		row.Name,
		row.Role,
		row.ClientType,
		row.AvatarURL,
	).Scan(&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("upsert user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (r *repository) Update(ctx context.Context, id string, u Update) (*Row, error) {
	var (
		sets []string
		args = []any{id}
	)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Name != nil {
		set("name", *u.Name)
	}
	if u.Role != nil {
		set("role", string(*u.Role))
	}
	if u.ClientType != nil {
		set("client_type", optional(string(*u.ClientType)))
	}
	if u.AvatarURL != nil {
		set("avatar_url", optional(*u.AvatarURL))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var row Row
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return &row, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *repository) CountByRole(ctx context.Context) (map[Role]int, error) {
	var rows []struct {
		Role  string `db:"role"`
		Count int    `db:"count"`
	}

	query := `SELECT role, COUNT(*) AS count FROM users GROUP BY role`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	counts := make(map[Role]int, len(rows))
	for _, row := range rows {
		counts[Role(row.Role)] = row.Count
	}

	return counts, nil
}

func (r *repository) QualificationsFor(
	ctx context.Context,
	ids []string,
) ([]QualificationRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT user_id, marital_status, property_regime, nationality, birth_date,
		       profession, cpf, rg, address, phone, spouse_name, updated_at
		FROM user_qualifications
		WHERE user_id = ANY($1::uuid[])`

	var rows []QualificationRow
	if err := r.db.SelectContext(ctx, &rows, query, ids); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}

	return rows, nil
}

func (r *repository) UpsertQualification(
	ctx context.Context,
	q *QualificationRow,
) error {
	query := `
		INSERT INTO user_qualifications (
			user_id, marital_status, property_regime, nationality, birth_date,
			profession, cpf, rg, address, phone, spouse_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE
		SET marital_status = EXCLUDED.marital_status,
		    property_regime = EXCLUDED.property_regime,
		    nationality = EXCLUDED.nationality,
		    birth_date = EXCLUDED.birth_date,
		    profession = EXCLUDED.profession,
		    cpf = EXCLUDED.cpf,
		    rg = EXCLUDED.rg,
		    address = EXCLUDED.address,
		    phone = EXCLUDED.phone,
		    spouse_name = EXCLUDED.spouse_name,
		    updated_at = NOW()
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		q.UserID,
		q.MaritalStatus,
		q.PropertyRegime,
		q.Nationality,
		q.BirthDate,
		q.Profession,
		q.CPF,
		q.RG,
		q.Address,
		q.Phone,
		q.SpouseName,
	).Scan(&q.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("upsert qualification: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert qualification: %w", err)
	}

	return nil
}

func (r *repository) DocumentsFor(
	ctx context.Context,
	ids []string,
) ([]DocumentRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, name, url, path, uploaded_at
		FROM user_documents
		WHERE user_id = ANY($1::uuid[])
		ORDER BY uploaded_at`

	var rows []DocumentRow
	if err := r.db.SelectContext(ctx, &rows, query, ids); err != nil {
		return nil, fmt.Errorf("list user documents: %w", err)
	}

	return rows, nil
}

func (r *repository) InsertDocument(ctx context.Context, d *DocumentRow) error {
	query := `
		INSERT INTO user_documents (id, user_id, name, url, path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING uploaded_at`

	err := r.db.QueryRowxContext(ctx, query, d.ID, d.UserID, d.Name, d.URL, d.Path).
		Scan(&d.UploadedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("insert user document: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert user document: %w", err)
	}

	return nil
}

func (r *repository) DeleteDocument(
	ctx context.Context,
	userID, docID string,
) (*DocumentRow, error) {
	query := `
		DELETE FROM user_documents
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, url, path, uploaded_at`

	var row DocumentRow
	err := r.db.GetContext(ctx, &row, query, docID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete user document: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete user document: %w", err)
	}

	return &row, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
