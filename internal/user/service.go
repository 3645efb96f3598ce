// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planejarpatrimonio/backend/internal/core"
)

// ObjectStore is the slice of the blob store the user side needs.
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

const personalCategory = "personal"

// Service maps user rows into nested view models. Reads never fail
// outward: errors are logged and surface as empty or nil results.
type Service struct {
	repo   Repository
	store  ObjectStore
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

func NewService(
	repo Repository,
	store ObjectStore,
	bucket string,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bucket: bucket,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	s.logger.ErrorContext(ctx, msg, append(attrs, core.DBErrorAttrs(err)...)...)
}

func (s *Service) List(ctx context.Context, params ListParams) []User {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		s.logFailure(ctx, "list users failed", err)
		return []User{}
	}

	return s.hydrate(ctx, rows)
}

func (s *Service) Get(ctx context.Context, id string) *User {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "get user failed", err, "user_id", id)
		}
		return nil
	}

	return s.one(ctx, *row)
}

func (s *Service) GetByEmail(ctx context.Context, email string) *User {
	row, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "get user by email failed", err)
		}
		return nil
	}

	return s.one(ctx, *row)
}

// Mirror upserts the application profile of an identity subject. Unlike
// the reads it returns its error so callers can retry it.
func (s *Service) Mirror(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("mirror user: %w", core.ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("mirror user: role %q: %w", u.Role, core.ErrInvalidInput)
	}
	if u.ClientType != "" && !u.ClientType.Valid() {
		return fmt.Errorf("mirror user: client type %q: %w", u.ClientType, core.ErrInvalidInput)
	}

	u.Email = normalizeEmail(u.Email)
	if u.Name == "" {
		u.Name = displayNameFromEmail(u.Email)
	}

	row := fromUser(u)
	if err := s.repo.Upsert(ctx, &row); err != nil {
		s.logFailure(ctx, "mirror user failed", err, "user_id", u.ID)
		return err
	}

	u.CreatedAt = row.CreatedAt
	return nil
}

func (s *Service) Update(ctx context.Context, id string, u Update) *User {
	if u.Role != nil && !u.Role.Valid() {
		s.logger.WarnContext(ctx, "update user rejected", "user_id", id, "role", *u.Role)
		return nil
	}
	if u.ClientType != nil && *u.ClientType != "" && !u.ClientType.Valid() {
		s.logger.WarnContext(ctx, "update user rejected", "user_id", id, "client_type", *u.ClientType)
		return nil
	}

	row, err := s.repo.Update(ctx, id, u)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "update user failed", err, "user_id", id)
		}
		return nil
	}

	return s.one(ctx, *row)
}

// Delete removes the profile row; qualification and document rows go with
// it by cascade and their stored objects are removed best effort.
func (s *Service) Delete(ctx context.Context, id string) bool {
	docs, err := s.repo.DocumentsFor(ctx, []string{id})
	if err != nil {
		s.logFailure(ctx, "list user documents failed", err, "user_id", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "delete user failed", err, "user_id", id)
		}
		return false
	}

	for _, d := range docs {
		s.removeObject(ctx, d.Path)
	}

	return true
}

func (s *Service) UpdateQualification(ctx context.Context, id string, q Qualification) bool {
	row := fromQualification(id, q)
	if err := s.repo.UpsertQualification(ctx, &row); err != nil {
		s.logFailure(ctx, "update qualification failed", err, "user_id", id)
		return false
	}
	return true
}

func (s *Service) UploadDocument(ctx context.Context, userID string, f core.File) *Document {
	if f.Body == nil || f.Name == "" {
		s.logger.WarnContext(ctx, "upload user document rejected", "user_id", userID)
		return nil
	}

	path := core.ObjectPath(personalCategory, userID, 0, f.Name, s.now())

	url, err := s.store.Put(ctx, s.bucket, path, f.Body, f.Size, f.ContentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "upload user document failed",
			"user_id", userID,
			"path", path,
			"error", err,
		)
		return nil
	}

	row := DocumentRow{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   f.Name,
		URL:    url,
		Path:   path,
	}
	if err := s.repo.InsertDocument(ctx, &row); err != nil {
		s.logFailure(ctx, "record user document failed", err, "user_id", userID)
		s.removeObject(ctx, path)
		return nil
	}

	return &Document{
		ID:         row.ID,
		Name:       row.Name,
		URL:        row.URL,
		UploadedAt: row.UploadedAt,
	}
}

func (s *Service) RemoveDocument(ctx context.Context, userID, docID string) bool {
	row, err := s.repo.DeleteDocument(ctx, userID, docID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "remove user document failed", err, "user_id", userID)
		}
		return false
	}

	s.removeObject(ctx, row.Path)
	return true
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountByRole(ctx context.Context) (map[Role]int, error) {
	return s.repo.CountByRole(ctx)
}

// RoleOf resolves the application role of an authenticated subject.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	row, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return row.Role, nil
}

func (s *Service) removeObject(ctx context.Context, path string) {
	if err := s.store.Remove(ctx, s.bucket, path); err != nil {
		s.logger.WarnContext(ctx, "remove stored object failed",
			"bucket", s.bucket,
			"path", path,
			"error", err,
		)
	}
}

func (s *Service) one(ctx context.Context, row Row) *User {
	users := s.hydrate(ctx, []Row{row})
	return &users[0]
}

// hydrate loads the related sets for rows with one query each. A failed
// related read degrades to a user without that part.
func (s *Service) hydrate(ctx context.Context, rows []Row) []User {
	if len(rows) == 0 {
		return []User{}
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	quals, err := s.repo.QualificationsFor(ctx, ids)
	if err != nil {
		s.logFailure(ctx, "list qualifications failed", err)
	}

	docs, err := s.repo.DocumentsFor(ctx, ids)
	if err != nil {
		s.logFailure(ctx, "list user documents failed", err)
	}

	return assemble(rows, quals, docs)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
