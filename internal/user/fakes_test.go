// AngelaMos | 2026
// fakes_test.go

package user

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type memRepo struct {
	mu    sync.Mutex
	rows  map[string]Row
	quals map[string]QualificationRow
	docs  []DocumentRow
	fail  error
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:  map[string]Row{},
		quals: map[string]QualificationRow{},
	}
}

func (m *memRepo) List(_ context.Context, params ListParams) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}

	var out []Row
	for _, r := range m.rows {
		if params.Role != "" && r.Role != params.Role {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return &r, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.Email == email {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (m *memRepo) Upsert(_ context.Context, row *Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	for id, r := range m.rows {
		if id != row.ID && r.Email == row.Email {
			return fmt.Errorf("upsert user: %w", core.ErrDuplicateKey)
		}
	}

	now := time.Now()
	if existing, ok := m.rows[row.ID]; ok {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	m.rows[row.ID] = *row
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u Update) (*Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Role != nil {
		r.Role = string(*u.Role)
	}
	if u.ClientType != nil {
		r.ClientType = optional(string(*u.ClientType))
	}
	if u.AvatarURL != nil {
		r.AvatarURL = optional(*u.AvatarURL)
	}
	m.rows[id] = r
	return &r, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	delete(m.rows, id)
	delete(m.quals, id)

	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.UserID != id {
			kept = append(kept, d)
		}
	}
	m.docs = kept
	return nil
}

func (m *memRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memRepo) CountByRole(context.Context) (map[Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[Role]int{}
	for _, r := range m.rows {
		counts[Role(r.Role)]++
	}
	return counts, nil
}

func (m *memRepo) QualificationsFor(_ context.Context, ids []string) ([]QualificationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []QualificationRow
	for _, id := range ids {
		if q, ok := m.quals[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertQualification(_ context.Context, q *QualificationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[q.UserID]; !ok {
		return fmt.Errorf("upsert qualification: %w", core.ErrNotFound)
	}
	q.UpdatedAt = time.Now()
	m.quals[q.UserID] = *q
	return nil
}

func (m *memRepo) DocumentsFor(_ context.Context, ids []string) ([]DocumentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}

	var out []DocumentRow
	for _, d := range m.docs {
		if want[d.UserID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) InsertDocument(_ context.Context, d *DocumentRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[d.UserID]; !ok {
		return fmt.Errorf("insert user document: %w", core.ErrNotFound)
	}
	d.UploadedAt = time.Now()
	m.docs = append(m.docs, *d)
	return nil
}

func (m *memRepo) DeleteDocument(_ context.Context, userID, docID string) (*DocumentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.docs {
		if d.ID == docID && d.UserID == userID {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("delete user document: %w", core.ErrNotFound)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(
	_ context.Context,
	bucket, path string,
	r io.Reader,
	_ int64,
	_ string,
) (string, error) {
	if s.failPut {
		return "", errors.New("storage offline")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+path] = buf.Bytes()
	return "http://storage.local/" + bucket + "/" + path, nil
}

func (s *memStore) Remove(_ context.Context, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+path)
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func newTestService() (*Service, *memRepo, *memStore) {
	repo := newMemRepo()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, store, "user-documents", logger), repo, store
}
