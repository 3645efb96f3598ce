// AngelaMos | 2026
// fakes_test.go

package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type memRepo struct {
	mu        sync.Mutex
	rows      map[string]Row
	clients   []ClientRow
	phases    map[string]PhaseRow
	diag      map[string]DiagnosticRow
	company   map[string]CompanyFormationRow
	assets    map[string]AssetIntegrationRow
	documents []DocumentRow
	tasks     []TaskRow
	messages  []MessageRow
	activity  []ActivityRow

	fieldUpdates int
	phaseWrites  []int
	fail         error
	failInsert   bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:    map[string]Row{},
		phases:  map[string]PhaseRow{},
		diag:    map[string]DiagnosticRow{},
		company: map[string]CompanyFormationRow{},
		assets:  map[string]AssetIntegrationRow{},
	}
}

func phaseKey(projectID string, phaseID int) string {
	return fmt.Sprintf("%s/%d", projectID, phaseID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func samePhase(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memRepo) WithTx(_ context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *memRepo) List(_ context.Context) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]Row, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) ListByClient(_ context.Context, clientID string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	var out []Row
	for _, c := range m.clients {
		if c.ClientID == clientID {
			if r, ok := m.rows[c.ProjectID]; ok {
				out = append(out, r)
			}
		}
	}
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
		return nil, fmt.Errorf("get project: %w", core.ErrNotFound)
	}
	return &r, nil
}

func (m *memRepo) Insert(_ context.Context, row *Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsert {
		return errors.New("insert refused")
	}
	now := time.Now()
	row.CreatedAt, row.UpdatedAt = now, now
	m.rows[row.ID] = *row
	return nil
}

func (m *memRepo) UpdateFields(_ context.Context, id string, f Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("update project: %w", core.ErrNotFound)
	}
	m.fieldUpdates++

	if f.Name != nil {
		r.Name = *f.Name
	}
	if f.Status != nil {
		r.Status = string(*f.Status)
	}
	if f.CurrentPhase != nil {
		r.CurrentPhase = *f.CurrentPhase
	}
	if f.ConsultantID != nil {
		r.ConsultantID = *f.ConsultantID
	}
	if f.AuxiliaryID != nil {
		r.AuxiliaryID = optional(*f.AuxiliaryID)
	}
	r.UpdatedAt = time.Now()
	m.rows[id] = r
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("delete project: %w", core.ErrNotFound)
	}
	delete(m.rows, id)

	var docs []DocumentRow
	for _, d := range m.documents {
		if d.ProjectID != id {
			docs = append(docs, d)
		}
	}
	m.documents = docs
	return nil
}

func (m *memRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memRepo) CountByConsultant(_ context.Context, consultantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.rows {
		if r.ConsultantID == consultantID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ClientsFor(_ context.Context, ids []string) ([]ClientRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ClientRow
	for _, c := range m.clients {
		if contains(ids, c.ProjectID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) ReplaceClients(_ context.Context, projectID string, clientIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []ClientRow
	for _, c := range m.clients {
		if c.ProjectID != projectID {
			kept = append(kept, c)
		}
	}
	for _, id := range clientIDs {
		kept = append(kept, ClientRow{ProjectID: projectID, ClientID: id})
	}
	m.clients = kept
	return nil
}

func (m *memRepo) PhasesFor(_ context.Context, ids []string) ([]PhaseRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PhaseRow
	for _, p := range m.phases {
		if contains(ids, p.ProjectID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertPhase(_ context.Context, row PhaseRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phaseWrites = append(m.phaseWrites, row.PhaseID)
	m.phases[phaseKey(row.ProjectID, row.PhaseID)] = row
	return nil
}

func (m *memRepo) DiagnosticsFor(_ context.Context, ids []string) ([]DiagnosticRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []DiagnosticRow
	for _, d := range m.diag {
		if contains(ids, d.ProjectID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertDiagnostic(_ context.Context, row DiagnosticRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diag[row.ProjectID] = row
	return nil
}

func (m *memRepo) CompanyFormationsFor(_ context.Context, ids []string) ([]CompanyFormationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CompanyFormationRow
	for _, c := range m.company {
		if contains(ids, c.ProjectID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertCompanyFormation(_ context.Context, row CompanyFormationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.company[row.ProjectID] = row
	return nil
}

func (m *memRepo) AssetIntegrationsFor(_ context.Context, ids []string) ([]AssetIntegrationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []AssetIntegrationRow
	for _, a := range m.assets {
		if contains(ids, a.ProjectID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertAssetIntegration(_ context.Context, row AssetIntegrationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[row.ProjectID] = row
	return nil
}

func (m *memRepo) DocumentsFor(_ context.Context, ids []string) ([]DocumentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []DocumentRow
	for _, d := range m.documents {
		if contains(ids, d.ProjectID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) LatestDocumentVersion(
	_ context.Context,
	projectID string,
	phaseID *int,
	name string,
) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := 0
	for _, d := range m.documents {
		if d.ProjectID == projectID && d.Name == name && samePhase(d.PhaseID, phaseID) && d.Version > latest {
			latest = d.Version
		}
	}
	return latest, nil
}

func (m *memRepo) DeprecateDocumentsNamed(
	_ context.Context,
	projectID string,
	phaseID *int,
	name string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.documents {
		if d.ProjectID == projectID && d.Name == name && samePhase(d.PhaseID, phaseID) {
			m.documents[i].Status = string(DocumentDeprecated)
		}
	}
	return nil
}

func (m *memRepo) DeprecateDocument(_ context.Context, projectID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.documents {
		if d.ProjectID == projectID && d.ID == docID && d.Status == string(DocumentActive) {
			m.documents[i].Status = string(DocumentDeprecated)
			return nil
		}
	}
	return fmt.Errorf("deprecate document: %w", core.ErrNotFound)
}

func (m *memRepo) InsertDocument(_ context.Context, row *DocumentRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsert {
		return errors.New("insert refused")
	}
	row.CreatedAt = time.Now()
	m.documents = append(m.documents, *row)
	return nil
}

func (m *memRepo) TasksFor(_ context.Context, ids []string) ([]TaskRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []TaskRow
	for _, t := range m.tasks {
		if contains(ids, t.ProjectID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRepo) InsertTask(_ context.Context, row *TaskRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	m.tasks = append(m.tasks, *row)
	return nil
}

func (m *memRepo) UpdateTask(_ context.Context, projectID, taskID string, f TaskFields) (*TaskRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tasks {
		if t.ProjectID != projectID || t.ID != taskID {
			continue
		}
		if f.Title != nil {
			t.Title = *f.Title
		}
		if f.Description != nil {
			t.Description = *f.Description
		}
		if f.Status != nil {
			t.Status = string(*f.Status)
		}
		if f.AssigneeID != nil {
			t.AssigneeID = optional(*f.AssigneeID)
		}
		if f.DueDate != nil {
			t.DueDate = f.DueDate
		}
		m.tasks[i] = t
		return &t, nil
	}
	return nil, fmt.Errorf("update task: %w", core.ErrNotFound)
}

func (m *memRepo) MessagesFor(_ context.Context, ids []string) ([]MessageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MessageRow
	for _, msg := range m.messages {
		if contains(ids, msg.ProjectID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memRepo) InsertMessage(_ context.Context, row *MessageRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row.CreatedAt = time.Now()
	m.messages = append(m.messages, *row)
	return nil
}

func (m *memRepo) ActivityFor(_ context.Context, ids []string) ([]ActivityRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ActivityRow
	for _, a := range m.activity {
		if contains(ids, a.ProjectID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) InsertActivity(_ context.Context, row *ActivityRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row.CreatedAt = time.Now()
	m.activity = append(m.activity, *row)
	return nil
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

func (s *memStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var testBuckets = Buckets{Documents: "documents", Contracts: "contracts"}

func newTestService() (*Service, *memRepo, *memStore) {
	repo := newMemRepo()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(repo, store, testBuckets, logger)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, repo, store
}
