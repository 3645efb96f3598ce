// AngelaMos | 2026
// fakes_test.go

package controller

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/session"
	"github.com/planejarpatrimonio/backend/internal/user"
)

type fakeAuth struct {
	mu        sync.Mutex
	listeners []session.Listener
	sess      *identity.Session
	user      *user.User
	passwords []string
	signOuts  int
}

func (a *fakeAuth) OnAuthStateChange(fn session.Listener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
	return func() {}
}

func (a *fakeAuth) emit(event session.Event, s *identity.Session) {
	a.mu.Lock()
	fns := append([]session.Listener(nil), a.listeners...)
	a.mu.Unlock()

	for _, fn := range fns {
		fn(event, s)
	}
}

func (a *fakeAuth) GetCurrentSession(context.Context) *identity.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

func (a *fakeAuth) GetCurrentUser(context.Context) *user.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil || a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) (*session.AuthResult, error) {
	s := &identity.Session{AccessToken: "access|" + email}

	a.mu.Lock()
	a.sess = s
	a.mu.Unlock()

	a.emit(session.EventSignedIn, s)
	return &session.AuthResult{Session: s}, nil
}

func (a *fakeAuth) SignOut(context.Context) bool {
	a.mu.Lock()
	a.sess = nil
	a.signOuts++
	a.mu.Unlock()

	a.emit(session.EventSignedOut, nil)
	return true
}

func (a *fakeAuth) UpdatePassword(_ context.Context, pw string) bool {
	a.mu.Lock()
	if a.sess == nil {
		a.mu.Unlock()
		return false
	}
	a.passwords = append(a.passwords, pw)
	s := a.sess
	a.mu.Unlock()

	a.emit(session.EventUserUpdated, s)
	return true
}

type fakeUsers struct {
	users []user.User
}

func (f *fakeUsers) List(context.Context, user.ListParams) []user.User {
	return append([]user.User(nil), f.users...)
}

type fakeProjects struct {
	mu       sync.Mutex
	projects []project.Project
	activity []string
	nextID   int

	// block, when set, holds ListVisible until it is closed.
	block chan struct{}

	// afterActivity, when set, runs once an activity entry is recorded.
	afterActivity func()
}

func (f *fakeProjects) ListVisible(_ context.Context, userID string, role user.Role) []project.Project {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []project.Project
	for _, p := range f.projects {
		if role == user.RoleClient && !p.HasClient(userID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *fakeProjects) GetVisible(_ context.Context, id, userID string, role user.Role) *project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.projects {
		if p.ID != id {
			continue
		}
		if role == user.RoleClient && !p.HasClient(userID) {
			return nil
		}
		cp := p
		return &cp
	}
	return nil
}

func (f *fakeProjects) Create(_ context.Context, in project.NewProject) *project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	p := project.Project{
		ID:           "p" + strconv.Itoa(f.nextID),
		Name:         in.Name,
		ConsultantID: in.ConsultantID,
		ClientIDs:    in.ClientIDs,
	}
	f.projects = append(f.projects, p)
	return &p
}

func (f *fakeProjects) Update(_ context.Context, id string, u project.Update) *project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.projects {
		if f.projects[i].ID == id {
			if u.Name != nil {
				f.projects[i].Name = *u.Name
			}
			p := f.projects[i]
			return &p
		}
	}
	return nil
}

func (f *fakeProjects) UploadDocument(_ context.Context, in project.DocumentUpload) (*project.Document, error) {
	return &project.Document{ID: "d1", Name: in.File.Name, Version: 1, Category: project.CategoryDocuments}, nil
}

func (f *fakeProjects) UploadContract(_ context.Context, in project.DocumentUpload) (*project.Document, error) {
	return &project.Document{ID: "c1", Name: in.File.Name, Version: 1, Category: project.CategoryContracts}, nil
}

func (f *fakeProjects) CreateTask(_ context.Context, in project.NewTask) *project.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := project.Task{
		ID:         "t" + strconv.Itoa(len(f.activity)+1),
		PhaseID:    in.PhaseID,
		Title:      in.Title,
		Status:     project.TaskPending,
		AssigneeID: in.AssigneeID,
		CreatedBy:  in.CreatedBy,
	}
	for i := range f.projects {
		if f.projects[i].ID == in.ProjectID {
			f.projects[i].Tasks = append(f.projects[i].Tasks, t)
		}
	}
	return &t
}

func (f *fakeProjects) UpdateTask(_ context.Context, projectID, taskID string, tf project.TaskFields) *project.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.projects {
		if f.projects[i].ID != projectID {
			continue
		}
		for j := range f.projects[i].Tasks {
			t := &f.projects[i].Tasks[j]
			if t.ID == taskID {
				if tf.Status != nil {
					t.Status = *tf.Status
				}
				cp := *t
				return &cp
			}
		}
	}
	return nil
}

func (f *fakeProjects) PostMessage(_ context.Context, in project.NewMessage) *project.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := project.ChatMessage{ID: "m1", AuthorID: in.AuthorID, Channel: in.Channel, Content: in.Content}
	for i := range f.projects {
		if f.projects[i].ID == in.ProjectID {
			f.projects[i].Messages = append(f.projects[i].Messages, m)
		}
	}
	return &m
}

func (f *fakeProjects) LogActivity(_ context.Context, _, _, action string) bool {
	f.mu.Lock()
	f.activity = append(f.activity, action)
	hook := f.afterActivity
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true
}

var (
	consultant = user.User{ID: "consultant-1", Email: "consultor@planejar.com.br", Role: user.RoleConsultant}
	client     = user.User{ID: "client-1", Email: "cliente@planejar.com.br", Role: user.RoleClient}
)

type testEnv struct {
	auth     *fakeAuth
	users    *fakeUsers
	projects *fakeProjects
	ctrl     *Controller
}

func newTestEnv() *testEnv {
	env := &testEnv{
		auth:  &fakeAuth{},
		users: &fakeUsers{users: []user.User{consultant, client}},
		projects: &fakeProjects{projects: []project.Project{
			{ID: "p-mine", Name: "Holding Silva", ClientIDs: []string{"client-1"}},
			{ID: "p-other", Name: "Holding Souza", ClientIDs: []string{"client-2"}},
		}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.ctrl = New(env.auth, env.users, env.projects, logger)
	return env
}

// signedInAs primes a persisted session for u before Start.
func (e *testEnv) signedInAs(u user.User) {
	e.auth.sess = &identity.Session{AccessToken: "access|" + u.Email}
	e.auth.user = &u
}
