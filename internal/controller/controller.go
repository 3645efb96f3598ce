// AngelaMos | 2026
// controller.go

package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/session"
	"github.com/planejarpatrimonio/backend/internal/user"
)

type State string

const (
	StateUninitialized    State = "UNINITIALIZED"
	StateLoading          State = "LOADING"
	StateAuthenticated    State = "AUTHENTICATED"
	StateAnonymous        State = "ANONYMOUS"
	StatePasswordRecovery State = "PASSWORD_RECOVERY"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("action not allowed for this role")
	ErrWrongState       = errors.New("action not allowed in the current state")
	ErrActionFailed     = errors.New("action failed")
)

// Auth is the session surface the controller follows.
type Auth interface {
	OnAuthStateChange(fn session.Listener) func()
	GetCurrentSession(ctx context.Context) *identity.Session
	GetCurrentUser(ctx context.Context) *user.User
	SignIn(ctx context.Context, email, password string) (*session.AuthResult, error)
	SignOut(ctx context.Context) bool
	UpdatePassword(ctx context.Context, newPassword string) bool
}

type Users interface {
	List(ctx context.Context, params user.ListParams) []user.User
}

type Projects interface {
	ListVisible(ctx context.Context, userID string, role user.Role) []project.Project
	GetVisible(ctx context.Context, id, userID string, role user.Role) *project.Project
	Create(ctx context.Context, in project.NewProject) *project.Project
	Update(ctx context.Context, id string, u project.Update) *project.Project
	UploadDocument(ctx context.Context, in project.DocumentUpload) (*project.Document, error)
	UploadContract(ctx context.Context, in project.DocumentUpload) (*project.Document, error)
	CreateTask(ctx context.Context, in project.NewTask) *project.Task
	UpdateTask(ctx context.Context, projectID, taskID string, f project.TaskFields) *project.Task
	PostMessage(ctx context.Context, in project.NewMessage) *project.ChatMessage
	LogActivity(ctx context.Context, projectID, actorID, action string) bool
}

// Snapshot is a copy of the controller's mirror at one instant.
type Snapshot struct {
	State       State
	CurrentUser *user.User
	Users       []user.User
	Projects    []project.Project
}

// Controller mirrors the signed-in user's view of the system and keeps it
// in step with auth state changes. Every reload is tagged with a
// generation; a reload overtaken by a newer event is discarded.
type Controller struct {
	auth     Auth
	users    Users
	projects Projects
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	current  *user.User
	userList []user.User
	projList []project.Project
	gen      uint64

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

func New(auth Auth, users Users, projects Projects, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		auth:     auth,
		users:    users,
		projects: projects,
		logger:   logger,
		state:    StateUninitialized,
	}
}

// Start subscribes to auth events and restores any persisted session.
// Background reloads run under ctx until Close.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state = StateLoading
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.unsubscribe = c.auth.OnAuthStateChange(c.handleEvent)

	if c.auth.GetCurrentSession(ctx) == nil {
		c.settleAnonymous(gen)
		return
	}

	c.load(c.ctx, gen)
}

// Close stops listening and waits for in-flight reloads.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Wait blocks until every reload started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		State:    c.state,
		Users:    append([]user.User(nil), c.userList...),
		Projects: append([]project.Project(nil), c.projList...),
	}
	if c.current != nil {
		u := *c.current
		snap.CurrentUser = &u
	}
	return snap
}

func (c *Controller) handleEvent(event session.Event, s *identity.Session) {
	switch event {
	case session.EventSignedIn:
		c.beginReload(true)

	case session.EventTokenRefreshed:
		if c.State() != StateAuthenticated {
			c.beginReload(true)
		}

	case session.EventUserUpdated:
		if c.State() == StateAuthenticated {
			c.beginReload(false)
		}

	case session.EventSignedOut:
		c.mu.Lock()
		c.gen++
		c.clearLocked(StateAnonymous)
		c.mu.Unlock()

	case session.EventPasswordRecovery:
		c.mu.Lock()
		c.gen++
		c.clearLocked(StatePasswordRecovery)
		c.mu.Unlock()

	default:
		c.logger.Debug("ignored auth event", "event", event, "has_session", s != nil)
	}
}

// beginReload starts a new generation and loads it in the background.
func (c *Controller) beginReload(showLoading bool) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if showLoading && c.state != StateAuthenticated {
		c.state = StateLoading
	}
	ctx := c.ctx
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.load(ctx, gen)
	}()
}

// load fetches the current user, every user, then the projects visible to
// the user's role, and publishes them if gen is still current.
func (c *Controller) load(ctx context.Context, gen uint64) {
	u := c.auth.GetCurrentUser(ctx)
	if u == nil {
		c.settleAnonymous(gen)
		return
	}

	users := c.users.List(ctx, user.ListParams{})
	projects := c.projects.ListVisible(ctx, u.ID, u.Role)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.DebugContext(ctx, "stale reload discarded", "generation", gen, "current", c.gen)
		return
	}

	c.state = StateAuthenticated
	c.current = u
	c.userList = users
	c.projList = projects

	c.logger.DebugContext(ctx, "controller loaded",
		"user_id", u.ID,
		"users", len(users),
		"projects", len(projects),
	)
}

func (c *Controller) settleAnonymous(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.gen {
		c.clearLocked(StateAnonymous)
	}
}

func (c *Controller) clearLocked(state State) {
	c.state = state
	c.current = nil
	c.userList = nil
	c.projList = nil
}

func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	_, err := c.auth.SignIn(ctx, email, password)
	return err
}

func (c *Controller) SignOut(ctx context.Context) bool {
	return c.auth.SignOut(ctx)
}

// CompletePasswordReset sets the new password chosen during recovery and
// signs out so the user logs in with it.
func (c *Controller) CompletePasswordReset(ctx context.Context, newPassword string) error {
	if c.State() != StatePasswordRecovery {
		return ErrWrongState
	}
	if !session.IsStrongPassword(newPassword) {
		return session.ErrInvalidInput
	}
	if !c.auth.UpdatePassword(ctx, newPassword) {
		return ErrActionFailed
	}

	c.auth.SignOut(ctx)

	c.mu.Lock()
	c.gen++
	c.clearLocked(StateAnonymous)
	c.mu.Unlock()

	return nil
}
