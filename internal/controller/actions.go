// AngelaMos | 2026
// actions.go

package controller

import (
	"context"
	"fmt"

	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/user"
)

// actingUser is the signed-in user an action runs as, together with the
// generation the action started in.
type actingUser struct {
	*user.User
	gen uint64
}

func (c *Controller) actor() (actingUser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != StateAuthenticated || c.current == nil {
		return actingUser{}, ErrNotAuthenticated
	}
	u := *c.current
	return actingUser{User: &u, gen: c.gen}, nil
}

func (c *Controller) requireStaff() (actingUser, error) {
	a, err := c.actor()
	if err != nil {
		return actingUser{}, err
	}
	if !a.Role.IsStaff() {
		return actingUser{}, ErrForbidden
	}
	return a, nil
}

// refresh re-reads one project under the actor's visibility and swaps it
// into the mirror. Nothing is written once the generation the action
// started in has been overtaken, e.g. by a sign-out.
func (c *Controller) refresh(ctx context.Context, u actingUser, projectID string) *project.Project {
	p := c.projects.GetVisible(ctx, projectID, u.ID, u.Role)

	c.mu.Lock()
	defer c.mu.Unlock()

	if u.gen != c.gen || c.state != StateAuthenticated {
		c.logger.DebugContext(ctx, "stale action refresh discarded",
			"project_id", projectID,
			"generation", u.gen,
			"current", c.gen,
		)
		return p
	}

	for i := range c.projList {
		if c.projList[i].ID != projectID {
			continue
		}
		if p == nil {
			c.projList = append(c.projList[:i:i], c.projList[i+1:]...)
		} else {
			c.projList[i] = *p
		}
		return p
	}

	if p != nil {
		c.projList = append([]project.Project{*p}, c.projList...)
	}
	return p
}

func (c *Controller) CreateProject(ctx context.Context, in project.NewProject) (*project.Project, error) {
	u, err := c.requireStaff()
	if err != nil {
		return nil, err
	}

	p := c.projects.Create(ctx, in)
	if p == nil {
		return nil, ErrActionFailed
	}

	c.projects.LogActivity(ctx, p.ID, u.ID, "Projeto criado")
	return c.refresh(ctx, u, p.ID), nil
}

func (c *Controller) UpdateProject(ctx context.Context, id string, upd project.Update) (*project.Project, error) {
	u, err := c.requireStaff()
	if err != nil {
		return nil, err
	}

	if c.projects.Update(ctx, id, upd) == nil {
		return nil, ErrActionFailed
	}

	c.projects.LogActivity(ctx, id, u.ID, "Projeto atualizado")
	return c.refresh(ctx, u, id), nil
}

// UploadDocument stores a file on a project the actor can see. Contracts
// go through the PDF-only path and are reserved to staff.
func (c *Controller) UploadDocument(ctx context.Context, in project.DocumentUpload) (*project.Document, error) {
	u, err := c.actor()
	if err != nil {
		return nil, err
	}
	if c.projects.GetVisible(ctx, in.ProjectID, u.ID, u.Role) == nil {
		return nil, ErrForbidden
	}

	in.UploadedBy = u.ID

	var doc *project.Document
	if in.Category == project.CategoryContracts {
		if !u.Role.IsStaff() {
			return nil, ErrForbidden
		}
		doc, err = c.projects.UploadContract(ctx, in)
	} else {
		doc, err = c.projects.UploadDocument(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	c.projects.LogActivity(ctx, in.ProjectID, u.ID,
		fmt.Sprintf("Documento enviado: %s (v%d)", doc.Name, doc.Version))
	c.refresh(ctx, u, in.ProjectID)

	return doc, nil
}

func (c *Controller) CreateTask(ctx context.Context, in project.NewTask) (*project.Task, error) {
	u, err := c.requireStaff()
	if err != nil {
		return nil, err
	}

	in.CreatedBy = u.ID

	t := c.projects.CreateTask(ctx, in)
	if t == nil {
		return nil, ErrActionFailed
	}

	c.projects.LogActivity(ctx, in.ProjectID, u.ID, "Tarefa criada: "+t.Title)
	c.refresh(ctx, u, in.ProjectID)

	return t, nil
}

// SetTaskStatus moves a task. Clients may only move their own tasks, and
// never to approved.
func (c *Controller) SetTaskStatus(
	ctx context.Context,
	projectID, taskID string,
	status project.TaskStatus,
) (*project.Task, error) {
	u, err := c.actor()
	if err != nil {
		return nil, err
	}

	if !u.Role.IsStaff() {
		p := c.projects.GetVisible(ctx, projectID, u.ID, u.Role)
		if p == nil || status == project.TaskApproved || !assigned(p, taskID, u.ID) {
			return nil, ErrForbidden
		}
	}

	t := c.projects.UpdateTask(ctx, projectID, taskID, project.TaskFields{Status: &status})
	if t == nil {
		return nil, ErrActionFailed
	}

	c.projects.LogActivity(ctx, projectID, u.ID,
		fmt.Sprintf("Tarefa %q marcada como %s", t.Title, t.Status))
	c.refresh(ctx, u, projectID)

	return t, nil
}

func assigned(p *project.Project, taskID, userID string) bool {
	for _, t := range p.Tasks {
		if t.ID == taskID {
			return t.AssigneeID == userID
		}
	}
	return false
}

func (c *Controller) PostMessage(
	ctx context.Context,
	projectID string,
	channel project.Channel,
	content string,
) (*project.ChatMessage, error) {
	u, err := c.actor()
	if err != nil {
		return nil, err
	}
	if channel == project.ChannelInternal && !u.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if c.projects.GetVisible(ctx, projectID, u.ID, u.Role) == nil {
		return nil, ErrForbidden
	}

	m := c.projects.PostMessage(ctx, project.NewMessage{
		ProjectID: projectID,
		AuthorID:  u.ID,
		Channel:   channel,
		Content:   content,
	})
	if m == nil {
		return nil, ErrActionFailed
	}

	c.refresh(ctx, u, projectID)
	return m, nil
}

func (c *Controller) LogActivity(ctx context.Context, projectID, action string) error {
	u, err := c.actor()
	if err != nil {
		return err
	}
	if !c.projects.LogActivity(ctx, projectID, u.ID, action) {
		return ErrActionFailed
	}
	c.refresh(ctx, u, projectID)
	return nil
}
