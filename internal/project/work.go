// AngelaMos | 2026
// work.go

package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planejarpatrimonio/backend/internal/core"
)

type NewTask struct {
	ProjectID   string
	PhaseID     int
	Title       string
	Description string
	AssigneeID  string
	CreatedBy   string
	DueDate     *time.Time
}

type NewMessage struct {
	ProjectID string
	AuthorID  string
	Channel   Channel
	Content   string
}

func (s *Service) CreateTask(ctx context.Context, in NewTask) *Task {
	title := strings.TrimSpace(in.Title)
	if in.ProjectID == "" || in.CreatedBy == "" || title == "" || !ValidPhase(in.PhaseID) {
		s.logger.WarnContext(ctx, "create task rejected", "project_id", in.ProjectID)
		return nil
	}

	row := TaskRow{
		ID:          uuid.New().String(),
		ProjectID:   in.ProjectID,
		PhaseID:     in.PhaseID,
		Title:       title,
		Description: in.Description,
		Status:      string(TaskPending),
		AssigneeID:  optional(in.AssigneeID),
		CreatedBy:   in.CreatedBy,
		DueDate:     in.DueDate,
	}

	if err := s.repo.InsertTask(ctx, &row); err != nil {
		s.logFailure(ctx, "create task failed", err, "project_id", in.ProjectID)
		return nil
	}

	t := toTask(row)
	return &t
}

func (s *Service) UpdateTask(ctx context.Context, projectID, taskID string, f TaskFields) *Task {
	if f.Status != nil && !f.Status.Valid() {
		s.logger.WarnContext(ctx, "update task rejected", "task_id", taskID, "status", *f.Status)
		return nil
	}
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		s.logger.WarnContext(ctx, "update task rejected", "task_id", taskID)
		return nil
	}

	row, err := s.repo.UpdateTask(ctx, projectID, taskID, f)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "update task failed", err, "task_id", taskID)
		}
		return nil
	}

	t := toTask(*row)
	return &t
}

func (s *Service) PostMessage(ctx context.Context, in NewMessage) *ChatMessage {
	content := strings.TrimSpace(in.Content)
	if in.ProjectID == "" || in.AuthorID == "" || content == "" || !in.Channel.Valid() {
		s.logger.WarnContext(ctx, "post message rejected", "project_id", in.ProjectID)
		return nil
	}

	row := MessageRow{
		ID:        uuid.New().String(),
		ProjectID: in.ProjectID,
		AuthorID:  in.AuthorID,
		Channel:   string(in.Channel),
		Content:   content,
	}

	if err := s.repo.InsertMessage(ctx, &row); err != nil {
		s.logFailure(ctx, "post message failed", err, "project_id", in.ProjectID)
		return nil
	}

	m := toMessage(row)
	return &m
}

// LogActivity appends one audit line to the project.
func (s *Service) LogActivity(ctx context.Context, projectID, actorID, action string) bool {
	row := ActivityRow{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		ActorID:   actorID,
		Action:    action,
	}

	if err := s.repo.InsertActivity(ctx, &row); err != nil {
		s.logFailure(ctx, "log activity failed", err, "project_id", projectID)
		return false
	}
	return true
}
