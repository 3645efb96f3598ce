// AngelaMos | 2026
// handler.go

package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/middleware"
	"github.com/planejarpatrimonio/backend/internal/user"
)

type Handler struct {
	service        *Service
	validator      *validator.Validate
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	staffOnly := middleware.RequireRole(
		string(user.RoleConsultant),
		string(user.RoleAuxiliary),
		string(user.RoleAdministrator),
	)

	r.Route("/projects", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.With(staffOnly).Post("/", h.Create)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.With(staffOnly).Patch("/", h.Update)
			r.With(adminOnly).Delete("/", h.Delete)

			r.Post("/documents", h.UploadDocument)
			r.With(staffOnly).Post("/contract", h.UploadContract)
			r.With(staffOnly).Delete("/documents/{docID}", h.DeprecateDocument)

			r.With(staffOnly).Post("/tasks", h.CreateTask)
			r.Patch("/tasks/{taskID}", h.UpdateTask)

			r.Post("/messages", h.PostMessage)
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func caller(r *http.Request) (string, user.Role) {
	ctx := r.Context()
	return middleware.GetUserID(ctx), user.Role(middleware.GetUserRole(ctx))
}

// visible loads the project under the caller's visibility rule and writes
// a 404 when it is out of reach.
func (h *Handler) visible(w http.ResponseWriter, r *http.Request) *Project {
	userID, role := caller(r)

	p := h.service.GetVisible(r.Context(), chi.URLParam(r, "projectID"), userID, role)
	if p == nil {
		core.NotFound(w, "project")
		return nil
	}
	return p
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, role := caller(r)
	core.OK(w, h.service.ListVisible(r.Context(), userID, role))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if p := h.visible(w, r); p != nil {
		core.OK(w, p)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := h.service.Create(r.Context(), req.ToNewProject())
	if p == nil {
		core.UnprocessableEntity(w, "PROJECT_NOT_CREATED", "project could not be created")
		return
	}

	actorID, _ := caller(r)
	h.service.LogActivity(r.Context(), p.ID, actorID, "Projeto criado")

	core.Created(w, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	projectID := chi.URLParam(r, "projectID")

	p := h.service.Update(r.Context(), projectID, req.ToUpdate())
	if p == nil {
		core.NotFound(w, "project")
		return
	}

	actorID, _ := caller(r)
	h.service.LogActivity(r.Context(), projectID, actorID, "Projeto atualizado")

	core.OK(w, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.service.Delete(r.Context(), chi.URLParam(r, "projectID")) {
		core.NotFound(w, "project")
		return
	}
	core.NoContent(w)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (DocumentUpload, func(), bool) {
	file, closeFn, err := core.ReadUpload(w, r, "file", h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, core.ErrUploadTooLarge) {
			core.JSONError(w, core.NewAppError(err, "file too large", http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"))
			return DocumentUpload{}, nil, false
		}
		core.BadRequest(w, "a file field is required")
		return DocumentUpload{}, nil, false
	}

	phaseID := 0
	if raw := r.FormValue("phase_id"); raw != "" {
		phaseID, err = strconv.Atoi(raw)
		if err != nil || !ValidPhase(phaseID) {
			closeFn()
			core.BadRequest(w, "phase_id must be between 1 and 10")
			return DocumentUpload{}, nil, false
		}
	}

	actorID, _ := caller(r)

	return DocumentUpload{
		ProjectID:  chi.URLParam(r, "projectID"),
		PhaseID:    phaseID,
		Category:   r.FormValue("category"),
		UploadedBy: actorID,
		File:       file,
	}, closeFn, true
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.visible(w, r) == nil {
		return
	}

	in, closeFn, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFn()

	if in.Category == CategoryContracts {
		core.BadRequest(w, "contracts are uploaded through the contract endpoint")
		return
	}

	doc, err := h.service.UploadDocument(r.Context(), in)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	h.service.LogActivity(r.Context(), in.ProjectID, in.UploadedBy,
		fmt.Sprintf("Documento enviado: %s (v%d)", doc.Name, doc.Version))

	core.Created(w, doc)
}

func (h *Handler) UploadContract(w http.ResponseWriter, r *http.Request) {
	if h.visible(w, r) == nil {
		return
	}

	in, closeFn, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFn()

	doc, err := h.service.UploadContract(r.Context(), in)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	h.service.LogActivity(r.Context(), in.ProjectID, in.UploadedBy,
		fmt.Sprintf("Contrato enviado: %s", doc.Name))

	core.Created(w, doc)
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotPDF):
		core.UnprocessableEntity(w, "NOT_PDF", "contracts must be PDF files")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid upload")
	default:
		core.ServiceUnavailable(w, "document storage unavailable")
	}
}

func (h *Handler) DeprecateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if !h.service.DeprecateDocument(r.Context(), projectID, chi.URLParam(r, "docID")) {
		core.NotFound(w, "document")
		return
	}

	actorID, _ := caller(r)
	h.service.LogActivity(r.Context(), projectID, actorID, "Documento marcado como obsoleto")

	core.NoContent(w)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	actorID, _ := caller(r)
	projectID := chi.URLParam(r, "projectID")

	t := h.service.CreateTask(r.Context(), NewTask{
		ProjectID:   projectID,
		PhaseID:     req.PhaseID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   actorID,
		DueDate:     req.DueDate,
	})
	if t == nil {
		core.UnprocessableEntity(w, "TASK_NOT_CREATED", "task could not be created")
		return
	}

	h.service.LogActivity(r.Context(), projectID, actorID, "Tarefa criada: "+t.Title)

	core.Created(w, t)
}

// UpdateTask lets staff edit any task. A client may only move a task
// assigned to them between pending and completed.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p := h.visible(w, r)
	if p == nil {
		return
	}

	var req UpdateTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	actorID, role := caller(r)

	if !role.IsStaff() {
		if !req.onlyStatus() || req.Status == nil || TaskStatus(*req.Status) == TaskApproved {
			core.Forbidden(w, "insufficient permissions")
			return
		}
		if !assignedTo(p, taskID, actorID) {
			core.Forbidden(w, "insufficient permissions")
			return
		}
	}

	t := h.service.UpdateTask(r.Context(), p.ID, taskID, req.ToFields())
	if t == nil {
		core.NotFound(w, "task")
		return
	}

	if req.Status != nil {
		h.service.LogActivity(r.Context(), p.ID, actorID,
			fmt.Sprintf("Tarefa %q marcada como %s", t.Title, t.Status))
	}

	core.OK(w, t)
}

func assignedTo(p *Project, taskID, userID string) bool {
	for _, t := range p.Tasks {
		if t.ID == taskID {
			return t.AssigneeID == userID
		}
	}
	return false
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	p := h.visible(w, r)
	if p == nil {
		return
	}

	var req PostMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	actorID, role := caller(r)
	channel := Channel(req.Channel)

	if channel == ChannelInternal && !role.IsStaff() {
		core.Forbidden(w, "clients cannot post on the internal channel")
		return
	}

	m := h.service.PostMessage(r.Context(), NewMessage{
		ProjectID: p.ID,
		AuthorID:  actorID,
		Channel:   channel,
		Content:   req.Content,
	})
	if m == nil {
		core.UnprocessableEntity(w, "MESSAGE_NOT_SENT", "message could not be sent")
		return
	}

	core.Created(w, m)
}
