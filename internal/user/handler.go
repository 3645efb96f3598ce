// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/middleware"
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
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListUsers)
		r.Get("/me", h.GetMe)
		r.Put("/me", h.MirrorMe)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}", h.UpdateUser)
		r.Put("/{userID}/qualification", h.UpdateQualification)
		r.Post("/{userID}/documents", h.UploadDocument)
		r.Delete("/{userID}/documents/{docID}", h.RemoveDocument)

		r.With(adminOnly).Delete("/{userID}", h.DeleteUser)
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

// canManage allows the subject themself and consultancy staff.
func canManage(r *http.Request, targetID string) bool {
	if middleware.GetUserID(r.Context()) == targetID {
		return true
	}
	return Role(middleware.GetUserRole(r.Context())).IsStaff()
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
	}

	core.OK(w, h.service.List(r.Context(), params))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u := h.service.Get(r.Context(), middleware.GetUserID(r.Context()))
	if u == nil {
		core.NotFound(w, "user")
		return
	}

	core.OK(w, u)
}

// MirrorMe creates or refreshes the caller's profile. A new profile is
// always a client; only an administrator may change a stored role.
func (h *Handler) MirrorMe(w http.ResponseWriter, r *http.Request) {
	var req MirrorRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	claims := middleware.GetClaims(ctx)
	if claims == nil {
		core.Unauthorized(w, "authentication required")
		return
	}

	role, clientType := RoleClient, ClientType(req.ClientType)
	if existing := h.service.Get(ctx, userID); existing != nil {
		role = existing.Role
		switch {
		case !middleware.IsAdmin(ctx):
			clientType = existing.ClientType
		case req.Role != "":
			role = Role(req.Role)
		}
	}
	if role != RoleClient {
		clientType = ""
	}

	u := &User{
		ID:         userID,
		Email:      claims.Email,
		Name:       req.Name,
		Role:       role,
		ClientType: clientType,
		AvatarURL:  req.AvatarURL,
	}

	if err := h.service.Mirror(ctx, u); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, h.service.Get(ctx, userID))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u := h.service.Get(r.Context(), chi.URLParam(r, "userID"))
	if u == nil {
		core.NotFound(w, "user")
		return
	}

	core.OK(w, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")
	ctx := r.Context()

	isAdmin := middleware.IsAdmin(ctx)
	if !isAdmin && middleware.GetUserID(ctx) != targetID {
		core.Forbidden(w, "insufficient permissions")
		return
	}

	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	if !isAdmin && (req.Role != nil || req.ClientType != nil) {
		core.Forbidden(w, "only administrators may change roles")
		return
	}

	u := h.service.Update(ctx, targetID, req.ToUpdate())
	if u == nil {
		core.NotFound(w, "user")
		return
	}

	core.OK(w, u)
}

func (h *Handler) UpdateQualification(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")
	if !canManage(r, targetID) {
		core.Forbidden(w, "insufficient permissions")
		return
	}

	var req QualificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	if !h.service.UpdateQualification(r.Context(), targetID, req.ToQualification()) {
		core.UnprocessableEntity(w, "QUALIFICATION_NOT_SAVED", "qualification could not be saved")
		return
	}

	core.OK(w, h.service.Get(r.Context(), targetID))
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")
	if !canManage(r, targetID) {
		core.Forbidden(w, "insufficient permissions")
		return
	}

	file, closeFn, err := core.ReadUpload(w, r, "file", h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, core.ErrUploadTooLarge) {
			core.JSONError(w, core.NewAppError(err, "file too large", http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"))
			return
		}
		core.BadRequest(w, "a file field is required")
		return
	}
	defer closeFn()

	doc := h.service.UploadDocument(r.Context(), targetID, file)
	if doc == nil {
		core.UnprocessableEntity(w, "UPLOAD_FAILED", "document could not be stored")
		return
	}

	core.Created(w, doc)
}

func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")
	if !canManage(r, targetID) {
		core.Forbidden(w, "insufficient permissions")
		return
	}

	if !h.service.RemoveDocument(r.Context(), targetID, chi.URLParam(r, "docID")) {
		core.NotFound(w, "document")
		return
	}

	core.NoContent(w)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")

	if middleware.GetUserID(r.Context()) == targetID {
		core.Forbidden(w, "administrators cannot delete themselves")
		return
	}

	if !h.service.Delete(r.Context(), targetID) {
		core.NotFound(w, "user")
		return
	}

	core.NoContent(w)
}
