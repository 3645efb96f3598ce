// AngelaMos | 2026
// handler.go

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/middleware"
)

type Handler struct {
	service         *Service
	validator       *validator.Validate
	defaultRedirect string
}

func NewHandler(service *Service, defaultRedirect string) *Handler {
	return &Handler{
		service:         service,
		validator:       validator.New(validator.WithRequiredStructEnabled()),
		defaultRedirect: defaultRedirect,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(optionalAuth).Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
		r.Post("/refresh", h.Refresh)
		r.Post("/recover", h.Recover)
		r.Post("/otp", h.SendOTP)
		r.Post("/verify", h.Verify)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/signout", h.SignOut)
			r.Get("/user", h.GetUser)
			r.Put("/user", h.UpdateUser)
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

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	role := req.Role
	if role == "" {
		role = "client"
	}
	// Open signup creates clients; staff accounts come from an administrator.
	if role != "client" && !middleware.IsAdmin(r.Context()) {
		core.Forbidden(w, "only administrators may register staff accounts")
		return
	}

	session, err := h.service.SignUp(clientContext(r), SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Metadata: Metadata{
			Name:       req.Name,
			Role:       role,
			ClientType: req.ClientType,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, session)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.SignInWithPassword(clientContext(r), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, session)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.RefreshSession(clientContext(r), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, session)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req SignOutRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.SignOut(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !h.decode(w, r, &req) {
		return
	}

	redirect := req.RedirectTo
	if redirect == "" {
		redirect = h.defaultRedirect
	}

	if err := h.service.ResetPasswordForEmail(r.Context(), req.Email, redirect); err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, map[string]bool{"sent": true})
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !h.decode(w, r, &req) {
		return
	}

	redirect := req.RedirectTo
	if redirect == "" {
		redirect = h.defaultRedirect
	}

	if err := h.service.SignInWithOTP(r.Context(), req.Email, redirect); err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, map[string]bool{"sent": true})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.VerifyOTP(clientContext(r), VerifyOTPInput{
		Email: req.Email,
		Token: req.Token,
		Type:  req.Type,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, session)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), middleware.ExtractToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	token := middleware.ExtractToken(r)

	var (
		user *User
		err  error
	)

	if req.Data != nil {
		user, err = h.service.UpdateMetadata(r.Context(), token, *req.Data)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if req.Password != nil {
		user, err = h.service.UpdatePassword(r.Context(), token, *req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if user == nil {
		user, err = h.service.GetUser(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	core.OK(w, user)
}

// StatusFor maps an error kind onto the HTTP status the provider answers
// with.
func StatusFor(kind Kind) int {
	switch kind {
	case KindInvalidCredentials:
		return http.StatusBadRequest
	case KindValidation, KindConflict:
		return http.StatusUnprocessableEntity
	case KindSessionMissing:
		return http.StatusUnauthorized
	case KindInvalidOTP:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	status := StatusFor(kind)

	var ie *Error
	if !errors.As(err, &ie) || ie.Code == "unexpected_failure" {
		if status == http.StatusServiceUnavailable {
			core.ServiceUnavailable(w, "identity provider unavailable")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.JSONError(w, core.NewAppError(err, ie.Message, status, ie.Code))
}

func clientContext(r *http.Request) context.Context {
	return WithClient(r.Context(), r.UserAgent(), extractIPAddress(r))
}

func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
