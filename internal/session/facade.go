// AngelaMos | 2026
// facade.go

package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/retry"
	"github.com/planejarpatrimonio/backend/internal/user"
)

// Provider is the identity platform the façade drives.
type Provider interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error)
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
	UpdatePassword(ctx context.Context, accessToken, password string) (*identity.User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	VerifyOTP(ctx context.Context, in identity.VerifyOTPInput) (*identity.Session, error)
}

// MirrorStore keeps the application-side copy of each identity.
type MirrorStore interface {
	Mirror(ctx context.Context, u *user.User) error
	Get(ctx context.Context, id string) *user.User
}

type Options struct {
	Provider   Provider
	Mirror     MirrorStore
	Cache      redis.Cmdable
	CacheKey   string
	CacheTTL   time.Duration
	RedirectTo string
	Retry      config.RetryConfig
	Logger     *slog.Logger
}

type SignUpParams struct {
	Email      string
	Password   string
	Name       string
	Role       user.Role
	ClientType user.ClientType
}

type AuthResult struct {
	User    *identity.User    `json:"user"`
	Session *identity.Session `json:"session"`
}

// Facade is the client-side entry point to authentication. No provider
// error crosses it: callers get nil, false, or one of this package's
// sentinels.
type Facade struct {
	provider   Provider
	mirror     MirrorStore
	cache      redis.Cmdable
	cacheKey   string
	cacheTTL   time.Duration
	redirectTo string
	logger     *slog.Logger

	providerPolicy retry.Policy
	mirrorPolicy   retry.Policy

	mu      sync.RWMutex
	current *identity.Session
	loaded  bool

	listeners listeners
	now       func() time.Time
}

func New(opts Options) *Facade {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Facade{
		provider:       opts.Provider,
		mirror:         opts.Mirror,
		cache:          opts.Cache,
		cacheKey:       opts.CacheKey,
		cacheTTL:       opts.CacheTTL,
		redirectTo:     opts.RedirectTo,
		logger:         logger,
		providerPolicy: retry.ProviderPolicy(opts.Retry, identity.IsTransient),
		mirrorPolicy:   retry.MirrorPolicy(opts.Retry),
		now:            time.Now,
	}
}

// OnAuthStateChange registers fn and returns its unsubscribe func. The
// returned func may be called any number of times.
func (f *Facade) OnAuthStateChange(fn Listener) func() {
	if fn == nil {
		return nil
	}
	return f.listeners.add(fn)
}

func (f *Facade) SignUp(ctx context.Context, p SignUpParams) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if p.Role == "" {
		p.Role = user.RoleClient
	}

	if !IsValidEmail(email) || !IsStrongPassword(p.Password) {
		return nil, &Error{Kind: ErrInvalidInput, Message: invalidInputMessage(email, p.Password)}
	}
	if !p.Role.Valid() || (p.ClientType != "" && !p.ClientType.Valid()) {
		return nil, &Error{Kind: ErrInvalidInput, Message: "Perfil de usuário inválido."}
	}

	name := strings.TrimSpace(p.Name)

	s, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.Session, error) {
		return f.provider.SignUp(ctx, identity.SignUpInput{
			Email:    email,
			Password: p.Password,
			Metadata: identity.Metadata{
				Name:       name,
				Role:       string(p.Role),
				ClientType: string(p.ClientType),
			},
		})
	})
	if err != nil {
		return nil, f.fail(ctx, "sign up", err)
	}

	f.setSession(ctx, s)

	u := &user.User{
		ID:         s.User.ID,
		Email:      s.User.Email,
		Name:       name,
		Role:       p.Role,
		ClientType: p.ClientType,
	}
	if err := f.writeMirror(ctx, u); err != nil {
		f.logger.ErrorContext(ctx, "mirror user failed after retries",
			"user_id", u.ID,
			"error", err,
		)
	}

	f.listeners.emit(EventSignedIn, s)

	return &AuthResult{User: &s.User, Session: s}, nil
}

func (f *Facade) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, &Error{Kind: ErrInvalidInput, Message: "Informe e-mail e senha."}
	}

	s, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.Session, error) {
		return f.provider.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		return nil, f.fail(ctx, "sign in", err)
	}

	f.setSession(ctx, s)
	f.listeners.emit(EventSignedIn, s)

	return &AuthResult{User: &s.User, Session: s}, nil
}

// SignOut always drops the local session; the result reports whether the
// provider acknowledged the revocation.
func (f *Facade) SignOut(ctx context.Context) bool {
	s := f.session()

	ok := true
	if s != nil {
		err := retry.Do(ctx, f.providerPolicy, func(ctx context.Context) error {
			return f.provider.SignOut(ctx, s.RefreshToken)
		})
		if err != nil {
			f.logger.ErrorContext(ctx, "sign out failed", "error", err)
			ok = false
		}
	}

	f.clearSession(ctx)
	f.listeners.emit(EventSignedOut, nil)

	return ok
}

// GetCurrentSession returns the live session, restoring it from the cache
// on first use and refreshing it once expired.
func (f *Facade) GetCurrentSession(ctx context.Context) *identity.Session {
	s := f.restore(ctx)
	if s == nil {
		f.logger.DebugContext(ctx, "no active session")
		return nil
	}

	if s.Expired(f.now()) {
		return f.RefreshSession(ctx)
	}

	return s
}

// GetCurrentUser resolves the mirrored profile of the signed-in identity,
// writing the mirror first when it is missing.
func (f *Facade) GetCurrentUser(ctx context.Context) *user.User {
	s := f.GetCurrentSession(ctx)
	if s == nil {
		return nil
	}

	idUser, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.User, error) {
		return f.provider.GetUser(ctx, s.AccessToken)
	})
	if err != nil {
		if identity.KindOf(err) == identity.KindSessionMissing {
			f.logger.DebugContext(ctx, "no active session")
			return nil
		}
		f.logger.ErrorContext(ctx, "get current user failed", "error", err)
		return nil
	}

	if u := f.mirror.Get(ctx, idUser.ID); u != nil {
		return u
	}

	role := user.Role(idUser.Metadata.Role)
	if !role.Valid() {
		role = user.RoleClient
	}

	healed := &user.User{
		ID:         idUser.ID,
		Email:      idUser.Email,
		Name:       idUser.Metadata.Name,
		Role:       role,
		ClientType: user.ClientType(idUser.Metadata.ClientType),
	}
	if err := f.writeMirror(ctx, healed); err != nil {
		f.logger.ErrorContext(ctx, "restore mirrored user failed",
			"user_id", idUser.ID,
			"error", err,
		)
		return nil
	}

	f.logger.InfoContext(ctx, "mirrored user restored", "user_id", idUser.ID)

	return f.mirror.Get(ctx, idUser.ID)
}

// RefreshSession rotates the refresh token. A definitive refusal ends the
// local session; a transient outage keeps it for a later attempt.
func (f *Facade) RefreshSession(ctx context.Context) *identity.Session {
	current := f.restore(ctx)
	if current == nil {
		f.logger.DebugContext(ctx, "no session to refresh")
		return nil
	}

	s, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.Session, error) {
		return f.provider.RefreshSession(ctx, current.RefreshToken)
	})
	if err != nil {
		if identity.IsTransient(err) {
			f.logger.WarnContext(ctx, "refresh session failed", "error", err)
			return nil
		}

		f.logger.InfoContext(ctx, "refresh session refused, signing out",
			"kind", identity.KindOf(err).String(),
		)
		f.clearSession(ctx)
		f.listeners.emit(EventSignedOut, nil)
		return nil
	}

	f.setSession(ctx, s)
	f.listeners.emit(EventTokenRefreshed, s)

	return s
}

// ResetPasswordForEmail starts the recovery mail flow pointing back at the
// application's reset page.
func (f *Facade) ResetPasswordForEmail(ctx context.Context, email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if !IsValidEmail(email) {
		f.logger.WarnContext(ctx, "reset password rejected: invalid email")
		return false
	}

	err := retry.Do(ctx, f.providerPolicy, func(ctx context.Context) error {
		return f.provider.ResetPasswordForEmail(ctx, email, f.redirectTo)
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "reset password failed", "error", err)
		return false
	}

	return true
}

func (f *Facade) UpdatePassword(ctx context.Context, newPassword string) bool {
	if !IsStrongPassword(newPassword) {
		f.logger.WarnContext(ctx, "update password rejected: password too short")
		return false
	}

	s := f.GetCurrentSession(ctx)
	if s == nil {
		f.logger.WarnContext(ctx, "update password requires an active session")
		return false
	}

	_, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.User, error) {
		return f.provider.UpdatePassword(ctx, s.AccessToken, newPassword)
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "update password failed", "error", err)
		return false
	}

	f.listeners.emit(EventUserUpdated, s)

	return true
}

// VerifyOTP exchanges an emailed code for a session. A recovery code
// signals PASSWORD_RECOVERY instead of SIGNED_IN.
func (f *Facade) VerifyOTP(
	ctx context.Context,
	email, code string,
	purpose identity.OTPType,
) *identity.Session {
	email = strings.ToLower(strings.TrimSpace(email))
	if !IsValidEmail(email) || strings.TrimSpace(code) == "" || !purpose.Valid() {
		f.logger.WarnContext(ctx, "verify otp rejected: invalid input")
		return nil
	}

	s, err := retry.Value(ctx, f.providerPolicy, func(ctx context.Context) (*identity.Session, error) {
		return f.provider.VerifyOTP(ctx, identity.VerifyOTPInput{
			Email: email,
			Token: strings.TrimSpace(code),
			Type:  purpose,
		})
	})
	if err != nil {
		if identity.KindOf(err) == identity.KindInvalidOTP {
			f.logger.InfoContext(ctx, "verify otp refused")
		} else {
			f.logger.ErrorContext(ctx, "verify otp failed", "error", err)
		}
		return nil
	}

	f.setSession(ctx, s)

	event := EventSignedIn
	if purpose == identity.OTPRecovery {
		event = EventPasswordRecovery
	}
	f.listeners.emit(event, s)

	return s
}

func (f *Facade) writeMirror(ctx context.Context, u *user.User) error {
	return retry.Do(ctx, f.mirrorPolicy, func(ctx context.Context) error {
		return f.mirror.Mirror(ctx, u)
	})
}

// fail maps a provider error onto the façade's sentinels and logs it.
func (f *Facade) fail(ctx context.Context, op string, err error) error {
	switch identity.KindOf(err) {
	case identity.KindInvalidCredentials:
		f.logger.InfoContext(ctx, op+" refused: invalid credentials")
		return ErrInvalidCredentials
	case identity.KindValidation, identity.KindConflict, identity.KindInvalidOTP:
		f.logger.InfoContext(ctx, op+" rejected", "error", err)
		return &Error{Kind: ErrRejected, Message: ErrorMessage(err)}
	default:
		f.logger.ErrorContext(ctx, op+" failed", "error", err)
		return &Error{
			Kind:    ErrUnavailable,
			Message: "Serviço de autenticação indisponível. Tente novamente em instantes.",
		}
	}
}

func invalidInputMessage(email, password string) string {
	if !IsValidEmail(email) {
		return "Informe um e-mail válido."
	}
	if !IsStrongPassword(password) {
		return "A senha deve ter pelo menos 6 caracteres."
	}
	return "Dados inválidos."
}
