// AngelaMos | 2026
// service.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/middleware"
)

type SignUpInput struct {
	Email    string
	Password string
	Metadata Metadata
}

type VerifyOTPInput struct {
	Email string
	Token string
	Type  OTPType
}

type clientKey struct{}

type clientInfo struct {
	userAgent string
	ipAddress string
}

// WithClient tags ctx with the caller's user agent and address; they are
// recorded on the refresh tokens issued under it.
func WithClient(ctx context.Context, userAgent, ipAddress string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientInfo{
		userAgent: userAgent,
		ipAddress: ipAddress,
	})
}

func clientFrom(ctx context.Context) clientInfo {
	if info, ok := ctx.Value(clientKey{}).(clientInfo); ok {
		return info
	}
	return clientInfo{}
}

type Service struct {
	accounts    AccountRepository
	tokens      TokenRepository
	signer      *Signer
	otp         *OTPStore
	mailer      Mailer
	hasher      *core.PasswordHasher
	logger      *slog.Logger
	minPassword int
}

func NewService(
	accounts AccountRepository,
	tokens TokenRepository,
	signer *Signer,
	otp *OTPStore,
	mailer Mailer,
	cfg config.IdentityConfig,
	logger *slog.Logger,
) *Service {
	minPassword := cfg.MinPasswordSize
	if minPassword < 6 {
		minPassword = 6
	}

	hasher := core.NewPasswordHasher(core.Argon2Params{
		MemoryKiB:  cfg.PasswordMemoryKiB,
		Iterations: cfg.PasswordIterations,
		Threads:    cfg.PasswordThreads,
	})

	return &Service{
		accounts:    accounts,
		tokens:      tokens,
		signer:      signer,
		otp:         otp,
		mailer:      mailer,
		hasher:      hasher,
		logger:      logger,
		minPassword: minPassword,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validEmail(email string) bool {
	return validate.Var(email, "required,email,max=255") == nil
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	if len(in.Password) < s.minPassword {
		return nil, ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, wrapFailure("sign up", err)
	}

	now := time.Now()
	account := &Account{
		ID:               uuid.New().String(),
		Email:            email,
		PasswordHash:     passwordHash,
		Metadata:         in.Metadata,
		EmailConfirmedAt: &now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, wrapFailure("sign up", err)
	}

	s.logger.InfoContext(ctx, "account created",
		"user_id", account.ID,
		"role", account.Metadata.Role,
	)

	return s.issueSession(ctx, account, "", "")
}

func (s *Service) SignInWithPassword(
	ctx context.Context,
	email, password string,
) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // keeps unknown emails as slow as wrong passwords
			_, _, _ = s.hasher.Verify(password, "")
			return nil, ErrInvalidCredentials
		}
		return nil, wrapFailure("sign in", err)
	}

	valid, newHash, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, wrapFailure("sign in", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.accounts.UpdatePassword(ctx, account.ID, newHash)
	}

	return s.issueSession(ctx, account, "", "")
}

// SignOut revokes the whole refresh token family of the session. An
// unknown token is treated as already signed out.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	stored, err := s.tokens.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return wrapFailure("sign out", err)
	}

	if err := s.tokens.RevokeByFamilyID(ctx, stored.FamilyID); err != nil {
		return wrapFailure("sign out", err)
	}

	return nil
}

func (s *Service) RefreshSession(
	ctx context.Context,
	refreshToken string,
) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionMissing
	}

	stored, err := s.tokens.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, wrapFailure("refresh session", err)
	}

	if stored.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.tokens.RevokeByFamilyID(ctx, stored.FamilyID)
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			"user_id", stored.UserID,
			"family_id", stored.FamilyID,
		)
		return nil, ErrRefreshTokenReused
	}

	if !stored.IsValid() {
		return nil, ErrRefreshTokenNotFound
	}

	account, err := s.accounts.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, wrapFailure("refresh session", err)
	}

	return s.issueSession(ctx, account, stored.FamilyID, stored.ID)
}

// VerifyAccessToken checks the signature and that the token was issued
// for the account's current token version.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.signer.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if claims.TokenVersion < account.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

func (s *Service) GetUser(ctx context.Context, accessToken string) (*User, error) {
	account, err := s.accountFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	u := account.User()
	return &u, nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	accessToken, password string,
) (*User, error) {
	account, err := s.accountFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if len(password) < s.minPassword {
		return nil, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, wrapFailure("update password", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return nil, wrapFailure("update password", err)
	}

	s.logger.InfoContext(ctx, "password updated", "user_id", account.ID)

	u := account.User()
	return &u, nil
}

func (s *Service) UpdateMetadata(
	ctx context.Context,
	accessToken string,
	metadata Metadata,
) (*User, error) {
	account, err := s.accountFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateMetadata(ctx, account.ID, metadata); err != nil {
		return nil, wrapFailure("update user", err)
	}

	account.Metadata = metadata
	u := account.User()
	return &u, nil
}

// ResetPasswordForEmail mails a recovery code and link. Unknown addresses
// succeed silently so the endpoint cannot be used to probe accounts.
func (s *Service) ResetPasswordForEmail(
	ctx context.Context,
	email, redirectTo string,
) error {
	return s.sendOTP(ctx, normalizeEmail(email), redirectTo, OTPRecovery)
}

// SignInWithOTP mails a one-time sign-in code and link.
func (s *Service) SignInWithOTP(ctx context.Context, email, redirectTo string) error {
	return s.sendOTP(ctx, normalizeEmail(email), redirectTo, OTPMagicLink)
}

func (s *Service) sendOTP(
	ctx context.Context,
	email, redirectTo string,
	purpose OTPType,
) error {
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.DebugContext(ctx, "otp requested for unknown email")
			return nil
		}
		return wrapFailure("send otp", err)
	}

	code, err := s.otp.Issue(ctx, purpose, email)
	if err != nil {
		return wrapFailure("send otp", err)
	}

	subject := "Seu código de acesso"
	if purpose == OTPRecovery {
		subject = "Redefinição de senha"
	}

	err = s.mailer.Send(ctx, Message{
		To:      email,
		Name:    account.Metadata.Name,
		Subject: subject,
		Link:    otpLink(redirectTo, email, code, purpose),
		Code:    code,
		Purpose: purpose,
	})
	if err != nil {
		return wrapFailure("send otp", err)
	}

	return nil
}

func otpLink(redirectTo, email, code string, purpose OTPType) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", code)
	q.Set("type", string(purpose))

	sep := "?"
	if strings.Contains(redirectTo, "?") {
		sep = "&"
	}
	return redirectTo + sep + q.Encode()
}

func (s *Service) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*Session, error) {
	if !in.Type.Valid() {
		return nil, ErrUnsupportedOTPType
	}

	email := normalizeEmail(in.Email)

	otpType := in.Type
	if otpType == OTPEmail || otpType == OTPSignup {
		otpType = OTPMagicLink
	}

	ok, err := s.otp.Consume(ctx, otpType, email, in.Token)
	if err != nil {
		return nil, wrapFailure("verify otp", err)
	}
	if !ok {
		return nil, ErrOTPInvalid
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrOTPInvalid
		}
		return nil, wrapFailure("verify otp", err)
	}

	if err := s.accounts.ConfirmEmail(ctx, account.ID); err != nil {
		return nil, wrapFailure("verify otp", err)
	}

	return s.issueSession(ctx, account, "", "")
}

func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

func (s *Service) accountFromToken(ctx context.Context, accessToken string) (*Account, error) {
	if accessToken == "" {
		return nil, ErrSessionMissing
	}

	claims, err := s.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) ||
			errors.Is(err, core.ErrTokenInvalid) ||
			errors.Is(err, core.ErrTokenRevoked) {
			return nil, &Error{
				Kind:    KindSessionMissing,
				Code:    "bad_jwt",
				Message: "invalid JWT",
				Err:     err,
			}
		}
		return nil, wrapFailure("get user", err)
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrSessionMissing
		}
		return nil, wrapFailure("get user", err)
	}

	return account, nil
}

func (s *Service) issueSession(
	ctx context.Context,
	account *Account,
	familyID, previousTokenID string,
) (*Session, error) {
	refreshData, err := s.signer.NewRefreshToken(familyID)
	if err != nil {
		return nil, wrapFailure("issue session", err)
	}

	accessToken, expiresAt, err := s.signer.IssueAccessToken(AccessTokenClaims{
		UserID:       account.ID,
		Email:        account.Email,
		SessionID:    refreshData.FamilyID,
		TokenVersion: account.TokenVersion,
	})
	if err != nil {
		return nil, wrapFailure("issue session", err)
	}

	client := clientFrom(ctx)
	newTokenID := uuid.New().String()

	err = s.tokens.Create(ctx, &RefreshToken{
		ID:        newTokenID,
		UserID:    account.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: client.userAgent,
		IPAddress: client.ipAddress,
	})
	if err != nil {
		return nil, wrapFailure("issue session", err)
	}

	if previousTokenID != "" {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.tokens.MarkAsUsed(ctx, previousTokenID, newTokenID)
	}

	//nolint:errcheck // sign-in bookkeeping must not fail the session
	_ = s.accounts.TouchSignIn(ctx, account.ID)

	now := time.Now()
	account.LastSignInAt = &now

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshData.Token,
		TokenType:    "bearer",
		ExpiresIn:    int(time.Until(expiresAt).Seconds()),
		ExpiresAt:    expiresAt,
		User:         account.User(),
	}, nil
}
