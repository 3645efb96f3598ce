// AngelaMos | 2026
// errors.go

package identity

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Kind is the closed set of failure classes the identity provider reports.
// Callers switch on it instead of inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindInvalidCredentials
	KindSessionMissing
	KindValidation
	KindConflict
	KindInvalidOTP
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindSessionMissing:
		return "session_missing"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvalidOTP:
		return "invalid_otp"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidCredentials = &Error{
		Kind:    KindInvalidCredentials,
		Code:    "invalid_credentials",
		Message: "Invalid login credentials",
	}
	ErrUserExists = &Error{
		Kind:    KindConflict,
		Code:    "user_already_exists",
		Message: "User already registered",
	}
	ErrWeakPassword = &Error{
		Kind:    KindValidation,
		Code:    "weak_password",
		Message: "Password should be at least 6 characters",
	}
	ErrInvalidEmail = &Error{
		Kind:    KindValidation,
		Code:    "validation_failed",
		Message: "Unable to validate email address: invalid format",
	}
	ErrSessionMissing = &Error{
		Kind:    KindSessionMissing,
		Code:    "session_not_found",
		Message: "Auth session missing!",
	}
	ErrRefreshTokenNotFound = &Error{
		Kind:    KindSessionMissing,
		Code:    "refresh_token_not_found",
		Message: "Invalid Refresh Token: Refresh Token Not Found",
	}
	ErrRefreshTokenReused = &Error{
		Kind:    KindSessionMissing,
		Code:    "refresh_token_already_used",
		Message: "Invalid Refresh Token: Already Used",
	}
	ErrOTPInvalid = &Error{
		Kind:    KindInvalidOTP,
		Code:    "otp_expired",
		Message: "Token has expired or is invalid",
	}
	ErrUnsupportedOTPType = &Error{
		Kind:    KindValidation,
		Code:    "validation_failed",
		Message: "Verify requires a verification type",
	}
)

// transientMarkers are message fragments of failures that go away on
// their own: a consumed body stream or a connection that never completed.
var transientMarkers = []string{
	"body stream already read",
	"failed to fetch",
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
}

// KindOf classifies err once so no caller has to parse error text.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ie *Error
	if errors.As(err, &ie) {
		if ie.Kind != KindUnknown || ie.Err == nil {
			return ie.Kind
		}
		return KindOf(ie.Err)
	}

	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, redis.ErrClosed) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}

	return KindUnknown
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// wrapFailure turns an infrastructure error into an *Error carrying its
// classified kind, leaving provider errors untouched.
func wrapFailure(op string, err error) error {
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}

	return &Error{
		Kind:    KindOf(err),
		Code:    "unexpected_failure",
		Message: op + " failed",
		Err:     err,
	}
}
