// AngelaMos | 2026
// errors_test.go

package identity

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"provider sentinel", ErrInvalidCredentials, KindInvalidCredentials},
		{"wrapped sentinel", fmt.Errorf("sign in: %w", ErrUserExists), KindConflict},
		{"body stream", errors.New("TypeError: body stream already read"), KindTransient},
		{"failed to fetch", errors.New("Failed to fetch"), KindTransient},
		{"unexpected eof", io.ErrUnexpectedEOF, KindTransient},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), KindTransient},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"canceled", context.Canceled, KindUnknown},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindTransient},
		{"plain", errors.New("something odd"), KindUnknown},
		{"wrapped infra", wrapFailure("sign up", io.ErrUnexpectedEOF), KindTransient},
		{"wrapped unknown", wrapFailure("sign up", errors.New("boom")), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[Kind]int{
		KindInvalidCredentials: http.StatusBadRequest,
		KindValidation:         http.StatusUnprocessableEntity,
		KindConflict:           http.StatusUnprocessableEntity,
		KindSessionMissing:     http.StatusUnauthorized,
		KindInvalidOTP:         http.StatusForbidden,
		KindTransient:          http.StatusServiceUnavailable,
		KindUnknown:            http.StatusInternalServerError,
	}

	for kind, want := range tests {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%v) = %d, want %d", kind, got, want)
		}
	}
}
