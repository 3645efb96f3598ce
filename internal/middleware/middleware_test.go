// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(context.Context, string) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

type stubRoles map[string]string

func (s stubRoles) RoleOf(_ context.Context, userID string) (string, error) {
	role, ok := s[userID]
	if !ok {
		return "", fmt.Errorf("role of: %w", core.ErrNotFound)
	}
	return role, nil
}

func TestAPIKey(t *testing.T) {
	h := APIKey("anon-key")(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "other", http.StatusUnauthorized},
		{"valid", "anon-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
			if tt.header != "" {
				req.Header.Set("apikey", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthenticator(t *testing.T) {
	roles := stubRoles{"u-admin": RoleAdministrator}

	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		want     int
		wantRole string
	}{
		{
			name: "missing token",
			want: http.StatusUnauthorized,
		},
		{
			name:     "expired token",
			header:   "Bearer abc",
			verifier: stubVerifier{err: fmt.Errorf("verify: %w", core.ErrTokenExpired)},
			want:     http.StatusUnauthorized,
		},
		{
			name:     "resolved role",
			header:   "Bearer abc",
			verifier: stubVerifier{claims: &AccessTokenClaims{UserID: "u-admin"}},
			want:     http.StatusOK,
			wantRole: RoleAdministrator,
		},
		{
			name:     "no mirror yet",
			header:   "bearer abc",
			verifier: stubVerifier{claims: &AccessTokenClaims{UserID: "u-new"}},
			want:     http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRole string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotRole = GetUserRole(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticator(tt.verifier, roles)(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotRole != tt.wantRole {
				t.Errorf("role = %q, want %q", gotRole, tt.wantRole)
			}
		})
	}
}

func TestOptionalAuthenticator(t *testing.T) {
	roles := stubRoles{"u-admin": RoleAdministrator}

	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		want     int
		wantUser string
	}{
		{
			name: "anonymous passes through",
			want: http.StatusOK,
		},
		{
			name:     "valid token resolves caller",
			header:   "Bearer abc",
			verifier: stubVerifier{claims: &AccessTokenClaims{UserID: "u-admin"}},
			want:     http.StatusOK,
			wantUser: "u-admin",
		},
		{
			name:     "bad token is rejected",
			header:   "Bearer abc",
			verifier: stubVerifier{err: fmt.Errorf("verify: %w", core.ErrTokenRevoked)},
			want:     http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			OptionalAuthenticator(tt.verifier, roles)(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"client", WithIdentity(context.Background(), "u1", "client"), http.StatusForbidden},
		{"administrator", WithIdentity(context.Background(), "u2", RoleAdministrator), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			RequireAdmin(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit:      PerMinute(2, 2),
		BypassFunc: BypassPaths("/healthz"),
	})
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first requests = %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bypassed path status = %d", rec.Code)
	}
}

func TestRateLimiterFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	rl := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(1, 1)})
	h := rl.Handler(okHandler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("no Retry-After on a limited response")
	}
	if !strings.Contains(second.Body.String(), "RATE_LIMITED") {
		t.Errorf("body = %s", second.Body.String())
	}
}

func TestBucketSetDropsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	set := newBucketSet(PerMinute(60, 1))
	set.now = func() time.Time { return now }

	if res := set.allow("a"); res.Allowed != 1 {
		t.Fatal("first request denied")
	}
	if res := set.allow("a"); res.Allowed != 0 || res.RetryAfter != time.Second {
		t.Fatalf("burst exceeded: allowed=%d retry=%v", res.Allowed, res.RetryAfter)
	}

	now = now.Add(bucketIdle + time.Second)
	set.allow("b")

	if _, ok := set.buckets["a"]; ok {
		t.Error("idle bucket kept")
	}
	if len(set.buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(set.buckets))
	}
}

func TestKeyByIPAndEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/auth/signin", "ratelimit:ip:2.2.2.2:endpoint:/v1/auth/signin"},
		{"/v1/auth/signin/", "ratelimit:ip:2.2.2.2:endpoint:/v1/auth/signin"},
		{"/v1/auth/../auth/recover", "ratelimit:ip:2.2.2.2:endpoint:/v1/auth/recover"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.URL.Path = tt.path
		req.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")

		if got := KeyByIPAndEndpoint(req); got != tt.want {
			t.Errorf("key(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "apikey"},
		AllowCredentials: true,
		MaxAge:           300,
	})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	other.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin was allowed")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("request id = %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}
}
