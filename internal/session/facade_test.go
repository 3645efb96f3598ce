// AngelaMos | 2026
// facade_test.go

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/user"
)

type recorded struct {
	event   Event
	session *identity.Session
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) listen(e Event, s *identity.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{e, s})
}

func (r *recorder) kinds() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

func signUpAna(t *testing.T, env *testEnv) *AuthResult {
	t.Helper()

	res, err := env.facade.SignUp(context.Background(), SignUpParams{
		Email:      "Ana@Example.com",
		Password:   "secret1",
		Name:       "Ana Cliente",
		Role:       user.RoleClient,
		ClientType: user.ClientPartner,
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return res
}

func TestSignUpMirrorsUser(t *testing.T) {
	env := newTestEnv(t)
	rec := &recorder{}
	env.facade.OnAuthStateChange(rec.listen)

	res := signUpAna(t, env)
	if res.Session == nil || res.User == nil {
		t.Fatal("empty result")
	}

	mirrored := env.mirror.Get(context.Background(), res.User.ID)
	if mirrored == nil {
		t.Fatal("mirror not written")
	}
	if mirrored.Email != "ana@example.com" || mirrored.Name != "Ana Cliente" || mirrored.Role != user.RoleClient {
		t.Errorf("mirror = %+v", mirrored)
	}
	if mirrored.ClientType != user.ClientPartner {
		t.Errorf("client type = %q", mirrored.ClientType)
	}

	if got := rec.kinds(); len(got) != 1 || got[0] != EventSignedIn {
		t.Errorf("events = %v", got)
	}
}

func TestSignUpValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		params SignUpParams
	}{
		{"bad email", SignUpParams{Email: "not-an-email", Password: "secret1", Role: user.RoleClient}},
		{"short password", SignUpParams{Email: "a@example.com", Password: "12345", Role: user.RoleClient}},
		{"bad role", SignUpParams{Email: "a@example.com", Password: "secret1", Role: "owner"}},
		{"bad client type", SignUpParams{Email: "a@example.com", Password: "secret1", Role: user.RoleClient, ClientType: "vip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			res, err := env.facade.SignUp(context.Background(), tt.params)
			if res != nil {
				t.Error("expected nil result")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if n := env.provider.count("SignUp"); n != 0 {
				t.Errorf("provider called %d times", n)
			}
		})
	}
}

func TestSignUpRetriesTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	env.provider.script("SignUp", errFetch, errFetch)

	res := signUpAna(t, env)
	if res == nil {
		t.Fatal("nil result")
	}
	if n := env.provider.count("SignUp"); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
}

func TestSignUpGivesUpAfterThreeAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.provider.script("SignUp", errFetch, errFetch, errFetch, errFetch)

	res, err := env.facade.SignUp(context.Background(), SignUpParams{
		Email:    "ana@example.com",
		Password: "secret1",
		Role:     user.RoleClient,
	})
	if res != nil {
		t.Error("expected nil result")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if n := env.provider.count("SignUp"); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
}

func TestSignUpExistingEmailIsRejected(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)

	_, err := env.facade.SignUp(context.Background(), SignUpParams{
		Email:    "ana@example.com",
		Password: "secret1",
		Role:     user.RoleClient,
	})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if ErrorMessage(err) != "Este e-mail já está cadastrado." {
		t.Errorf("message = %q", ErrorMessage(err))
	}
	if n := env.provider.count("SignUp"); n != 2 {
		t.Errorf("conflict was retried: calls = %d", n)
	}
}

func TestSignUpMirrorRetries(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		env := newTestEnv(t)
		env.mirror.failures = 2

		res := signUpAna(t, env)
		if env.mirror.Get(context.Background(), res.User.ID) == nil {
			t.Error("mirror not written after retries")
		}
		if env.mirror.calls != 3 {
			t.Errorf("mirror calls = %d", env.mirror.calls)
		}
	})

	t.Run("still returns the session", func(t *testing.T) {
		env := newTestEnv(t)
		env.mirror.failures = 5

		res := signUpAna(t, env)
		if res.Session == nil {
			t.Fatal("session dropped on mirror failure")
		}
		if env.mirror.calls != 3 {
			t.Errorf("mirror calls = %d", env.mirror.calls)
		}

		env.mirror.failures = 0
		u := env.facade.GetCurrentUser(context.Background())
		if u == nil || u.Name != "Ana Cliente" || u.ClientType != user.ClientPartner {
			t.Errorf("self-healed user = %+v", u)
		}
	})
}

func TestSignInInvalidCredentialsIsNotRetried(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)

	res, err := env.facade.SignIn(context.Background(), "ana@example.com", "wrong-password")
	if res != nil {
		t.Error("expected nil result")
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if err.Error() != "AUTH_INVALID_CREDENTIALS" {
		t.Errorf("marker = %q", err.Error())
	}
	if n := env.provider.count("SignIn"); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestSignInRetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)
	env.provider.script("SignIn", errors.New("body stream already read"))

	res, err := env.facade.SignIn(context.Background(), "ana@example.com", "secret1")
	if err != nil || res == nil {
		t.Fatalf("SignIn = %v, %v", res, err)
	}
	if n := env.provider.count("SignIn"); n != 2 {
		t.Errorf("provider calls = %d, want 2", n)
	}
}

func TestSignInHonoursCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.provider.script("SignIn", errFetch, errFetch, errFetch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := env.facade.SignIn(ctx, "ana@example.com", "secret1")
	if res != nil || err == nil {
		t.Fatalf("SignIn = %v, %v", res, err)
	}
	if n := env.provider.count("SignIn"); n > 1 {
		t.Errorf("provider calls after cancel = %d", n)
	}
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)

	rec := &recorder{}
	env.facade.OnAuthStateChange(rec.listen)

	if !env.facade.SignOut(context.Background()) {
		t.Fatal("SignOut reported failure")
	}
	if env.facade.GetCurrentSession(context.Background()) != nil {
		t.Error("session still present")
	}
	if env.redis.Exists(testCacheKey) {
		t.Error("cached session not removed")
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != EventSignedOut {
		t.Errorf("events = %v", got)
	}
}

func TestUncachedFacadeLeavesCachedSessionAlone(t *testing.T) {
	env := newTestEnv(t)
	ana := signUpAna(t, env)
	ctx := context.Background()

	detached := New(Options{
		Provider: env.provider,
		Mirror:   env.mirror,
		Retry:    testRetry(),
	})

	res, err := detached.SignUp(ctx, SignUpParams{
		Email:    "consultor@example.com",
		Password: "secret1",
		Name:     "Carlos Consultor",
		Role:     user.RoleConsultant,
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.User.ID == ana.User.ID {
		t.Fatal("second sign up reused the first account")
	}
	if !detached.SignOut(ctx) {
		t.Fatal("SignOut reported failure")
	}

	if !env.redis.Exists(testCacheKey) {
		t.Fatal("cached session removed")
	}
	restored := env.newFacade().GetCurrentSession(ctx)
	if restored == nil || restored.User.ID != ana.User.ID {
		t.Errorf("restored session = %+v, want %s", restored, ana.User.ID)
	}
	if cur := env.facade.GetCurrentSession(ctx); cur == nil || cur.User.ID != ana.User.ID {
		t.Errorf("current session = %+v", cur)
	}
}

func TestNoSessionIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if env.facade.GetCurrentSession(ctx) != nil {
		t.Error("unexpected session")
	}
	if env.facade.GetCurrentUser(ctx) != nil {
		t.Error("unexpected user")
	}
	if env.facade.RefreshSession(ctx) != nil {
		t.Error("unexpected refresh")
	}
	if env.facade.UpdatePassword(ctx, "another1") {
		t.Error("password updated without a session")
	}
	if n := env.provider.count("GetUser"); n != 0 {
		t.Errorf("provider consulted %d times", n)
	}
}

func TestSessionRestoredFromCache(t *testing.T) {
	env := newTestEnv(t)
	res := signUpAna(t, env)

	if !env.redis.Exists(testCacheKey) {
		t.Fatal("session not cached")
	}

	restarted := env.newFacade()
	s := restarted.GetCurrentSession(context.Background())
	if s == nil {
		t.Fatal("session not restored")
	}
	if s.AccessToken != res.Session.AccessToken {
		t.Errorf("restored token = %q", s.AccessToken)
	}
}

func TestExpiredSessionIsRefreshed(t *testing.T) {
	env := newTestEnv(t)
	res := signUpAna(t, env)

	env.facade.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	rec := &recorder{}
	env.facade.OnAuthStateChange(rec.listen)

	s := env.facade.GetCurrentSession(context.Background())
	if s == nil {
		t.Fatal("refresh failed")
	}
	if s.RefreshToken == res.Session.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != EventTokenRefreshed {
		t.Errorf("events = %v", got)
	}
}

func TestRefreshFailureClearsCachedSession(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)
	env.provider.script("Refresh", identity.ErrRefreshTokenReused)

	rec := &recorder{}
	env.facade.OnAuthStateChange(rec.listen)

	if env.facade.RefreshSession(context.Background()) != nil {
		t.Fatal("expected nil session")
	}
	if env.redis.Exists(testCacheKey) {
		t.Error("cached session kept after refused refresh")
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != EventSignedOut {
		t.Errorf("events = %v", got)
	}
}

func TestRefreshOutageKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)
	env.provider.script("Refresh", errFetch, errFetch, errFetch)

	if env.facade.RefreshSession(context.Background()) != nil {
		t.Fatal("expected nil session")
	}
	if env.facade.session() == nil {
		t.Error("session dropped on a transient failure")
	}
	if !env.redis.Exists(testCacheKey) {
		t.Error("cached session dropped on a transient failure")
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	signUpAna(t, env)
	env.facade.SignOut(ctx)

	rec := &recorder{}
	env.facade.OnAuthStateChange(rec.listen)

	if env.facade.ResetPasswordForEmail(ctx, "bad") {
		t.Error("invalid email accepted")
	}
	if !env.facade.ResetPasswordForEmail(ctx, "ana@example.com") {
		t.Fatal("ResetPasswordForEmail failed")
	}

	if env.facade.VerifyOTP(ctx, "ana@example.com", "000000", identity.OTPRecovery) != nil {
		t.Error("wrong code accepted")
	}

	s := env.facade.VerifyOTP(ctx, "ana@example.com", "123456", identity.OTPRecovery)
	if s == nil {
		t.Fatal("VerifyOTP failed")
	}

	if !env.facade.UpdatePassword(ctx, "brand-new") {
		t.Fatal("UpdatePassword failed")
	}

	want := []Event{EventPasswordRecovery, EventUserUpdated}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	env.facade.SignOut(ctx)
	if _, err := env.facade.SignIn(ctx, "ana@example.com", "brand-new"); err != nil {
		t.Errorf("sign in with new password: %v", err)
	}
}

func TestUpdatePasswordRejectsShortPassword(t *testing.T) {
	env := newTestEnv(t)
	signUpAna(t, env)

	if env.facade.UpdatePassword(context.Background(), "123") {
		t.Error("short password accepted")
	}
	if n := env.provider.count("UpdatePassword"); n != 0 {
		t.Errorf("provider calls = %d", n)
	}
}

func TestGetCurrentUserSelfHealsMirror(t *testing.T) {
	env := newTestEnv(t)
	res := signUpAna(t, env)
	env.mirror.forget(res.User.ID)

	u := env.facade.GetCurrentUser(context.Background())
	if u == nil {
		t.Fatal("GetCurrentUser returned nil")
	}
	if u.ID != res.User.ID || u.Role != user.RoleClient {
		t.Errorf("user = %+v", u)
	}
}

func TestOnAuthStateChange(t *testing.T) {
	env := newTestEnv(t)

	if env.facade.OnAuthStateChange(nil) != nil {
		t.Error("nil listener should return nil")
	}

	rec := &recorder{}
	unsubscribe := env.facade.OnAuthStateChange(rec.listen)
	if env.facade.listeners.len() != 1 {
		t.Fatalf("listeners = %d", env.facade.listeners.len())
	}

	unsubscribe()
	unsubscribe()

	if env.facade.listeners.len() != 0 {
		t.Errorf("listeners after unsubscribe = %d", env.facade.listeners.len())
	}

	signUpAna(t, env)
	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("unsubscribed listener received %v", got)
	}
}

func TestListenerMayUnsubscribeItself(t *testing.T) {
	env := newTestEnv(t)

	var (
		calls       int
		unsubscribe func()
	)
	unsubscribe = env.facade.OnAuthStateChange(func(Event, *identity.Session) {
		calls++
		unsubscribe()
	})

	signUpAna(t, env)
	env.facade.SignOut(context.Background())

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
