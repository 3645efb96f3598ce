// AngelaMos | 2026
// fakes_test.go

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/user"
)

var errFetch = errors.New("TypeError: Failed to fetch")

type account struct {
	id       string
	password string
	metadata identity.Metadata
}

// fakeProvider is an in-memory identity platform. Each method pops
// scripted failures from its queue before doing real work.
type fakeProvider struct {
	mu       sync.Mutex
	accounts map[string]*account
	refresh  map[string]string
	otp      map[string]string
	failures map[string][]error
	calls    map[string]int
	seq      int
	ttl      time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: map[string]*account{},
		refresh:  map[string]string{},
		otp:      map[string]string{},
		failures: map[string][]error{},
		calls:    map[string]int{},
		ttl:      time.Hour,
	}
}

func (p *fakeProvider) script(method string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[method] = append(p.failures[method], errs...)
}

func (p *fakeProvider) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *fakeProvider) enter(method string) error {
	p.calls[method]++
	if q := p.failures[method]; len(q) > 0 {
		p.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (p *fakeProvider) issue(email string) *identity.Session {
	p.seq++
	a := p.accounts[email]
	rt := fmt.Sprintf("refresh-%d", p.seq)
	p.refresh[rt] = email

	return &identity.Session{
		AccessToken:  fmt.Sprintf("access-%d|%s", p.seq, email),
		RefreshToken: rt,
		TokenType:    "bearer",
		ExpiresIn:    int(p.ttl.Seconds()),
		ExpiresAt:    time.Now().Add(p.ttl),
		User: identity.User{
			ID:       a.id,
			Email:    email,
			Metadata: a.metadata,
		},
	}
}

func (p *fakeProvider) SignUp(_ context.Context, in identity.SignUpInput) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("SignUp"); err != nil {
		return nil, err
	}
	if _, ok := p.accounts[in.Email]; ok {
		return nil, identity.ErrUserExists
	}

	p.accounts[in.Email] = &account{
		id:       fmt.Sprintf("user-%d", len(p.accounts)+1),
		password: in.Password,
		metadata: in.Metadata,
	}
	return p.issue(in.Email), nil
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("SignIn"); err != nil {
		return nil, err
	}
	a, ok := p.accounts[email]
	if !ok || a.password != password {
		return nil, identity.ErrInvalidCredentials
	}
	return p.issue(email), nil
}

func (p *fakeProvider) SignOut(_ context.Context, refreshToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("SignOut"); err != nil {
		return err
	}
	delete(p.refresh, refreshToken)
	return nil
}

func (p *fakeProvider) RefreshSession(_ context.Context, refreshToken string) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("Refresh"); err != nil {
		return nil, err
	}
	email, ok := p.refresh[refreshToken]
	if !ok {
		return nil, identity.ErrRefreshTokenNotFound
	}
	delete(p.refresh, refreshToken)
	return p.issue(email), nil
}

func (p *fakeProvider) userFor(accessToken string) (*identity.User, error) {
	for email, a := range p.accounts {
		if len(accessToken) > len(email) && accessToken[len(accessToken)-len(email):] == email {
			return &identity.User{ID: a.id, Email: email, Metadata: a.metadata}, nil
		}
	}
	return nil, identity.ErrSessionMissing
}

func (p *fakeProvider) GetUser(_ context.Context, accessToken string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("GetUser"); err != nil {
		return nil, err
	}
	return p.userFor(accessToken)
}

func (p *fakeProvider) UpdatePassword(_ context.Context, accessToken, password string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("UpdatePassword"); err != nil {
		return nil, err
	}
	u, err := p.userFor(accessToken)
	if err != nil {
		return nil, err
	}
	p.accounts[u.Email].password = password
	return u, nil
}

func (p *fakeProvider) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("Reset"); err != nil {
		return err
	}
	p.otp[email] = "123456"
	return nil
}

func (p *fakeProvider) VerifyOTP(_ context.Context, in identity.VerifyOTPInput) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter("VerifyOTP"); err != nil {
		return nil, err
	}
	if code, ok := p.otp[in.Email]; !ok || code != in.Token {
		return nil, identity.ErrOTPInvalid
	}
	delete(p.otp, in.Email)
	return p.issue(in.Email), nil
}

type fakeMirror struct {
	mu       sync.Mutex
	users    map[string]user.User
	failures int
	calls    int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{users: map[string]user.User{}}
}

func (m *fakeMirror) Mirror(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("connection refused")
	}
	m.users[u.ID] = *u
	return nil
}

func (m *fakeMirror) Get(_ context.Context, id string) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (m *fakeMirror) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

type testEnv struct {
	facade   *Facade
	provider *fakeProvider
	mirror   *fakeMirror
	redis    *miniredis.Miniredis
	rdb      *redis.Client
}

const testCacheKey = "planejar:auth-token"

func testRetry() config.RetryConfig {
	return config.RetryConfig{
		ProviderAttempts:  3,
		ProviderBaseDelay: time.Millisecond,
		ProviderJitter:    time.Millisecond,
		MirrorAttempts:    3,
		MirrorDelay:       time.Millisecond,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		provider: newFakeProvider(),
		mirror:   newFakeMirror(),
		redis:    mr,
		rdb:      rdb,
	}
	env.facade = env.newFacade()
	return env
}

// newFacade builds a fresh façade over the same provider, mirror and
// cache, as a restarted process would.
func (e *testEnv) newFacade() *Facade {
	return New(Options{
		Provider:   e.provider,
		Mirror:     e.mirror,
		Cache:      e.rdb,
		CacheKey:   testCacheKey,
		CacheTTL:   time.Hour,
		RedirectTo: "https://app.example.com/redefinir-senha",
		Retry:      testRetry(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
