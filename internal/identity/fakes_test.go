// AngelaMos | 2026
// fakes_test.go

package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
	}

	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
}

func (m *memAccounts) update(id string, fn func(a *Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	fn(a)
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(a *Account) { a.PasswordHash = hash })
}

func (m *memAccounts) UpdateMetadata(_ context.Context, id string, md Metadata) error {
	return m.update(id, func(a *Account) { a.Metadata = md })
}

func (m *memAccounts) ConfirmEmail(_ context.Context, id string) error {
	return m.update(id, func(a *Account) {
		now := time.Now()
		a.EmailConfirmedAt = &now
	})
}

func (m *memAccounts) TouchSignIn(_ context.Context, id string) error {
	return m.update(id, func(a *Account) {
		now := time.Now()
		a.LastSignInAt = &now
	})
}

func (m *memAccounts) IncrementTokenVersion(_ context.Context, id string) error {
	return m.update(id, func(a *Account) { a.TokenVersion++ })
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]*RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]*RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.CreatedAt = time.Now()
	cp := *t
	m.byHash[t.TokenHash] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) MarkAsUsed(_ context.Context, id, replacedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.byHash {
		if t.ID == id && !t.IsUsed {
			now := time.Now()
			t.IsUsed = true
			t.UsedAt = &now
			t.ReplacedByID = &replacedBy
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, t := range m.byHash {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, t := range m.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *memTokens) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for hash, t := range m.byHash {
		if t.IsExpired() {
			delete(m.byHash, hash)
			n++
		}
	}
	return n, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "planejar-test",
		Audience:           "planejar-test-app",
	}
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewSignerFromKey(key, testJWTConfig())
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	return m
}

type testEnv struct {
	svc      *Service
	accounts *memAccounts
	tokens   *memTokens
	mailer   *recordingMailer
	redis    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		accounts: newMemAccounts(),
		tokens:   newMemTokens(),
		mailer:   &recordingMailer{},
		redis:    mr,
	}

	env.svc = NewService(
		env.accounts,
		env.tokens,
		newTestSigner(t),
		NewOTPStore(rdb, time.Hour),
		env.mailer,
		config.IdentityConfig{MinPasswordSize: 6},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return env
}
