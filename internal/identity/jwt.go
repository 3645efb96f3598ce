// AngelaMos | 2026
// jwt.go

package identity

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/middleware"
)

const (
	claimEmail        = "email"
	claimSessionID    = "session_id"
	claimTokenVersion = "token_version"
	claimKind         = "type"

	accessKind = "access"
)

// Signer issues the ES256 access tokens handed out with every session and
// verifies them on the way back in. The key id is the key's thumbprint, so
// it stays stable across restarts.
type Signer struct {
	private jwk.Key
	public  jwk.Key
	keyID   string
	jwks    []byte
	config  config.JWTConfig
}

// NewSigner loads the PEM encoded EC private key at cfg.PrivateKeyPath.
func NewSigner(cfg config.JWTConfig) (*Signer, error) {
	data, err := os.ReadFile(cfg.PrivateKeyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("signing key %s missing (generate one with `planejar keygen`): %w",
			cfg.PrivateKeyPath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	return newSigner(key, cfg)
}

func NewSignerFromKey(key *ecdsa.PrivateKey, cfg config.JWTConfig) (*Signer, error) {
	imported, err := jwk.Import(key)
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	return newSigner(imported, cfg)
}

func newSigner(key jwk.Key, cfg config.JWTConfig) (*Signer, error) {
	if _, ok := key.(jwk.ECDSAPrivateKey); !ok {
		return nil, fmt.Errorf("signing key must be an EC private key, got %v", key.KeyType())
	}

	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signing key thumbprint: %w", err)
	}
	keyID := base64.RawURLEncoding.EncodeToString(thumb)[:16]

	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("set key id: %w", err)
	}

	public, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := public.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		return nil, fmt.Errorf("build key set: %w", err)
	}
	doc, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode key set: %w", err)
	}

	return &Signer{
		private: key,
		public:  public,
		keyID:   keyID,
		jwks:    doc,
		config:  cfg,
	}, nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM. Existing files are
// never overwritten: rotating the key signs every user out.
func GenerateKeyPair(privatePath, publicPath string) error {
	for _, p := range []string{privatePath, publicPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
	}

	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	key, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import key: %w", err)
	}
	public, err := key.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if err := writePEM(privatePath, key, 0o600); err != nil {
		return err
	}
	//nolint:gosec // G306: the public half is published anyway
	return writePEM(publicPath, public, 0o644)
}

func writePEM(path string, key jwk.Key, perm fs.FileMode) error {
	data, err := jwk.Pem(key)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

type AccessTokenClaims struct {
	UserID       string
	Email        string
	SessionID    string
	TokenVersion int
}

// IssueAccessToken signs a token for claims and returns it with its expiry.
func (s *Signer) IssueAccessToken(claims AccessTokenClaims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(s.config.Issuer).
		Audience([]string{s.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimEmail, claims.Email).
		Claim(claimSessionID, claims.SessionID).
		Claim(claimTokenVersion, claims.TokenVersion).
		Claim(claimKind, accessKind).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), s.private))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return string(signed), expiresAt, nil
}

// VerifyAccessToken checks signature, issuer, audience and lifetime. The
// token version is compared against the account by the Service.
func (s *Signer) VerifyAccessToken(
	_ context.Context,
	raw string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.ES256(), s.public),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
	)
	if errors.Is(err, jwt.TokenExpiredError()) {
		return nil, fmt.Errorf("verify access token: %w", core.ErrTokenExpired)
	}
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", core.ErrTokenInvalid)
	}

	var kind string
	if err := token.Get(claimKind, &kind); err != nil || kind != accessKind {
		return nil, fmt.Errorf("verify access token: kind %q: %w", kind, core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify access token: no subject: %w", core.ErrTokenInvalid)
	}

	// JSON numbers come back as float64.
	var version float64
	if err := token.Get(claimTokenVersion, &version); err != nil {
		return nil, fmt.Errorf("verify access token: no token version: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{
		UserID:       subject,
		TokenVersion: int(version),
	}
	//nolint:errcheck // optional
	_ = token.Get(claimEmail, &claims.Email)
	//nolint:errcheck // optional
	_ = token.Get(claimSessionID, &claims.SessionID)

	return claims, nil
}

// JWKSHandler publishes the verification key for other services.
func (s *Signer) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(s.jwks)
	}
}

func (s *Signer) KeyID() string {
	return s.keyID
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// NewRefreshToken mints an opaque refresh token. An empty familyID starts
// a new rotation family.
func (s *Signer) NewRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.RandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(s.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
