// AngelaMos | 2026
// entity.go

package identity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the free-form profile a client attaches at sign-up. It is
// stored as jsonb next to the account and copied into every User.
type Metadata struct {
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	ClientType string `json:"client_type,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan metadata: unsupported type %T", src)
	}
	return json.Unmarshal(raw, m)
}

type Account struct {
	ID               string     `db:"id"`
	Email            string     `db:"email"`
	PasswordHash     string     `db:"password_hash"`
	Metadata         Metadata   `db:"user_metadata"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at"`
	TokenVersion     int        `db:"token_version"`
	LastSignInAt     *time.Time `db:"last_sign_in_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (a *Account) User() User {
	return User{
		ID:               a.ID,
		Email:            a.Email,
		Metadata:         a.Metadata,
		EmailConfirmedAt: a.EmailConfirmedAt,
		LastSignInAt:     a.LastSignInAt,
		CreatedAt:        a.CreatedAt,
	}
}

// User is the public view of an account as handed out with a session.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Metadata         Metadata   `json:"user_metadata"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// expiryMargin treats a session as expired slightly early so a token is
// never presented in its last seconds of validity.
const expiryMargin = 10 * time.Second

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt.Add(-expiryMargin))
}

type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsValid() bool {
	return !t.IsExpired() && !t.IsRevoked() && !t.IsUsed
}

type OTPType string

const (
	OTPRecovery  OTPType = "recovery"
	OTPSignup    OTPType = "signup"
	OTPMagicLink OTPType = "magiclink"
	OTPEmail     OTPType = "email"
)

func (t OTPType) Valid() bool {
	switch t {
	case OTPRecovery, OTPSignup, OTPMagicLink, OTPEmail:
		return true
	}
	return false
}
