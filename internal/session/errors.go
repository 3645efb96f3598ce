// AngelaMos | 2026
// errors.go

package session

import (
	"errors"
	"strings"
)

// ErrInvalidCredentials is the one provider outcome callers must tell apart
// from an outage: the password did not match.
var ErrInvalidCredentials = errors.New("AUTH_INVALID_CREDENTIALS")

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRejected     = errors.New("request rejected")
	ErrUnavailable  = errors.New("authentication service unavailable")
)

// Error carries a user-facing message next to one of the sentinels above.
// It never wraps the provider error itself.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

type messageRule struct {
	fragment string
	message  string
}

var messageRules = []messageRule{
	{"AUTH_INVALID_CREDENTIALS", "E-mail ou senha incorretos."},
	{"Invalid login credentials", "E-mail ou senha incorretos."},
	{"User already registered", "Este e-mail já está cadastrado."},
	{"Password should be at least", "A senha deve ter pelo menos 6 caracteres."},
	{"Unable to validate email address", "Informe um e-mail válido."},
	{"Email not confirmed", "Confirme seu e-mail antes de entrar."},
	{"Token has expired or is invalid", "O código informado é inválido ou expirou."},
	{"Auth session missing", "Sua sessão expirou. Entre novamente."},
	{"Invalid Refresh Token", "Sua sessão expirou. Entre novamente."},
	{"For security purposes", "Aguarde alguns instantes antes de tentar novamente."},
	{"body stream already read", "Falha de conexão. Tente novamente."},
	{"failed to fetch", "Falha de conexão. Tente novamente."},
}

// ErrorMessage turns err into text fit for an end user. Unknown errors
// come back as their raw message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}

	raw := err.Error()
	lower := strings.ToLower(raw)
	for _, rule := range messageRules {
		if strings.Contains(lower, strings.ToLower(rule.fragment)) {
			return rule.message
		}
	}

	return raw
}
