// AngelaMos | 2026
// validate.go

package session

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 6

var validate = validator.New(validator.WithRequiredStructEnabled())

func IsValidEmail(email string) bool {
	return validate.Var(strings.TrimSpace(email), "required,email,max=255") == nil
}

func IsStrongPassword(password string) bool {
	return utf8.RuneCountInString(password) >= minPasswordLength
}
