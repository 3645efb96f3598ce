// AngelaMos | 2026
// filename.go

package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackFileName = "arquivo"

// CleanFileName folds accents, turns whitespace runs into a single
// underscore and drops every rune outside [A-Za-z0-9._-].
func CleanFileName(name string) string {
	folder := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)

	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))

	inSpace := false
	for _, r := range strings.TrimSpace(folded) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false

		if isSafeFileRune(r) {
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return fallbackFileName
	}

	return cleaned
}

func isSafeFileRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z',
		r >= 'A' && r <= 'Z',
		r >= '0' && r <= '9',
		r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// ObjectPath builds <category>/<projectID>/[phase<id>/]<unixMillis>-<name>.
// A phaseID of zero leaves the phase segment out.
func ObjectPath(
	category, ownerID string,
	phaseID int,
	fileName string,
	now time.Time,
) string {
	var b strings.Builder

	b.WriteString(category)
	b.WriteByte('/')
	b.WriteString(ownerID)
	b.WriteByte('/')

	if phaseID > 0 {
		fmt.Fprintf(&b, "phase%d/", phaseID)
	}

	fmt.Fprintf(&b, "%d-%s", now.UnixMilli(), CleanFileName(fileName))

	return b.String()
}
