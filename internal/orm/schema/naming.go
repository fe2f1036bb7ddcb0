package schema

import (
	"fmt"
	"strings"
)

// SanitizeName reduces an identifier to letters, digits and underscores.
// Repeated underscores collapse into one and leading or trailing underscores
// are removed. An identifier that is empty afterwards is an error.
func SanitizeName(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}

	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")

	if s == "" {
		return "", fmt.Errorf("%w: invalid identifier %q", ErrConfiguration, name)
	}
	return s, nil
}
