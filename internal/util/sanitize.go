package util

import (
	"html"
	"strings"
)

// SanitizeInput trims whitespace and escapes HTML/script-like characters in
// caller-supplied free text before it is persisted.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
