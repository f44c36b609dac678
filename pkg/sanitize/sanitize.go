package sanitize

import (
	"html"
	"strings"
)

// Clean normalises a free-text form field before validation or storage:
// surrounding whitespace is trimmed, backslash escape artifacts are removed,
// and the result is HTML-escaped in a quote-safe mode. Passwords are never
// passed through Clean.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripSlashes(s)
	return html.EscapeString(s)
}

// Filename reduces a title to a safe attachment name: every character outside
// [A-Za-z0-9._-] becomes an underscore.
func Filename(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// stripSlashes removes one level of backslash escaping. A trailing lone
// backslash is dropped.
func stripSlashes(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
