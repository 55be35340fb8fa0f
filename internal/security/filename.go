// Package security keeps names read from trajectory files from steering
// where outputs are written.
package security

import "strings"

// maxFilenameLen bounds sanitised names.
const maxFilenameLen = 128

// SanitizeFilename reduces s to a single path element made of ASCII
// letters, digits, dots, underscores and dashes. Runs of other characters,
// path separators included, become one underscore. Leading and trailing
// dots and underscores are dropped, so ".." cannot survive. An empty
// result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
