package util

import "strings"

// SanitizePostgresText makes extracted text safe for postgres text columns:
// invalid UTF-8 sequences and NUL bytes are stripped. Applied to node
// names, provenance, and relation context before they hit the store.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
