package utils

import "strings"

// EscapeSQLWildcards escapes SQL LIKE wildcard characters to prevent injection
// when user input ends up inside a LIKE pattern.
func EscapeSQLWildcards(input string) string {
	// Escape backslash first (as it's the escape character)
	input = strings.ReplaceAll(input, "\\", "\\\\")
	// Escape SQL wildcards
	input = strings.ReplaceAll(input, "%", "\\%")
	input = strings.ReplaceAll(input, "_", "\\_")
	return input
}

// SanitizeSearchQuery prepares a search string for safe LIKE usage.
// Returns the sanitized term wrapped with % for partial matching.
func SanitizeSearchQuery(input string) string {
	input = strings.TrimSpace(input)
	// Limit length to prevent DoS
	if len(input) > 100 {
		input = input[:100]
	}
	input = EscapeSQLWildcards(input)
	return "%" + input + "%"
}
