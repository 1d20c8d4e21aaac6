package utils

import (
	"strings"
)

// FoldKey normalizes a value for case-insensitive equality lookups.
func FoldKey(s string) string {
	return strings.ToLower(s)
}

// MaskEmail keeps the first character of the local part and the domain,
// so addresses can appear in logs without being fully disclosed.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return maskSensitive(email, 1)
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

// maskSensitive masks all but the first visibleChars characters.
func maskSensitive(s string, visibleChars int) string {
	r := []rune(s)
	if len(r) <= visibleChars {
		return strings.Repeat("*", len(r))
	}
	return string(r[:visibleChars]) + strings.Repeat("*", len(r)-visibleChars)
}
