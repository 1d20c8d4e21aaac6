package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	NameMinLength = 2
	NameMaxLength = 50
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// NameRegex allows Unicode letters, spaces, hyphens and apostrophes
	NameRegex = regexp.MustCompile(`^[\p{L} '\-]+$`)
)

// ValidateName validates a person's display name. Leading or trailing
// whitespace is rejected rather than trimmed.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name must not start or end with whitespace")
	}
	if err := ValidateStringLength(name, NameMinLength, NameMaxLength, "name"); err != nil {
		return err
	}
	if !NameRegex.MatchString(name) {
		return fmt.Errorf("name contains invalid characters (only letters, spaces, hyphens and apostrophes allowed)")
	}
	return nil
}

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(email) != email {
		return fmt.Errorf("email must not start or end with whitespace")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateID validates an opaque identifier supplied by a caller
func ValidateID(id, fieldName string) error {
	if err := ValidateNonEmptyString(id, fieldName); err != nil {
		return err
	}
	if len(id) > 100 {
		return fmt.Errorf("%s is too long (max 100 characters)", fieldName)
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length in characters
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
