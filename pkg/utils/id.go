package utils

import (
	"github.com/google/uuid"
)

// GenerateUserID generates a unique user ID
func GenerateUserID() string {
	return uuid.NewString()
}

// GenerateClientID generates an ID for a subscriber that did not supply one
func GenerateClientID() string {
	return "client-" + uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return "req-" + uuid.NewString()
}
