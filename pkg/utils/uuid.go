package utils

import "github.com/google/uuid"

// GenerateID returns a new random message/user identifier.
func GenerateID() string {
	return uuid.New().String()
}
