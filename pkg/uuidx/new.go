package uuidx

import "github.com/google/uuid"

// New returns a fresh v7 UUID, panicking on generation failure. Run and turn
// ids are v7 so they sort by creation time.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New rendered as a string.
func NewString() string {
	return New().String()
}
