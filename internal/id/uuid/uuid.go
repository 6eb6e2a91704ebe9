// Package uuid provides ID generation helpers.
package uuid

import (
	"github.com/google/uuid"
)

// NewRunID returns a time-ordered UUIDv7 so runs sort by start time. It falls
// back to a random v4 if the clock sequence cannot be read.
func NewRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
