package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
func NewID32() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEventID returns a canonical UUID string for emitted domain events.
func NewEventID() string { return uuid.NewString() }
