// Package idgen mints the opaque 128-bit identifiers used for
// ManagedProcess and ProcessInstance entities, and a Clock interface over
// the system time.
package idgen

import (
	"time"

	"github.com/google/uuid"
)

// New returns a new opaque identifier. Callers must not parse or derive
// meaning from its structure beyond equality.
func New() string {
	return uuid.New().String()
}

// Clock is a time source. SystemClock is the only implementation; the
// orchestrator stores one, but its uptime and backoff measurements call
// time.Now and time.Since directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall-clock time via time.Now. time.Time's monotonic
// reading is preserved across the call, so Sub/Since comparisons made from
// values it returns are immune to wall-clock adjustments.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
