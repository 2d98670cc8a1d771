package core

import (
	"time"

	"github.com/google/uuid"
)

// StampLayout is the ISO-8601 form used for every persisted timestamp.
const StampLayout = "2006-01-02T15:04:05.000Z"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the current time from the wrapped function.
func (f ClockFunc) Now() time.Time { return f() }

// IDGenerator produces record and workspace identifiers.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function into an IDGenerator.
type IDFunc func() string

// NewID returns the identifier produced by the wrapped function.
func (f IDFunc) NewID() string { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return NewID() }

// NewID returns a time-ordered identifier: a UUIDv7 carries a millisecond
// timestamp prefix followed by random bits.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowStamp formats t as a sortable UTC timestamp with millisecond precision.
func NowStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}
