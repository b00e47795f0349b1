package types

import (
	"fmt"
	"time"
)

// DefaultSessionTimeout is the inactivity gap that closes a session.
const DefaultSessionTimeout = 30 * time.Minute

// Clock abstracts the current instant so runs are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC instant.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// RunContext carries everything a run needs that would otherwise be ambient state.
type RunContext struct {
	// Day is the target processing day, at 00:00:00 UTC
	Day time.Time

	// SessionTimeout is the inactivity gap that starts a new session
	SessionTimeout time.Duration

	// IngestionTS is read once from the clock at the start of the run
	IngestionTS time.Time

	// BatchID identifies the run
	BatchID string

	// SourceFile is the base name of the input file
	SourceFile string
}

// NewRunContext builds a run context for day, reading the clock exactly once.
func NewRunContext(day time.Time, timeout time.Duration, clock Clock, sourceFile string) (RunContext, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	now := clock.Now().UTC()
	batch, err := NewULIDGenerator().GenerateWithTime(now)
	if err != nil {
		return RunContext{}, fmt.Errorf("types: failed to generate batch id: %w", err)
	}
	return RunContext{
		Day:            TruncateDay(day),
		SessionTimeout: timeout,
		IngestionTS:    now,
		BatchID:        batch.String(),
		SourceFile:     sourceFile,
	}, nil
}

// DayStart returns the inclusive start of the processing window.
func (r RunContext) DayStart() time.Time { return r.Day }

// DayEnd returns the exclusive end of the processing window.
func (r RunContext) DayEnd() time.Time { return r.Day.AddDate(0, 0, 1) }

// DayString returns the processing day as YYYY-MM-DD.
func (r RunContext) DayString() string { return r.Day.Format(DateLayout) }

// ParseDay parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("types: invalid day %q: %w", s, err)
	}
	return d, nil
}

// TruncateDay returns midnight UTC of t's UTC calendar date.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
