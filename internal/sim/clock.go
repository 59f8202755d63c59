// Package sim composes the clock, economic model, fulfillment scheduler,
// mail channel, and agent loop into the repeating daily cycle of one
// simulation run.
package sim

import "time"

// Tool durations form a small fixed menu so the agent cannot stall time
// in arbitrarily fine increments. Every tool call advances the clock by
// its duration; nothing else moves time.
const (
	DurShort  = 5 * time.Minute
	DurMedium = 30 * time.Minute
	DurLong   = 2 * time.Hour
)

// RolloverHour is the daily boundary: crossing 06:00 settles the prior
// day and produces a new day report.
const RolloverHour = 6

// Clock holds the simulated timestamp for one run. Time is logical and
// monotonically non-decreasing; all mutation goes through the owning Run
// so no subsystem drifts from the shared "now".
type Clock struct {
	now time.Time
}

// NewClock starts a clock at the given instant (normalized to UTC).
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	return c.now
}

// Weekday returns the simulated day of week.
func (c *Clock) Weekday() time.Weekday {
	return c.now.Weekday()
}

// set moves the clock forward. Attempts to move backward are ignored.
func (c *Clock) set(t time.Time) {
	if t.After(c.now) {
		c.now = t
	}
}

// NextRollover returns the next 06:00 boundary strictly after t.
func NextRollover(t time.Time) time.Time {
	boundary := time.Date(t.Year(), t.Month(), t.Day(), RolloverHour, 0, 0, 0, time.UTC)
	if !boundary.After(t) {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}
