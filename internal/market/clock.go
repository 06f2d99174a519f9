package market

import (
	"fmt"
	"time"
)

// Regular session bounds: open at or after 09:30, closed at 16:00 sharp.
// No holiday calendar is consulted.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// Clock answers whether the market is open at a point in time, evaluated in
// the exchange's timezone. It is pure apart from the injected time source,
// which tests override.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock builds a clock for the given IANA timezone, e.g.
// "America/New_York". An empty timezone falls back to the process-local one.
func NewClock(timezone string) (*Clock, error) {
	if timezone == "" {
		return &Clock{loc: time.Local, now: time.Now}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt builds a clock with a fixed time source, for tests.
func NewClockAt(timezone string, now func() time.Time) (*Clock, error) {
	c, err := NewClock(timezone)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// Now returns the current time from the clock's source.
func (c *Clock) Now() time.Time {
	return c.now()
}

// IsOpen reports whether the market is open at t: weekdays from 09:30
// inclusive until 16:00 exclusive, exchange time.
func (c *Clock) IsOpen(t time.Time) bool {
	t = t.In(c.loc)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= openHour*60+openMinute && minutes < closeHour*60+closeMinute
}

// IsOpenNow reports market state at the clock's current time.
func (c *Clock) IsOpenNow() bool {
	return c.IsOpen(c.now())
}
