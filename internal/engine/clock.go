package engine

import "time"

// Clock supplies wall-clock time for run bookkeeping. Traversal itself never
// reads the clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
