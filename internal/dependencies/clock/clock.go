package clock

import "time"

// Clock is the time source for cooldowns, block timestamps and token expiry
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// New creates a SystemClock
func New() *SystemClock {
	return &SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Unix returns the clock's current time in whole seconds, the resolution of block timestamps
func Unix(c Clock) uint64 {
	return uint64(c.Now().Unix())
}
