// Package clock abstracts wall-clock reads so time-dependent rules (same-day
// freeze, past-slot closure, FIFO stamps) stay deterministic under test.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}
