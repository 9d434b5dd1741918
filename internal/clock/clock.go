// Package clock abstracts the current time so freshness checks can be
// tested deterministically.
package clock

import "time"

// Clock provides time operations.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed implements Clock with a settable time for tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance moves the fixed time forward.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
