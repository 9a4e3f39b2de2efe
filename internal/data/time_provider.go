package data

import "time"

// TimeProvider abstracts the clock so services can be tested against a
// frozen time.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider is the production clock.
type RealTimeProvider struct{}

// Now returns the current wall-clock time.
func (RealTimeProvider) Now() time.Time { return time.Now() }
