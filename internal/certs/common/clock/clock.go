// Package clock provides the time source used to judge certificate validity
// windows and to stamp override records.
package clock

import "time"

// Clock supplies "now" for certificate validity checks. Expiry and
// not-yet-valid flags are computed against it rather than time.Now so a
// verifier can be pinned to a fixed moment when replaying a decision.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable clock for tests.
type MockClock struct {
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the clock forward by d, for example past a certificate's
// NotAfter.
func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}

// Set pins the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.CurrentTime = t
}
