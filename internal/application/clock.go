package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, selalu UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns the same instant on every call, for tests.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
