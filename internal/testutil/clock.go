// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for tests. Its Now method can be passed
// wherever a func() time.Time is expected.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Date creates a clock stopped at midday UTC of the given day.
func Date(year int, month time.Month, day int) *Clock {
	return NewClock(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
