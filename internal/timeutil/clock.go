// Package timeutil provides a testable clock and conversions from the GPS
// time scales used in LAS files.
package timeutil

import (
	"math"
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// GPSEpoch is the start of GPS time, 1980-01-06T00:00:00 UTC.
var GPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// AdjustedStandardOffset is subtracted from standard GPS time to form the
// adjusted standard GPS time some LAS files store.
const AdjustedStandardOffset = 1e9

const week = 7 * 24 * time.Hour

// GPSWeekTime converts a GPS week number and seconds of week to a time on
// the GPS scale. Leap seconds are not applied, so the result runs ahead of
// UTC by the leap-second count at that date.
func GPSWeekTime(gpsWeek int, secondsOfWeek float64) time.Time {
	return GPSEpoch.Add(time.Duration(gpsWeek) * week).Add(seconds(secondsOfWeek))
}

// AdjustedStandardTime converts adjusted standard GPS time to a time on
// the GPS scale.
func AdjustedStandardTime(adjusted float64) time.Time {
	return GPSEpoch.Add(seconds(adjusted + AdjustedStandardOffset))
}

// seconds converts fractional seconds to a Duration rounded to the microsecond.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}
