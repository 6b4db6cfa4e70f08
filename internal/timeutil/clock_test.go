package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2010, time.June, 21, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestClockInterface(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = NewMockClock(time.Time{})
}

func TestGPSWeekTime(t *testing.T) {
	tests := []struct {
		name    string
		week    int
		seconds float64
		want    time.Time
	}{
		{"epoch", 0, 0, GPSEpoch},
		{"one week", 1, 0, time.Date(1980, time.January, 13, 0, 0, 0, 0, time.UTC)},
		{"week 1589", 1589, 86400.25, time.Date(2010, time.June, 21, 0, 0, 0, 250000000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GPSWeekTime(tt.week, tt.seconds)
			if !got.Equal(tt.want) {
				t.Errorf("GPSWeekTime(%d, %v) = %v, want %v", tt.week, tt.seconds, got, tt.want)
			}
		})
	}
}

func TestAdjustedStandardTime(t *testing.T) {
	got := AdjustedStandardTime(-1e9)
	if !got.Equal(GPSEpoch) {
		t.Errorf("AdjustedStandardTime(-1e9) = %v, want epoch", got)
	}

	got = AdjustedStandardTime(0)
	want := GPSEpoch.Add(1e9 * time.Second)
	if !got.Equal(want) {
		t.Errorf("AdjustedStandardTime(0) = %v, want %v", got, want)
	}
}
