package clock

import "time"

// Clock supplies "now". The system clock is used in production; tests use
// Fixed to drive boundary crossings deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a manually-advanced clock for tests.
type Fixed struct {
	t time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (f *Fixed) Now() time.Time { return f.t }

func (f *Fixed) Set(t time.Time) { f.t = t }

// Advance moves the clock forward and returns the new now.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.t = f.t.Add(d)
	return f.t
}
