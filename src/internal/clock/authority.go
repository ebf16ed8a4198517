package clock

import (
	"fmt"
	"time"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// ReferenceZone is the single zone all day and week boundaries are computed
// in, for every user, regardless of device time zone. The daily
// reconciliation runs on this zone too.
const ReferenceZone = "America/Chicago"

// Authority owns boundary math in a fixed reference zone. Every component
// that needs "now" or a period boundary goes through one of these.
type Authority struct {
	clock Clock
	loc   *time.Location
}

func NewAuthority(clock Clock, zone string) (*Authority, error) {
	if zone == "" {
		zone = ReferenceZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference zone %s: %w", zone, err)
	}
	return &Authority{clock: clock, loc: loc}, nil
}

// Now returns the current instant projected into the reference zone.
func (a *Authority) Now() time.Time {
	return a.clock.Now().In(a.loc)
}

// DateString renders t as YYYY-MM-DD in the reference zone. This is the
// format DailyResult.ForDate and the edit-failure check compare against.
func (a *Authority) DateString(t time.Time) string {
	return t.In(a.loc).Format("2006-01-02")
}

// StartOfDay returns midnight of t's calendar day in the reference zone.
func (a *Authority) StartOfDay(t time.Time) time.Time {
	t = t.In(a.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

// StartOfWeek returns midnight of the Monday of t's week.
func (a *Authority) StartOfWeek(t time.Time) time.Time {
	t = t.In(a.loc)
	// Monday = 0 ... Sunday = 6
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, a.loc)
}

// SameDay reports whether both instants fall on the same calendar day.
func (a *Authority) SameDay(t1, t2 time.Time) bool {
	return a.StartOfDay(t1).Equal(a.StartOfDay(t2))
}

// SameWeek reports whether both instants fall in the same Monday-anchored week.
func (a *Authority) SameWeek(t1, t2 time.Time) bool {
	return a.StartOfWeek(t1).Equal(a.StartOfWeek(t2))
}

// PeriodStart returns the start of the period instance containing t.
func (a *Authority) PeriodStart(kind domain.PeriodKind, t time.Time) time.Time {
	if kind == domain.PeriodWeekly {
		return a.StartOfWeek(t)
	}
	return a.StartOfDay(t)
}

// SamePeriod reports whether both instants fall in the same period instance.
func (a *Authority) SamePeriod(kind domain.PeriodKind, t1, t2 time.Time) bool {
	return a.PeriodStart(kind, t1).Equal(a.PeriodStart(kind, t2))
}
