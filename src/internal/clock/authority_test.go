package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timepledge/timepledge/src/internal/domain"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func newAuthority(t *testing.T) *Authority {
	t.Helper()
	a, err := NewAuthority(System(), "")
	require.NoError(t, err)
	return a
}

func TestNewAuthority_UnknownZone(t *testing.T) {
	_, err := NewAuthority(System(), "Not/AZone")
	assert.Error(t, err)
}

func TestSameDay_AcrossMidnight(t *testing.T) {
	a := newAuthority(t)
	loc := chicago(t)

	before := time.Date(2026, 3, 3, 23, 59, 0, 0, loc)
	after := time.Date(2026, 3, 4, 0, 1, 0, 0, loc)

	assert.True(t, a.SameDay(before, before.Add(-time.Hour)))
	assert.False(t, a.SameDay(before, after))
}

func TestSameDay_UsesReferenceZoneNotUTC(t *testing.T) {
	a := newAuthority(t)

	// 04:00 UTC and 06:00 UTC straddle midnight UTC-wise on some days,
	// but both are late evening of the SAME day in Chicago (UTC-6).
	t1 := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC) // 17:00 Jan 10 Chicago
	t2 := time.Date(2026, 1, 11, 3, 0, 0, 0, time.UTC)  // 21:00 Jan 10 Chicago

	assert.True(t, a.SameDay(t1, t2))
}

func TestSameWeek_MondayAnchored(t *testing.T) {
	a := newAuthority(t)
	loc := chicago(t)

	// 2026-03-01 is a Sunday, 2026-03-02 a Monday.
	sunday := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	monday := time.Date(2026, 3, 2, 0, 30, 0, 0, loc)
	saturday := time.Date(2026, 3, 7, 23, 0, 0, 0, loc)

	assert.False(t, a.SameWeek(sunday, monday), "Sunday belongs to the prior Monday-anchored week")
	assert.True(t, a.SameWeek(monday, saturday))
}

func TestStartOfWeek(t *testing.T) {
	a := newAuthority(t)
	loc := chicago(t)

	thursday := time.Date(2026, 3, 5, 15, 30, 0, 0, loc)
	start := a.StartOfWeek(thursday)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestDateString(t *testing.T) {
	a := newAuthority(t)

	// 03:00 UTC on Jul 2 is still Jul 1 in Chicago.
	at := time.Date(2026, 7, 2, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-01", a.DateString(at))
}

func TestPeriodStart_ByKind(t *testing.T) {
	a := newAuthority(t)
	loc := chicago(t)

	thursday := time.Date(2026, 3, 5, 15, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, loc), a.PeriodStart(domain.PeriodDaily, thursday))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), a.PeriodStart(domain.PeriodWeekly, thursday))
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f := NewFixed(start)

	assert.Equal(t, start, f.Now())
	f.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), f.Now())
}
