package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timepledge/timepledge/src/internal/adapters/memory"
	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/domain"
)

func newTestTracker(t *testing.T) (*SessionTracker, *memory.InMemoryLocalCache, *memory.InMemorySessionStore) {
	t.Helper()
	authority, err := clock.NewAuthority(clock.System(), "")
	require.NoError(t, err)
	cache := memory.NewLocalCache()
	sessions := memory.NewSessionStore()
	return NewSessionTracker(cache, sessions, authority), cache, sessions
}

// chicago returns an instant at the given local wall time in the reference zone.
func chicago(t *testing.T, y int, m time.Month, d, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(clock.ReferenceZone)
	require.NoError(t, err)
	return time.Date(y, m, d, hour, min, 0, 0, loc)
}

func seedSite(t *testing.T, cache *memory.InMemoryLocalCache, siteDomain string, limitMillis int64, period domain.PeriodKind) {
	t.Helper()
	sites, err := cache.ListSites(context.Background())
	require.NoError(t, err)
	sites = append(sites, domain.TrackedSite{
		Domain:      siteDomain,
		LimitMillis: limitMillis,
		Period:      period,
	})
	require.NoError(t, cache.ReplaceSites(context.Background(), sites))
}

func TestFocusChange_OpensSessionForTrackedSite(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	at := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", at))

	active := sessions.Get()
	require.NotNil(t, active)
	assert.Equal(t, 7, active.TabID)
	assert.Equal(t, "youtube.com", active.Domain)
	assert.True(t, active.StartedAt.Equal(at))
}

func TestFocusChange_UntrackedSiteOpensNothing(t *testing.T) {
	tr, _, sessions := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.OnFocusChange(ctx, 7, "news.ycombinator.com", time.Now()))
	assert.Nil(t, sessions.Get())
}

func TestFocusChange_ClosesAndAccumulates(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))

	// Switch to an untracked tab 90 seconds later.
	later := start.Add(90 * time.Second)
	require.NoError(t, tr.OnFocusChange(ctx, 8, "example.org", later))

	assert.Nil(t, sessions.Get())
	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(90000), rec.AccumulatedMillis)
}

func TestFocusChange_EmptyDomainJustCloses(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))
	require.NoError(t, tr.OnFocusChange(ctx, 7, "", start.Add(30*time.Second)))

	assert.Nil(t, sessions.Get())
	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(30000), rec.AccumulatedMillis)
}

func TestTabClosed_OnlyOwningTabCloses(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))

	// A different tab closing is a no-op.
	require.NoError(t, tr.OnTabClosed(ctx, 99, start.Add(10*time.Second)))
	require.NotNil(t, sessions.Get())

	// The owning tab closing ends the session.
	require.NoError(t, tr.OnTabClosed(ctx, 7, start.Add(20*time.Second)))
	assert.Nil(t, sessions.Get())

	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(20000), rec.AccumulatedMillis)
}

func TestCloseSession_NegativeElapsedDiscarded(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))

	// Closing with a timestamp before the start must never subtract time.
	require.NoError(t, tr.OnTabClosed(ctx, 7, start.Add(-5*time.Second)))
	assert.Nil(t, sessions.Get())

	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCloseSession_SiteRemovedMidSessionDropsDelta(t *testing.T) {
	tr, cache, _ := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))

	require.NoError(t, cache.ReplaceSites(ctx, nil))
	require.NoError(t, tr.OnTabClosed(ctx, 7, start.Add(time.Minute)))

	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCloseSession_DailyRolloverResetsBeforeAdding(t *testing.T) {
	tr, cache, _ := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	// Yesterday's record holds 50 minutes.
	yesterday := chicago(t, 2026, time.July, 9, 22, 0)
	require.NoError(t, cache.SaveTimeRecord(ctx, "youtube.com", domain.TimeRecord{
		AccumulatedMillis: 50 * 60 * 1000,
		PeriodAnchor:      yesterday,
	}))

	// A session that closes the next day must land on a zeroed total.
	start := chicago(t, 2026, time.July, 10, 9, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))
	require.NoError(t, tr.OnTabClosed(ctx, 7, start.Add(2*time.Minute)))

	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2*60*1000), rec.AccumulatedMillis)
	assert.True(t, rec.PeriodAnchor.Equal(chicago(t, 2026, time.July, 10, 0, 0)))
}

func TestCloseSession_WeeklySiteSurvivesDayBoundary(t *testing.T) {
	tr, cache, _ := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "reddit.com", 0, domain.PeriodWeekly)

	// Tuesday's record carries into Wednesday for a weekly site.
	tuesday := chicago(t, 2026, time.July, 7, 20, 0)
	require.NoError(t, cache.SaveTimeRecord(ctx, "reddit.com", domain.TimeRecord{
		AccumulatedMillis: 30 * 60 * 1000,
		PeriodAnchor:      tuesday,
	}))

	start := chicago(t, 2026, time.July, 8, 9, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 3, "reddit.com", start))
	require.NoError(t, tr.OnTabClosed(ctx, 3, start.Add(time.Minute)))

	rec, err := cache.GetTimeRecord(ctx, "reddit.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(31*60*1000), rec.AccumulatedMillis)

	// But crossing into the next Monday resets it.
	monday := chicago(t, 2026, time.July, 13, 9, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 3, "reddit.com", monday))
	require.NoError(t, tr.OnTabClosed(ctx, 3, monday.Add(time.Minute)))

	rec, err = cache.GetTimeRecord(ctx, "reddit.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(60*1000), rec.AccumulatedMillis)
}

func TestRecheckFocus_AlreadyTrackingIsNoOp(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	start := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", start))

	// Re-check later must keep the original start time.
	require.NoError(t, tr.RecheckFocus(ctx, 7, "youtube.com", start.Add(time.Minute)))
	active := sessions.Get()
	require.NotNil(t, active)
	assert.True(t, active.StartedAt.Equal(start))
}

func TestRecheckFocus_NewlySyncedSiteStartsTracking(t *testing.T) {
	tr, cache, sessions := newTestTracker(t)
	ctx := context.Background()

	at := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", at))
	require.Nil(t, sessions.Get())

	// The site arrives via sync-down; the re-check picks it up.
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)
	require.NoError(t, tr.RecheckFocus(ctx, 7, "youtube.com", at.Add(time.Second)))
	require.NotNil(t, sessions.Get())
}

func TestSiteStatuses_LiveAugmentationAndOverLimit(t *testing.T) {
	tr, cache, _ := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)
	seedSite(t, cache, "art.example.com", 0, domain.PeriodDaily)

	now := chicago(t, 2026, time.July, 10, 14, 0)
	require.NoError(t, cache.SaveTimeRecord(ctx, "youtube.com", domain.TimeRecord{
		AccumulatedMillis: 50000,
		PeriodAnchor:      now.Add(-time.Hour),
	}))
	require.NoError(t, tr.OnFocusChange(ctx, 7, "youtube.com", now.Add(-20*time.Second)))

	statuses, err := tr.SiteStatuses(ctx, now)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	// Lexicographic order.
	assert.Equal(t, "art.example.com", statuses[0].Domain)
	assert.Equal(t, "youtube.com", statuses[1].Domain)

	yt := statuses[1]
	assert.Equal(t, int64(50000), yt.AccumulatedMillis)
	assert.Equal(t, int64(20000), yt.LiveSessionMillis)
	// 50s stored + 20s live crosses the 60s limit.
	assert.True(t, yt.OverLimit)

	// A zero limit never flags over-limit.
	assert.False(t, statuses[0].OverLimit)
}

func TestSiteStatuses_StalePeriodDisplaysZero(t *testing.T) {
	tr, cache, _ := newTestTracker(t)
	ctx := context.Background()
	seedSite(t, cache, "youtube.com", 60000, domain.PeriodDaily)

	require.NoError(t, cache.SaveTimeRecord(ctx, "youtube.com", domain.TimeRecord{
		AccumulatedMillis: 90000,
		PeriodAnchor:      chicago(t, 2026, time.July, 9, 22, 0),
	}))

	statuses, err := tr.SiteStatuses(ctx, chicago(t, 2026, time.July, 10, 9, 0))
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Zero(t, statuses[0].AccumulatedMillis)
	assert.False(t, statuses[0].OverLimit)
}
