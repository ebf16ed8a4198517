package sqlitecache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timepledge/timepledge/src/internal/domain"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	cache := NewSQLiteCache(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, cache.Init())
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestSitesRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	changed := time.Date(2026, time.July, 10, 14, 30, 0, 0, time.UTC)
	sites := []domain.TrackedSite{
		{Domain: "youtube.com", LimitMillis: 60000, Period: domain.PeriodDaily, LastChanged: changed},
		{Domain: "reddit.com", LimitMillis: 0, Period: domain.PeriodWeekly, LastChanged: changed},
	}
	require.NoError(t, cache.ReplaceSites(ctx, sites))

	got, err := cache.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// ListSites orders by domain.
	assert.Equal(t, "reddit.com", got[0].Domain)
	assert.Equal(t, domain.PeriodWeekly, got[0].Period)
	assert.Equal(t, "youtube.com", got[1].Domain)
	assert.Equal(t, int64(60000), got[1].LimitMillis)
	assert.True(t, got[1].LastChanged.Equal(changed))

	site, err := cache.GetSite(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, int64(60000), site.LimitMillis)

	missing, err := cache.GetSite(ctx, "unknown.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReplaceSites_IsWholesale(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, cache.ReplaceSites(ctx, []domain.TrackedSite{
		{Domain: "a.com", Period: domain.PeriodDaily, LastChanged: now},
		{Domain: "b.com", Period: domain.PeriodDaily, LastChanged: now},
	}))
	require.NoError(t, cache.ReplaceSites(ctx, []domain.TrackedSite{
		{Domain: "c.com", Period: domain.PeriodDaily, LastChanged: now},
	}))

	got, err := cache.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c.com", got[0].Domain)
}

func TestTimeRecordsRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	anchor := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cache.SaveTimeRecord(ctx, "youtube.com", domain.TimeRecord{
		AccumulatedMillis: 42000,
		PeriodAnchor:      anchor,
	}))

	rec, err := cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(42000), rec.AccumulatedMillis)
	assert.True(t, rec.PeriodAnchor.Equal(anchor))

	// Upsert replaces in place.
	require.NoError(t, cache.SaveTimeRecord(ctx, "youtube.com", domain.TimeRecord{
		AccumulatedMillis: 50000,
		PeriodAnchor:      anchor,
	}))
	rec, err = cache.GetTimeRecord(ctx, "youtube.com")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), rec.AccumulatedMillis)

	missing, err := cache.GetTimeRecord(ctx, "unknown.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	records, err := cache.ListTimeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(50000), records["youtube.com"].AccumulatedMillis)
}

func TestReplaceTimeRecords(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	anchor := time.Now()
	require.NoError(t, cache.SaveTimeRecord(ctx, "old.com", domain.TimeRecord{AccumulatedMillis: 1, PeriodAnchor: anchor}))

	require.NoError(t, cache.ReplaceTimeRecords(ctx, map[string]domain.TimeRecord{
		"new.com": {AccumulatedMillis: 2, PeriodAnchor: anchor},
	}))

	records, err := cache.ListTimeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records["new.com"].AccumulatedMillis)
}

func TestClear_WipesBothTables(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, cache.ReplaceSites(ctx, []domain.TrackedSite{
		{Domain: "a.com", Period: domain.PeriodDaily, LastChanged: now},
	}))
	require.NoError(t, cache.SaveTimeRecord(ctx, "a.com", domain.TimeRecord{AccumulatedMillis: 1, PeriodAnchor: now}))

	require.NoError(t, cache.Clear(ctx))

	sites, err := cache.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)

	records, err := cache.ListTimeRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInit_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "cache.db")
	cache := NewSQLiteCache(path)
	require.NoError(t, cache.Init())
	defer cache.Close()

	require.NoError(t, cache.SaveTimeRecord(context.Background(), "a.com", domain.TimeRecord{
		AccumulatedMillis: 1,
		PeriodAnchor:      time.Now(),
	}))
}
