package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_OnlySetFields(t *testing.T) {
	doc := NewUserDocument("user@example.com", time.Now())
	doc.WalletBalanceCents = 500
	doc.SelectedCharity = "red-cross"

	newSites := []TrackedSite{{Domain: "youtube.com", LimitMillis: 60000, Period: PeriodDaily}}
	doc.Apply(PartialFields{Sites: &newSites})

	assert.Equal(t, newSites, doc.Sites)
	// Untouched fields survive
	assert.Equal(t, int64(500), doc.WalletBalanceCents)
	assert.Equal(t, "red-cross", doc.SelectedCharity)
}

func TestApply_ReplacesWholeField(t *testing.T) {
	doc := NewUserDocument("user@example.com", time.Now())
	doc.Tracking = map[string]TimeRecord{
		"a.com": {AccumulatedMillis: 100},
		"b.com": {AccumulatedMillis: 200},
	}

	// A merge of the tracking field is last-write-wins for the whole
	// map, not a per-key union.
	incoming := map[string]TimeRecord{"c.com": {AccumulatedMillis: 300}}
	doc.Apply(PartialFields{Tracking: &incoming})

	require.Len(t, doc.Tracking, 1)
	assert.Equal(t, int64(300), doc.Tracking["c.com"].AccumulatedMillis)
}

func TestPartialFields_IsEmpty(t *testing.T) {
	assert.True(t, PartialFields{}.IsEmpty())

	zero := int64(0)
	assert.False(t, PartialFields{WalletBalanceCents: &zero}.IsEmpty())
}

func TestClone_Independent(t *testing.T) {
	doc := NewUserDocument("user@example.com", time.Now())
	doc.Sites = []TrackedSite{{Domain: "a.com"}}
	doc.Tracking["a.com"] = TimeRecord{AccumulatedMillis: 10}
	doc.DailyResult = &DailyResult{ForDate: "2026-01-01", Status: StatusSuccess}

	clone := doc.Clone()
	clone.Sites[0].Domain = "b.com"
	clone.Tracking["a.com"] = TimeRecord{AccumulatedMillis: 99}
	clone.DailyResult.Seen = true

	assert.Equal(t, "a.com", doc.Sites[0].Domain)
	assert.Equal(t, int64(10), doc.Tracking["a.com"].AccumulatedMillis)
	assert.False(t, doc.DailyResult.Seen)
}

func TestNewUserDocument_Defaults(t *testing.T) {
	now := time.Now()
	doc := NewUserDocument("new@example.com", now)

	assert.Equal(t, "new@example.com", doc.Email)
	assert.Empty(t, doc.Sites)
	assert.Empty(t, doc.Tracking)
	assert.Zero(t, doc.WalletBalanceCents)
	assert.Equal(t, "none", doc.SelectedCharity)
	// Pre-seen so the first app-open shows no phantom notification
	require.NotNil(t, doc.DailyResult)
	assert.True(t, doc.DailyResult.Seen)
}
