package tracker

import (
	"context"
	"sort"
	"time"
)

// SiteStatus is a tracked site plus its accumulated time, augmented with
// the open session's running elapsed so displayed totals tick live.
type SiteStatus struct {
	Domain            string    `json:"domain"`
	LimitMillis       int64     `json:"limitMillis"`
	Period            string    `json:"period"`
	AccumulatedMillis int64     `json:"accumulatedMillis"`
	LiveSessionMillis int64     `json:"liveSessionMillis"`
	OverLimit         bool      `json:"overLimit"`
	LastChanged       time.Time `json:"lastChanged"`
}

// SiteStatuses lists every tracked site with live-elapsed augmentation,
// ordered lexicographically by domain.
func (t *SessionTracker) SiteStatuses(ctx context.Context, now time.Time) ([]SiteStatus, error) {
	sites, err := t.cache.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	records, err := t.cache.ListTimeRecords(ctx)
	if err != nil {
		return nil, err
	}
	active := t.sessions.Get()

	statuses := make([]SiteStatus, 0, len(sites))
	for _, site := range sites {
		st := SiteStatus{
			Domain:      site.Domain,
			LimitMillis: site.LimitMillis,
			Period:      string(site.Period),
			LastChanged: site.LastChanged,
		}

		if rec, ok := records[site.Domain]; ok {
			// A stale record from a previous period displays as zero;
			// the stored total is only reset when the next delta lands.
			if t.authority.SamePeriod(site.Period, rec.PeriodAnchor, now) {
				st.AccumulatedMillis = rec.AccumulatedMillis
			}
		}

		if active != nil && active.Domain == site.Domain {
			if live := now.Sub(active.StartedAt); live > 0 {
				st.LiveSessionMillis = live.Milliseconds()
			}
		}

		total := st.AccumulatedMillis + st.LiveSessionMillis
		st.OverLimit = site.LimitMillis > 0 && total > site.LimitMillis

		statuses = append(statuses, st)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Domain < statuses[j].Domain
	})
	return statuses, nil
}
