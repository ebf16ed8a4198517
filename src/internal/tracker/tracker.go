package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
)

// SessionTracker converts focus-change and tab-close signals into
// TimeRecord deltas. It is a state transition over whatever the cache
// holds: it never retries I/O itself, the next sync trigger does.
type SessionTracker struct {
	cache     ports.LocalCache
	sessions  ports.SessionStore
	authority *clock.Authority
}

func NewSessionTracker(cache ports.LocalCache, sessions ports.SessionStore, authority *clock.Authority) *SessionTracker {
	return &SessionTracker{
		cache:     cache,
		sessions:  sessions,
		authority: authority,
	}
}

// OnFocusChange closes any open session, then opens a new one if the newly
// focused domain is tracked. Untracked domains get no session at all.
// An empty domain (browser chrome, new tab page) just closes.
func (t *SessionTracker) OnFocusChange(ctx context.Context, tabID int, siteDomain string, at time.Time) error {
	if err := t.closeActiveSession(ctx, at); err != nil {
		return err
	}

	if siteDomain == "" {
		return nil
	}

	site, err := t.cache.GetSite(ctx, siteDomain)
	if err != nil {
		return fmt.Errorf("failed to look up site %s: %w", siteDomain, err)
	}
	if site == nil {
		return nil
	}

	t.sessions.Set(domain.ActiveSession{
		TabID:     tabID,
		Domain:    siteDomain,
		StartedAt: at,
	})
	log.Printf("[Tracker] Started tracking %s (tab %d)", siteDomain, tabID)
	return nil
}

// OnTabClosed closes the active session only if the closing tab is the one
// that owns it. Closing any other tab changes nothing.
func (t *SessionTracker) OnTabClosed(ctx context.Context, tabID int, at time.Time) error {
	active := t.sessions.Get()
	if active == nil || active.TabID != tabID {
		return nil
	}
	return t.closeActiveSession(ctx, at)
}

// ActiveSession returns the currently open session, or nil.
func (t *SessionTracker) ActiveSession() *domain.ActiveSession {
	return t.sessions.Get()
}

// RecheckFocus re-evaluates the last known focused domain against the
// current site list. Called after a sync-down so a site tracked from
// another device starts accruing immediately.
func (t *SessionTracker) RecheckFocus(ctx context.Context, tabID int, siteDomain string, at time.Time) error {
	if active := t.sessions.Get(); active != nil && active.Domain == siteDomain {
		return nil // already tracking it
	}
	return t.OnFocusChange(ctx, tabID, siteDomain, at)
}

func (t *SessionTracker) closeActiveSession(ctx context.Context, at time.Time) error {
	active := t.sessions.Get()
	if active == nil {
		return nil
	}
	t.sessions.Clear()

	elapsed := at.Sub(active.StartedAt)
	if elapsed <= 0 {
		// Clock skew or suspend artifact. Never subtract.
		return nil
	}
	return t.applyElapsed(ctx, active.Domain, elapsed, at)
}

// applyElapsed folds a closed session's duration into the domain's
// TimeRecord, zeroing the total first if a period boundary was crossed.
// Time earned in the new period never merges with the stale total.
func (t *SessionTracker) applyElapsed(ctx context.Context, siteDomain string, elapsed time.Duration, now time.Time) error {
	site, err := t.cache.GetSite(ctx, siteDomain)
	if err != nil {
		return fmt.Errorf("failed to look up site %s: %w", siteDomain, err)
	}
	if site == nil {
		// Site was removed while the session was open. Drop the delta.
		return nil
	}

	rec, err := t.cache.GetTimeRecord(ctx, siteDomain)
	if err != nil {
		return fmt.Errorf("failed to load time record for %s: %w", siteDomain, err)
	}
	if rec == nil {
		rec = &domain.TimeRecord{PeriodAnchor: now}
	}

	if !t.authority.SamePeriod(site.Period, rec.PeriodAnchor, now) {
		log.Printf("[Tracker] Period rollover for %s (%s), resetting total", siteDomain, site.Period)
		rec.AccumulatedMillis = 0
		rec.PeriodAnchor = t.authority.PeriodStart(site.Period, now)
	}

	rec.AccumulatedMillis += elapsed.Milliseconds()

	if err := t.cache.SaveTimeRecord(ctx, siteDomain, *rec); err != nil {
		return fmt.Errorf("failed to save time record for %s: %w", siteDomain, err)
	}
	log.Printf("[Tracker] Logged %ds for %s (total %ds)",
		int(elapsed.Seconds()), siteDomain, rec.AccumulatedMillis/1000)
	return nil
}
