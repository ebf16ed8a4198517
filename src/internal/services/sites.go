package services

import (
	"context"
	"fmt"
	"log"

	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
	"github.com/timepledge/timepledge/src/internal/syncengine"
)

// SiteService owns tracked-list mutations: normalization, validation,
// duplicate rejection, and the synchronous cloud push with edit logging.
// Edits are never deferred to the periodic timer because the nightly
// judgment needs same-day edit history present at evaluation time.
type SiteService struct {
	cache     ports.LocalCache
	engine    *syncengine.Engine
	authority *clock.Authority
}

func NewSiteService(cache ports.LocalCache, engine *syncengine.Engine, authority *clock.Authority) *SiteService {
	return &SiteService{
		cache:     cache,
		engine:    engine,
		authority: authority,
	}
}

// Add normalizes rawDomain, rejects duplicates, persists locally and
// pushes synchronously when authenticated (sess may be nil when offline).
func (s *SiteService) Add(ctx context.Context, sess *syncengine.Session, rawDomain string, limitMillis int64, period domain.PeriodKind) (*domain.TrackedSite, error) {
	normalized, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return nil, err
	}
	if limitMillis < 0 {
		return nil, domain.ErrInvalidLimit
	}
	if period == "" {
		period = domain.PeriodDaily
	}
	if !period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}

	sites, err := s.cache.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	if domain.FindSite(sites, normalized) != nil {
		return nil, domain.ErrDuplicateSite
	}

	site := domain.TrackedSite{
		Domain:      normalized,
		LimitMillis: limitMillis,
		Period:      period,
		LastChanged: s.authority.Now(),
	}
	sites = append(sites, site)

	if err := s.persist(ctx, sess, sites); err != nil {
		return nil, err
	}
	log.Printf("[Sites] Added %s (limit %dms, %s)", normalized, limitMillis, period)
	return &site, nil
}

// Edit replaces a site's limit and period. The domain itself is identity
// and cannot change.
func (s *SiteService) Edit(ctx context.Context, sess *syncengine.Session, siteDomain string, limitMillis int64, period domain.PeriodKind) (*domain.TrackedSite, error) {
	if limitMillis < 0 {
		return nil, domain.ErrInvalidLimit
	}
	if period == "" {
		period = domain.PeriodDaily
	}
	if !period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}

	sites, err := s.cache.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	site := domain.FindSite(sites, siteDomain)
	if site == nil {
		return nil, domain.ErrSiteNotTracked
	}

	site.LimitMillis = limitMillis
	site.Period = period
	site.LastChanged = s.authority.Now()

	if err := s.persist(ctx, sess, sites); err != nil {
		return nil, err
	}
	log.Printf("[Sites] Edited %s (limit %dms, %s)", siteDomain, limitMillis, period)
	return site, nil
}

// Remove drops a site from the tracked list. Its TimeRecord stays in the
// cache until the next reconciliation wipe; orphaned records are ignored
// by the tracker and the judgment alike.
func (s *SiteService) Remove(ctx context.Context, sess *syncengine.Session, siteDomain string) error {
	sites, err := s.cache.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if domain.FindSite(sites, siteDomain) == nil {
		return domain.ErrSiteNotTracked
	}

	kept := make([]domain.TrackedSite, 0, len(sites)-1)
	for _, site := range sites {
		if site.Domain != siteDomain {
			kept = append(kept, site)
		}
	}

	if err := s.persist(ctx, sess, kept); err != nil {
		return err
	}
	log.Printf("[Sites] Removed %s", siteDomain)
	return nil
}

// ClearTracking zeroes all local time totals and pushes the empty field.
func (s *SiteService) ClearTracking(ctx context.Context, sess *syncengine.Session) error {
	empty := map[string]domain.TimeRecord{}
	if err := s.cache.ReplaceTimeRecords(ctx, empty); err != nil {
		return fmt.Errorf("failed to clear time records: %w", err)
	}
	if sess != nil {
		if err := s.engine.PushTracking(ctx, sess, empty); err != nil {
			return err
		}
	}
	log.Println("[Sites] Cleared tracking data")
	return nil
}

func (s *SiteService) persist(ctx context.Context, sess *syncengine.Session, sites []domain.TrackedSite) error {
	if err := s.cache.ReplaceSites(ctx, sites); err != nil {
		return fmt.Errorf("failed to save sites: %w", err)
	}
	if sess == nil {
		return nil
	}
	entry := domain.EditLogEntry{Edited: true, At: s.authority.Now()}
	return s.engine.PushSites(ctx, sess, sites, entry)
}
