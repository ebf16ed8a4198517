package memory

import (
	"context"
	"sync"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// InMemoryLocalCache backs tests and dev mode. Same contract as the
// sqlite cache: wholesale site replacement, per-domain time records.
type InMemoryLocalCache struct {
	mu      sync.RWMutex
	sites   []domain.TrackedSite
	records map[string]domain.TimeRecord
}

func NewLocalCache() *InMemoryLocalCache {
	return &InMemoryLocalCache{
		records: make(map[string]domain.TimeRecord),
	}
}

func (c *InMemoryLocalCache) ReplaceSites(ctx context.Context, sites []domain.TrackedSite) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sites = append([]domain.TrackedSite(nil), sites...)
	return nil
}

func (c *InMemoryLocalCache) ListSites(ctx context.Context) ([]domain.TrackedSite, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]domain.TrackedSite(nil), c.sites...), nil
}

func (c *InMemoryLocalCache) GetSite(ctx context.Context, siteDomain string) (*domain.TrackedSite, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, site := range c.sites {
		if site.Domain == siteDomain {
			s := site
			return &s, nil
		}
	}
	return nil, nil
}

func (c *InMemoryLocalCache) SaveTimeRecord(ctx context.Context, siteDomain string, rec domain.TimeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[siteDomain] = rec
	return nil
}

func (c *InMemoryLocalCache) GetTimeRecord(ctx context.Context, siteDomain string) (*domain.TimeRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[siteDomain]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *InMemoryLocalCache) ListTimeRecords(ctx context.Context) (map[string]domain.TimeRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.TimeRecord, len(c.records))
	for k, v := range c.records {
		out[k] = v
	}
	return out, nil
}

func (c *InMemoryLocalCache) ReplaceTimeRecords(ctx context.Context, records map[string]domain.TimeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]domain.TimeRecord, len(records))
	for k, v := range records {
		c.records[k] = v
	}
	return nil
}

func (c *InMemoryLocalCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sites = nil
	c.records = make(map[string]domain.TimeRecord)
	return nil
}

func (c *InMemoryLocalCache) Close() error {
	return nil
}
