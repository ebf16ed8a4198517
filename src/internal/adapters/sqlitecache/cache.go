package sqlitecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// SQLiteCache is the durable per-device cache: tracked-site config and
// per-domain running totals. It is a disposable projection of the
// authoritative document and is wiped wholesale on logout.
type SQLiteCache struct {
	path string
	db   *sql.DB
}

func NewSQLiteCache(path string) *SQLiteCache {
	return &SQLiteCache{path: path}
}

func (c *SQLiteCache) Init() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	c.db = db

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS tracked_sites (
			domain TEXT PRIMARY KEY,
			limit_millis INTEGER NOT NULL DEFAULT 0,
			period_kind TEXT NOT NULL DEFAULT 'daily',
			last_changed TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS time_records (
			domain TEXT PRIMARY KEY,
			accumulated_millis INTEGER NOT NULL DEFAULT 0,
			period_anchor TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to init cache schema: %w", err)
	}
	return nil
}

func (c *SQLiteCache) ReplaceSites(ctx context.Context, sites []domain.TrackedSite) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_sites`); err != nil {
		return err
	}
	for _, site := range sites {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tracked_sites (domain, limit_millis, period_kind, last_changed)
			VALUES (?, ?, ?, ?)
		`, site.Domain, site.LimitMillis, string(site.Period), site.LastChanged.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *SQLiteCache) ListSites(ctx context.Context) ([]domain.TrackedSite, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT domain, limit_millis, period_kind, last_changed
		FROM tracked_sites
		ORDER BY domain
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []domain.TrackedSite{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

func (c *SQLiteCache) GetSite(ctx context.Context, siteDomain string) (*domain.TrackedSite, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT domain, limit_millis, period_kind, last_changed
		FROM tracked_sites
		WHERE domain = ?
	`, siteDomain)

	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (c *SQLiteCache) SaveTimeRecord(ctx context.Context, siteDomain string, rec domain.TimeRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO time_records (domain, accumulated_millis, period_anchor)
		VALUES (?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET
			accumulated_millis = excluded.accumulated_millis,
			period_anchor = excluded.period_anchor;
	`, siteDomain, rec.AccumulatedMillis, rec.PeriodAnchor.Format(time.RFC3339Nano))
	return err
}

func (c *SQLiteCache) GetTimeRecord(ctx context.Context, siteDomain string) (*domain.TimeRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT accumulated_millis, period_anchor
		FROM time_records
		WHERE domain = ?
	`, siteDomain)

	var (
		rec    domain.TimeRecord
		anchor string
	)
	err := row.Scan(&rec.AccumulatedMillis, &anchor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.PeriodAnchor, err = time.Parse(time.RFC3339Nano, anchor); err != nil {
		return nil, fmt.Errorf("corrupt period anchor for %s: %w", siteDomain, err)
	}
	return &rec, nil
}

func (c *SQLiteCache) ListTimeRecords(ctx context.Context) (map[string]domain.TimeRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT domain, accumulated_millis, period_anchor
		FROM time_records
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := map[string]domain.TimeRecord{}
	for rows.Next() {
		var (
			siteDomain string
			rec        domain.TimeRecord
			anchor     string
		)
		if err := rows.Scan(&siteDomain, &rec.AccumulatedMillis, &anchor); err != nil {
			return nil, err
		}
		if rec.PeriodAnchor, err = time.Parse(time.RFC3339Nano, anchor); err != nil {
			return nil, fmt.Errorf("corrupt period anchor for %s: %w", siteDomain, err)
		}
		records[siteDomain] = rec
	}
	return records, rows.Err()
}

func (c *SQLiteCache) ReplaceTimeRecords(ctx context.Context, records map[string]domain.TimeRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_records`); err != nil {
		return err
	}
	for siteDomain, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO time_records (domain, accumulated_millis, period_anchor)
			VALUES (?, ?, ?)
		`, siteDomain, rec.AccumulatedMillis, rec.PeriodAnchor.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear wipes both tables: fresh local slate for whichever account logs
// in next.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM tracked_sites;
		DELETE FROM time_records;
	`)
	return err
}

func (c *SQLiteCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func scanSite(row interface{ Scan(dest ...any) error }) (*domain.TrackedSite, error) {
	var (
		site    domain.TrackedSite
		period  string
		changed string
	)
	if err := row.Scan(&site.Domain, &site.LimitMillis, &period, &changed); err != nil {
		return nil, err
	}
	site.Period = domain.PeriodKind(period)

	parsed, err := time.Parse(time.RFC3339Nano, changed)
	if err != nil {
		return nil, fmt.Errorf("corrupt last_changed for %s: %w", site.Domain, err)
	}
	site.LastChanged = parsed
	return &site, nil
}
