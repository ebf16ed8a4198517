package postgres

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"
)

// PostgresRunLocker hands out expiring named locks backed by a table.
// The reconciliation job takes one per date so a scheduler retry cannot
// start a second concurrent run.
type PostgresRunLocker struct {
	db       *sql.DB
	holderID string
}

func NewRunLocker(db *sql.DB) *PostgresRunLocker {
	holderID, err := os.Hostname()
	if err != nil {
		holderID = "unknown-" + time.Now().Format(time.RFC3339)
	}
	return &PostgresRunLocker{
		db:       db,
		holderID: holderID,
	}
}

func (l *PostgresRunLocker) InitSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_locks (
			key VARCHAR(255) PRIMARY KEY,
			holder_id VARCHAR(255) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (l *PostgresRunLocker) TryAcquireLock(ctx context.Context, key string, ttlSeconds int) (bool, error) {
	// Expired locks are cleaned opportunistically on each attempt.
	_, err := l.db.ExecContext(ctx, "DELETE FROM run_locks WHERE key = $1 AND expires_at < NOW()", key)
	if err != nil {
		return false, err
	}

	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO run_locks (key, holder_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, l.holderID, expiresAt)
	if err != nil {
		return false, err
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	// Not inserted: either someone else holds it, or we do and this is
	// a re-acquire extending our own TTL.
	res, err = l.db.ExecContext(ctx, `
		UPDATE run_locks SET expires_at = $3
		WHERE key = $1 AND holder_id = $2
	`, key, l.holderID, expiresAt)
	if err != nil {
		return false, err
	}
	rows, _ = res.RowsAffected()
	return rows > 0, nil
}

func (l *PostgresRunLocker) ReleaseLock(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM run_locks WHERE key = $1 AND holder_id = $2
	`, key, l.holderID)

	if err == nil {
		log.Printf("[RunLocker] Released lock %s", key)
	}
	return err
}
