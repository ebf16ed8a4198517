package ports

import (
	"context"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// RemoteStore is the device-side view of the authoritative store. Every
// write except Overwrite is a partial-field merge; Overwrite exists only
// for account creation.
type RemoteStore interface {
	Get(ctx context.Context, userID string) (*domain.UserDocument, error)
	MergeWrite(ctx context.Context, userID string, fields domain.PartialFields) error
	Overwrite(ctx context.Context, userID string, doc *domain.UserDocument) error
}

// TransactionalStore is the server-side view: everything the device sees,
// plus the transactional read-modify-write that guards financial mutations
// and the user scan the reconciliation job iterates.
//
// The update fn receives the current document and returns the fields to
// merge within the same transaction. Returning an empty PartialFields
// commits nothing (used as a per-user skip).
type TransactionalStore interface {
	RemoteStore
	TransactionalUpdate(ctx context.Context, userID string, fn func(doc *domain.UserDocument) (domain.PartialFields, error)) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// LocalCache is the durable per-device store: tracked-site config plus
// per-domain running totals. It is a rebuildable projection of the
// authoritative document and is wiped wholesale on logout.
type LocalCache interface {
	ReplaceSites(ctx context.Context, sites []domain.TrackedSite) error
	ListSites(ctx context.Context) ([]domain.TrackedSite, error)
	GetSite(ctx context.Context, siteDomain string) (*domain.TrackedSite, error)

	SaveTimeRecord(ctx context.Context, siteDomain string, rec domain.TimeRecord) error
	GetTimeRecord(ctx context.Context, siteDomain string) (*domain.TimeRecord, error)
	ListTimeRecords(ctx context.Context) (map[string]domain.TimeRecord, error)
	ReplaceTimeRecords(ctx context.Context, records map[string]domain.TimeRecord) error

	Clear(ctx context.Context) error
	Close() error
}

// SessionStore holds the at-most-one ActiveSession. Implementations must
// be process-scoped: the marker must not survive a restart.
type SessionStore interface {
	Get() *domain.ActiveSession
	Set(session domain.ActiveSession)
	Clear()
}

// Identity verifies a presented token and reports who it belongs to.
type Identity interface {
	Verify(ctx context.Context, rawToken string) (*domain.Principal, error)
}

// RunLocker hands out expiring named locks so a scheduled job runs once
// even when the scheduler fires twice.
type RunLocker interface {
	TryAcquireLock(ctx context.Context, key string, ttlSeconds int) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}
