package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
)

// Engine keeps the local cache and the authoritative store convergent.
// It is the single point where store errors surface: every trigger either
// clears or records the sync status, and a failed trigger is simply
// retried by whichever trigger fires next.
//
// All pushes from one device go through pushMu, so two pushes of the same
// field from this device queue rather than interleave. Cross-device races
// resolve last-write-wins per field.
type Engine struct {
	cache     ports.LocalCache
	remote    ports.RemoteStore
	authority *clock.Authority

	pushMu sync.Mutex

	statusMu sync.Mutex
	status   Status
}

// Status is the user-visible sync state.
type Status struct {
	LastSyncAt time.Time `json:"lastSyncAt"`
	LastError  string    `json:"lastError,omitempty"`
}

func NewEngine(cache ports.LocalCache, remote ports.RemoteStore, authority *clock.Authority) *Engine {
	return &Engine{
		cache:     cache,
		remote:    remote,
		authority: authority,
	}
}

// Login performs the full sync-down for a fresh session: the cloud
// document wins unconditionally, the cache is overwritten wholesale. If
// the document does not exist yet the account is provisioned first (the
// only Overwrite in the system).
func (e *Engine) Login(ctx context.Context, sess *Session) (*domain.UserDocument, error) {
	doc, err := e.remote.Get(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("[SyncEngine] No document for user %s, provisioning account", sess.UserID)
		doc = domain.NewUserDocument(sess.Email, e.authority.Now())
		if err := e.remote.Overwrite(ctx, sess.UserID, doc); err != nil {
			return nil, e.fail("login", fmt.Errorf("failed to provision account: %w", err))
		}
	} else if err != nil {
		return nil, e.fail("login", err)
	}

	if err := e.syncDownTo(ctx, doc); err != nil {
		return nil, e.fail("login", err)
	}

	e.ok()
	log.Printf("[SyncEngine] Login sync-down complete for %s (%d sites)", sess.UserID, len(doc.Sites))
	return doc, nil
}

// AppOpen runs the sync-up-then-down protocol: push local time totals,
// then pull the whole document so the device picks up overnight
// reconciliation results and edits from other devices. The returned
// document carries the DailyResult for the caller to surface if unseen.
func (e *Engine) AppOpen(ctx context.Context, sess *Session) (*domain.UserDocument, error) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	records, err := e.cache.ListTimeRecords(ctx)
	if err != nil {
		return nil, e.fail("app-open", err)
	}
	if err := e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{Tracking: &records}); err != nil {
		return nil, e.fail("app-open", err)
	}

	doc, err := e.remote.Get(ctx, sess.UserID)
	if err != nil {
		return nil, e.fail("app-open", err)
	}
	if err := e.syncDownTo(ctx, doc); err != nil {
		return nil, e.fail("app-open", err)
	}

	e.ok()
	return doc, nil
}

// PeriodicPush is the timer trigger: push-only, no pull, so an in-flight
// local session is never clobbered by stale cloud data.
func (e *Engine) PeriodicPush(ctx context.Context, sess *Session) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	sites, err := e.cache.ListSites(ctx)
	if err != nil {
		return e.fail("periodic", err)
	}
	records, err := e.cache.ListTimeRecords(ctx)
	if err != nil {
		return e.fail("periodic", err)
	}

	err = e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{
		Sites:    &sites,
		Tracking: &records,
	})
	if err != nil {
		return e.fail("periodic", err)
	}

	e.ok()
	log.Printf("[SyncEngine] Periodic push complete for %s", sess.UserID)
	return nil
}

// Logout pushes the final state, then clears the cache for whichever
// account logs in next. The push is best effort: a failed push is logged
// and the teardown proceeds anyway.
func (e *Engine) Logout(ctx context.Context, sess *Session) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	sites, sitesErr := e.cache.ListSites(ctx)
	records, recErr := e.cache.ListTimeRecords(ctx)
	if sitesErr == nil && recErr == nil {
		err := e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{
			Sites:    &sites,
			Tracking: &records,
		})
		if err != nil {
			log.Printf("[SyncEngine] Logout push failed for %s (continuing teardown): %v", sess.UserID, err)
		}
	} else {
		log.Printf("[SyncEngine] Logout: could not read cache for final push: sites=%v records=%v", sitesErr, recErr)
	}

	if err := e.cache.Clear(ctx); err != nil {
		return e.fail("logout", fmt.Errorf("failed to clear local cache: %w", err))
	}

	e.ok()
	log.Printf("[SyncEngine] Logout complete for %s", sess.UserID)
	return nil
}

// PushSites writes the tracked list and its edit-log entry synchronously.
// Edits cannot wait for the periodic timer: the reconciliation job's
// verdict depends on same-day edit history being present server-side.
func (e *Engine) PushSites(ctx context.Context, sess *Session, sites []domain.TrackedSite, entry domain.EditLogEntry) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	doc, err := e.remote.Get(ctx, sess.UserID)
	if err != nil {
		return e.fail("edit", err)
	}
	history := append(doc.EditHistory, entry)

	err = e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{
		Sites:       &sites,
		EditHistory: &history,
	})
	if err != nil {
		return e.fail("edit", err)
	}

	e.ok()
	return nil
}

// PushTracking merge-writes the full local time_tracking field. Used by
// the clear-data action with an empty map.
func (e *Engine) PushTracking(ctx context.Context, sess *Session, records map[string]domain.TimeRecord) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	if err := e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{Tracking: &records}); err != nil {
		return e.fail("tracking", err)
	}
	e.ok()
	return nil
}

// DismissDailyResult flips the current result's seen flag. One-field
// merge; the result itself is otherwise untouched, so a later sync-down
// cannot resurrect seen=false for the same date.
func (e *Engine) DismissDailyResult(ctx context.Context, sess *Session) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	doc, err := e.remote.Get(ctx, sess.UserID)
	if err != nil {
		return e.fail("dismiss", err)
	}
	if doc.DailyResult == nil || doc.DailyResult.Seen {
		return nil
	}

	seen := *doc.DailyResult
	seen.Seen = true
	if err := e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{DailyResult: &seen}); err != nil {
		return e.fail("dismiss", err)
	}
	e.ok()
	return nil
}

// SaveCharity records which charity a forfeited balance goes to.
// One-field merge.
func (e *Engine) SaveCharity(ctx context.Context, sess *Session, charity string) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	if charity == "" {
		charity = "none"
	}
	if err := e.remote.MergeWrite(ctx, sess.UserID, domain.PartialFields{SelectedCharity: &charity}); err != nil {
		return e.fail("charity", err)
	}
	e.ok()
	return nil
}

// Document fetches the authoritative document without touching the cache.
// Used by read-only presentation accessors (wallet, daily result).
func (e *Engine) Document(ctx context.Context, sess *Session) (*domain.UserDocument, error) {
	doc, err := e.remote.Get(ctx, sess.UserID)
	if err != nil {
		return nil, e.fail("read", err)
	}
	return doc, nil
}

// Status returns the last sync outcome for the presentation surface.
func (e *Engine) Status() Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

// syncDownTo overwrites the cache projection from an authoritative document.
func (e *Engine) syncDownTo(ctx context.Context, doc *domain.UserDocument) error {
	if err := e.cache.ReplaceSites(ctx, doc.Sites); err != nil {
		return fmt.Errorf("failed to replace cached sites: %w", err)
	}
	if err := e.cache.ReplaceTimeRecords(ctx, doc.Tracking); err != nil {
		return fmt.Errorf("failed to replace cached time records: %w", err)
	}
	return nil
}

func (e *Engine) fail(trigger string, err error) error {
	log.Printf("[SyncEngine] Sync failed (%s), will retry on next trigger: %v", trigger, err)
	e.statusMu.Lock()
	e.status.LastError = err.Error()
	e.statusMu.Unlock()
	return err
}

func (e *Engine) ok() {
	e.statusMu.Lock()
	e.status.LastError = ""
	e.status.LastSyncAt = e.authority.Now()
	e.statusMu.Unlock()
}
