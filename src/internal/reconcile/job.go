package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
)

// ErrAlreadyRunning is returned when another instance holds today's run lock.
var ErrAlreadyRunning = errors.New("reconciliation already running for this date")

// errAlreadyJudged skips a user whose DailyResult already carries today's
// date. This is what makes a duplicate scheduler fire harmless: without
// it a re-run would double-apply the wallet reset if the balance had been
// replenished in between.
var errAlreadyJudged = errors.New("user already judged today")

const (
	defaultWorkers = 8
	runLockTTL     = 2 * 60 * 60 // seconds; covers a slow full scan
)

// Job is the once-daily batch that judges every user against their limits
// and applies the wallet-reset/donation transition. It runs server-side
// against the authoritative store only; no device cache is involved.
type Job struct {
	store     ports.TransactionalStore
	locker    ports.RunLocker
	authority *clock.Authority
	workers   int
}

func NewJob(store ports.TransactionalStore, locker ports.RunLocker, authority *clock.Authority, workers int) *Job {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Job{
		store:     store,
		locker:    locker,
		authority: authority,
		workers:   workers,
	}
}

// Report summarizes one run. Per-user failures are reported here, never
// aggregated into a job-wide failure.
type Report struct {
	Date      string                      `json:"date"`
	Processed int                         `json:"processed"`
	Skipped   int                         `json:"skipped"`
	Statuses  map[domain.ResultStatus]int `json:"statuses"`
	Errors    map[string]string           `json:"errors,omitempty"`
}

// Run evaluates every user for today's date in the reference zone.
// Users are processed concurrently by a bounded worker pool; one user's
// failure never blocks or rolls back another's.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	today := j.authority.DateString(j.authority.Now())
	lockKey := "daily-reconcile:" + today

	acquired, err := j.locker.TryAcquireLock(ctx, lockKey, runLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		log.Printf("[Reconciler] Run lock %s held elsewhere, skipping", lockKey)
		return nil, ErrAlreadyRunning
	}
	defer func() {
		if err := j.locker.ReleaseLock(context.Background(), lockKey); err != nil {
			log.Printf("[Reconciler] Failed to release run lock %s: %v", lockKey, err)
		}
	}()

	log.Printf("[Reconciler] Running daily account check for %s", today)

	userIDs, err := j.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	report := &Report{
		Date:     today,
		Statuses: map[domain.ResultStatus]int{},
		Errors:   map[string]string{},
	}

	type outcome struct {
		userID  string
		status  domain.ResultStatus
		skipped bool
		err     error
	}

	ids := make(chan string)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < j.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				status, err := j.processUser(ctx, id, today)
				if errors.Is(err, errAlreadyJudged) {
					results <- outcome{userID: id, skipped: true}
					continue
				}
				results <- outcome{userID: id, status: status, err: err}
			}
		}()
	}

	go func() {
		for _, id := range userIDs {
			ids <- id
		}
		close(ids)
		wg.Wait()
		close(results)
	}()

	for out := range results {
		switch {
		case out.skipped:
			report.Skipped++
		case out.err != nil:
			log.Printf("[Reconciler] User %s failed: %v", out.userID, out.err)
			report.Errors[out.userID] = out.err.Error()
		default:
			report.Processed++
			report.Statuses[out.status]++
		}
	}

	log.Printf("[Reconciler] Daily check complete: %d processed, %d skipped, %d errors",
		report.Processed, report.Skipped, len(report.Errors))
	return report, nil
}

// processUser runs the whole judgment as one transactional
// read-modify-write, so the financial transition is internally consistent
// and cannot race the payment-confirmation writer.
func (j *Job) processUser(ctx context.Context, userID, today string) (domain.ResultStatus, error) {
	var status domain.ResultStatus
	err := j.store.TransactionalUpdate(ctx, userID, func(doc *domain.UserDocument) (domain.PartialFields, error) {
		if doc.DailyResult != nil && doc.DailyResult.ForDate == today {
			return domain.PartialFields{}, errAlreadyJudged
		}
		var fields domain.PartialFields
		status, fields = j.judge(doc, today)
		return fields, nil
	})
	return status, err
}

// judge is the pure per-user evaluation.
func (j *Job) judge(doc *domain.UserDocument, today string) (domain.ResultStatus, domain.PartialFields) {
	didFailTime := false
	for _, site := range doc.Sites {
		if site.LimitMillis <= 0 {
			continue
		}
		if rec, ok := doc.Tracking[site.Domain]; ok && rec.AccumulatedMillis > site.LimitMillis {
			didFailTime = true
			break // first violation is enough
		}
	}

	didEdit := false
	if n := len(doc.EditHistory); n > 0 {
		didEdit = j.authority.DateString(doc.EditHistory[n-1].At) == today
	}

	status := domain.StatusSuccess
	if didFailTime {
		status = domain.StatusFailedTime // reported even when both failed
	} else if didEdit {
		status = domain.StatusFailedEdit
	}

	emptyTracking := map[string]domain.TimeRecord{}
	emptyHistory := []domain.EditLogEntry{}
	fields := domain.PartialFields{
		Tracking:    &emptyTracking,
		EditHistory: &emptyHistory,
		DailyResult: &domain.DailyResult{ForDate: today, Status: status, Seen: false},
	}

	if (didFailTime || didEdit) && doc.WalletBalanceCents > 0 {
		donated := doc.TotalDonatedCents + doc.WalletBalanceCents
		zero := int64(0)
		fields.TotalDonatedCents = &donated
		fields.WalletBalanceCents = &zero
		log.Printf("[Reconciler] User failed (%s): wallet %d -> 0, donated %d -> %d",
			status, doc.WalletBalanceCents, doc.TotalDonatedCents, donated)
	}

	return status, fields
}
