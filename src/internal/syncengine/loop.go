package syncengine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/timepledge/timepledge/src/internal/tracker"
)

// Typed events consumed by the device loop. Events for one device are
// processed strictly in arrival order by a single goroutine, which is what
// serializes tracker writes against sync pushes of the same cache state.
type (
	FocusChanged struct {
		TabID  int
		Domain string
		At     time.Time
	}
	TabClosed struct {
		TabID int
		At    time.Time
	}
	SyncTick struct {
		At time.Time
	}
)

// Loop is the single-threaded task queue the device daemon runs on.
type Loop struct {
	events  chan any
	tracker *tracker.SessionTracker
	engine  *Engine

	mu        sync.Mutex
	session   *Session
	stopTimer context.CancelFunc
}

const defaultEventBuffer = 64

func NewLoop(tr *tracker.SessionTracker, engine *Engine) *Loop {
	return &Loop{
		events:  make(chan any, defaultEventBuffer),
		tracker: tr,
		engine:  engine,
	}
}

// Start consumes events until ctx is cancelled. Run it on its own goroutine.
func (l *Loop) Start(ctx context.Context) {
	log.Println("[Loop] Device event loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.events:
			l.handle(ctx, ev)
		}
	}
}

// Post submits an event. Blocks if the buffer is full rather than drop or
// reorder.
func (l *Loop) Post(ev any) {
	l.events <- ev
}

func (l *Loop) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case FocusChanged:
		if err := l.tracker.OnFocusChange(ctx, e.TabID, e.Domain, e.At); err != nil {
			log.Printf("[Loop] Focus change failed: %v", err)
		}
	case TabClosed:
		if err := l.tracker.OnTabClosed(ctx, e.TabID, e.At); err != nil {
			log.Printf("[Loop] Tab close failed: %v", err)
		}
	case SyncTick:
		sess := l.Session()
		if sess == nil {
			return
		}
		// Error already logged and surfaced by the engine; the next
		// tick retries from current local state.
		_ = l.engine.PeriodicPush(ctx, sess)
	default:
		log.Printf("[Loop] Dropping unknown event %T", ev)
	}
}

// Session returns the current authenticated session, or nil.
func (l *Loop) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// BeginSession installs the session and starts the periodic sync timer.
// The first tick is delayed so it cannot race the login sync-down.
func (l *Loop) BeginSession(ctx context.Context, sess *Session, initialDelay, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopTimer != nil {
		l.stopTimer()
	}
	l.session = sess

	timerCtx, cancel := context.WithCancel(ctx)
	l.stopTimer = cancel
	go l.runTimer(timerCtx, initialDelay, interval)
	log.Printf("[Loop] Session started for %s (first sync in %s, every %s)", sess.UserID, initialDelay, interval)
}

// EndSession stops the timer and forgets the session. The caller is
// responsible for running the logout push first.
func (l *Loop) EndSession() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopTimer != nil {
		l.stopTimer()
		l.stopTimer = nil
	}
	l.session = nil
	log.Println("[Loop] Session ended")
}

func (l *Loop) runTimer(ctx context.Context, initialDelay, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}
	l.Post(SyncTick{At: time.Now()})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			l.Post(SyncTick{At: at})
		}
	}
}
