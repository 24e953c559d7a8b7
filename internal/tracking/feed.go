package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"storyland-backend/internal/models"
)

const (
	DefaultInactiveThreshold   = 5 * time.Minute
	DefaultPullRefreshInterval = 30 * time.Second
	DefaultTopPagesLimit       = 5

	// After this many failed resubscription attempts the feed stops
	// chasing the live channel and serves the active set from the pull
	// cadence instead.
	maxResubscribeAttempts = 3
	resubscribeBackoff     = 2 * time.Second
)

// Store is the read-only view of the session record store the feed
// needs. The feed never writes: expiry is computed, not stored.
type Store interface {
	// ActiveSince returns sessions with lastActive after the cutoff,
	// most recently active first.
	ActiveSince(ctx context.Context, cutoff time.Time) ([]models.Session, error)
	// Range returns sessions joined within [start, end).
	Range(ctx context.Context, start, end time.Time) ([]models.Session, error)
}

// Notifier delivers change notifications for the session collection.
// The channel closes when the backend drops the subscription; the stop
// func releases it.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
}

// Metrics is the slice of instrumentation the feed reports into.
type Metrics interface {
	SetActiveSessions(n int)
	RefreshObserved(trigger, outcome string)
}

type Config struct {
	InactiveThreshold   time.Duration
	PullRefreshInterval time.Duration
	TopPagesLimit       int
}

func (c Config) withDefaults() Config {
	if c.InactiveThreshold <= 0 {
		c.InactiveThreshold = DefaultInactiveThreshold
	}
	if c.PullRefreshInterval <= 0 {
		c.PullRefreshInterval = DefaultPullRefreshInterval
	}
	if c.TopPagesLimit <= 0 {
		c.TopPagesLimit = DefaultTopPagesLimit
	}
	return c
}

// Snapshot is one internally consistent published set of metrics. Each
// metric family (active list + live stats, today stats) is replaced
// whole on every recomputation pass, never merged field by field.
type Snapshot struct {
	ActiveSessions []models.Session `json:"active_sessions"`
	Live           Stats            `json:"live"`
	Today          Stats            `json:"today"`
	LiveUpdatedAt  time.Time        `json:"live_updated_at"`
	TodayUpdatedAt time.Time        `json:"today_updated_at"`
	// Stale marks the today stats as last-known-good after a failed
	// refresh. Stale-but-correct beats fresh-but-wrong.
	Stale    bool `json:"stale"`
	PullOnly bool `json:"pull_only,omitempty"`
}

type pullResult struct {
	sessions []models.Session
	err      error
	trigger  string
}

// Feed bridges the live change subscription with the periodic bounded
// aggregation pass and publishes unified snapshots. All state updates
// happen on the single Run goroutine; readers get copies.
type Feed struct {
	cfg      Config
	store    Store
	notifier Notifier
	tracker  *Tracker
	metrics  Metrics
	now      func() time.Time

	resubBackoff time.Duration
	maxResub     int

	mu          sync.RWMutex
	snap        Snapshot
	autoRefresh bool
	observers   map[chan Snapshot]struct{}

	refreshCh chan struct{}
}

func NewFeed(cfg Config, store Store, notifier Notifier, metrics Metrics) *Feed {
	cfg = cfg.withDefaults()
	return &Feed{
		cfg:          cfg,
		store:        store,
		notifier:     notifier,
		tracker:      NewTracker(cfg.InactiveThreshold),
		metrics:      metrics,
		now:          time.Now,
		resubBackoff: resubscribeBackoff,
		maxResub:     maxResubscribeAttempts,
		autoRefresh:  true,
		observers:    make(map[chan Snapshot]struct{}),
		refreshCh:    make(chan struct{}, 1),
	}
}

// Run drives the feed until ctx is cancelled. It is the only goroutine
// that mutates feed state; store reads for the pull pass run async and
// report back into the loop so a slow backend never stacks passes.
func (f *Feed) Run(ctx context.Context) {
	changeCh, stopSub := f.subscribe(ctx)
	defer func() {
		if stopSub != nil {
			stopSub()
		}
	}()

	ticker := time.NewTicker(f.cfg.PullRefreshInterval)
	defer ticker.Stop()

	resultCh := make(chan pullResult, 1)
	inFlight := false
	queued := false
	pullOnly := changeCh == nil
	resubAttempts := 0
	var resubTimer <-chan time.Time

	startPull := func(trigger string) {
		inFlight = true
		start, end := dayBounds(f.now())
		go func() {
			sessions, err := f.store.Range(ctx, start, end)
			select {
			case resultCh <- pullResult{sessions: sessions, err: err, trigger: trigger}:
			case <-ctx.Done():
			}
		}()
	}

	if changeCh == nil {
		resubTimer = time.After(f.resubBackoff)
	}

	// Prime both families so the first observer sees real data.
	f.refreshActive(ctx)
	startPull("startup")

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-changeCh:
			if !ok {
				// Backend dropped the live channel; try to get it back.
				changeCh = nil
				if stopSub != nil {
					stopSub()
					stopSub = nil
				}
				resubAttempts = 0
				resubTimer = time.After(f.resubBackoff)
				continue
			}
			f.refreshActive(ctx)

		case <-resubTimer:
			resubTimer = nil
			changeCh, stopSub = f.subscribe(ctx)
			if changeCh != nil {
				pullOnly = false
				f.refreshActive(ctx)
				continue
			}
			resubAttempts++
			if resubAttempts < f.maxResub {
				resubTimer = time.After(f.resubBackoff)
				continue
			}
			log.Printf("session feed: live subscription unavailable, falling back to pull-only refresh")
			pullOnly = true
			f.publish(func(s *Snapshot) { s.PullOnly = true })

		case <-ticker.C:
			if !f.AutoRefresh() {
				continue
			}
			if pullOnly {
				f.refreshActive(ctx)
			}
			if inFlight {
				// Defer, don't stack: at most one aggregation pass
				// runs against the backend at a time.
				queued = true
				continue
			}
			startPull("interval")

		case <-f.refreshCh:
			if pullOnly {
				f.refreshActive(ctx)
			}
			if inFlight {
				queued = true
				continue
			}
			startPull("manual")

		case res := <-resultCh:
			inFlight = false
			f.applyPull(res)
			if queued {
				queued = false
				startPull("queued")
			}
		}
	}
}

func (f *Feed) subscribe(ctx context.Context) (<-chan struct{}, func()) {
	if f.notifier == nil {
		return nil, nil
	}
	ch, stop, err := f.notifier.Subscribe(ctx)
	if err != nil {
		log.Printf("session feed: subscribe failed: %v", err)
		return nil, nil
	}
	return ch, stop
}

// refreshActive re-queries the active set and replaces the live metric
// family. Change notifications are cheap and frequent, so this runs
// synchronously on the loop to keep updates ordered.
func (f *Feed) refreshActive(ctx context.Context) {
	sessions, err := f.store.ActiveSince(ctx, f.tracker.Cutoff())
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("session feed: active query failed: %v", err)
		}
		if f.metrics != nil {
			f.metrics.RefreshObserved("push", "error")
		}
		return
	}

	active := f.tracker.Active(sessions)
	live := Aggregate(active, f.cfg.TopPagesLimit)
	now := f.now()

	f.publish(func(s *Snapshot) {
		s.ActiveSessions = active
		s.Live = live
		s.LiveUpdatedAt = now
	})

	if f.metrics != nil {
		f.metrics.SetActiveSessions(len(active))
		f.metrics.RefreshObserved("push", "ok")
	}
}

func (f *Feed) applyPull(res pullResult) {
	if res.err != nil {
		// Keep the last-known-good today stats and flag them.
		log.Printf("session feed: %s refresh failed: %v", res.trigger, res.err)
		f.publish(func(s *Snapshot) { s.Stale = true })
		if f.metrics != nil {
			f.metrics.RefreshObserved(res.trigger, "error")
		}
		return
	}

	today := Aggregate(res.sessions, f.cfg.TopPagesLimit)
	now := f.now()

	f.publish(func(s *Snapshot) {
		s.Today = today
		s.TodayUpdatedAt = now
		s.Stale = false
	})

	if f.metrics != nil {
		f.metrics.RefreshObserved(res.trigger, "ok")
	}
}

// publish applies mutate to a copy of the current snapshot, swaps it in
// whole, and fans it out to observers. Observers that cannot keep up
// miss intermediate snapshots rather than blocking the loop.
func (f *Feed) publish(mutate func(*Snapshot)) {
	f.mu.Lock()
	next := f.snap
	mutate(&next)
	f.snap = next

	for ch := range f.observers {
		select {
		case ch <- next:
		default:
		}
	}
	f.mu.Unlock()
}

// Snapshot returns the most recently published snapshot.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Refresh requests an on-demand pull pass. Requests made while one is
// already in flight coalesce into a single follow-up pass.
func (f *Feed) Refresh() {
	select {
	case f.refreshCh <- struct{}{}:
	default:
	}
}

// SetAutoRefresh suspends or resumes the timed pull cadence. Manual
// refresh and the live subscription are unaffected.
func (f *Feed) SetAutoRefresh(enabled bool) {
	f.mu.Lock()
	f.autoRefresh = enabled
	f.mu.Unlock()
}

func (f *Feed) AutoRefresh() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.autoRefresh
}

// Watch registers an observer. The returned stop func unregisters it
// and closes the channel; after stop returns no further snapshots are
// delivered.
func (f *Feed) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	f.mu.Lock()
	f.observers[ch] = struct{}{}
	// Seed with the current snapshot so new dashboards render at once.
	ch <- f.snap
	f.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Sends only happen while holding mu, so closing after the
			// delete under the same lock cannot race a publish.
			f.mu.Lock()
			delete(f.observers, ch)
			close(ch)
			f.mu.Unlock()
		})
	}
	return ch, stop
}

// dayBounds returns the local [midnight, midnight+24h) window for t,
// the bounded range the today stats aggregate over.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
