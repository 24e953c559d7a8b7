package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyland-backend/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	active     []models.Session
	activeErr  error
	ranged     []models.Session
	rangeErr   error
	rangeCalls int
	rangeGate  chan struct{}
}

func (s *fakeStore) ActiveSince(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	out := make([]models.Session, len(s.active))
	copy(out, s.active)
	return out, nil
}

func (s *fakeStore) Range(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	s.mu.Lock()
	s.rangeCalls++
	gate := s.rangeGate
	err := s.rangeErr
	out := make([]models.Session, len(s.ranged))
	copy(out, s.ranged)
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fakeStore) setActive(sessions []models.Session) {
	s.mu.Lock()
	s.active = sessions
	s.mu.Unlock()
}

func (s *fakeStore) setRangeErr(err error) {
	s.mu.Lock()
	s.rangeErr = err
	s.mu.Unlock()
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeCalls
}

type fakeNotifier struct {
	mu    sync.Mutex
	ch    chan struct{}
	err   error
	subs  int
	stops int
}

func (n *fakeNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs++
	if n.err != nil {
		return nil, nil, n.err
	}
	return n.ch, func() {
		n.mu.Lock()
		n.stops++
		n.mu.Unlock()
	}, nil
}

func (n *fakeNotifier) notify() {
	n.ch <- struct{}{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testFeed(store *fakeStore, notifier Notifier) *Feed {
	feed := NewFeed(Config{
		InactiveThreshold:   5 * time.Minute,
		PullRefreshInterval: 25 * time.Millisecond,
		TopPagesLimit:       5,
	}, store, notifier, nil)
	feed.resubBackoff = 10 * time.Millisecond
	return feed
}

func TestFeedPushUpdatesActiveSet(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{ch: make(chan struct{})}
	feed := testFeed(store, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "startup refresh", func() bool {
		return !feed.Snapshot().LiveUpdatedAt.IsZero()
	})

	now := time.Now()
	store.setActive([]models.Session{
		sessionActiveAt("a", now.Add(-time.Minute)),
		sessionActiveAt("b", now.Add(-time.Second)),
	})
	notifier.notify()

	waitFor(t, "push update", func() bool {
		return len(feed.Snapshot().ActiveSessions) == 2
	})

	snap := feed.Snapshot()
	if snap.ActiveSessions[0].SessionID != "b" {
		t.Errorf("expected most recent session first, got %q", snap.ActiveSessions[0].SessionID)
	}
	if snap.Live.TotalCount != 2 {
		t.Errorf("expected live stats over active set, got %d", snap.Live.TotalCount)
	}
}

func TestFeedManualRefreshCoalesces(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{rangeGate: gate}
	feed := testFeed(store, &fakeNotifier{ch: make(chan struct{})})
	feed.SetAutoRefresh(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	// Startup pull is now blocked on the gate.
	waitFor(t, "startup pull", func() bool { return store.calls() == 1 })

	// Several manual requests while one is in flight coalesce into a
	// single follow-up pass.
	feed.Refresh()
	feed.Refresh()
	feed.Refresh()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	waitFor(t, "queued pull", func() bool { return store.calls() == 2 })
	time.Sleep(100 * time.Millisecond)
	if got := store.calls(); got != 2 {
		t.Errorf("expected exactly 2 pull passes, got %d", got)
	}
}

func TestFeedKeepsLastGoodStatsOnError(t *testing.T) {
	store := &fakeStore{ranged: []models.Session{
		sessionActiveAt("a", time.Now()),
	}}
	feed := testFeed(store, &fakeNotifier{ch: make(chan struct{})})
	feed.SetAutoRefresh(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "startup pull", func() bool {
		return feed.Snapshot().Today.TotalCount == 1
	})

	store.setRangeErr(errors.New("backend unreachable"))
	feed.Refresh()

	waitFor(t, "stale flag", func() bool { return feed.Snapshot().Stale })
	if got := feed.Snapshot().Today.TotalCount; got != 1 {
		t.Errorf("expected last-known-good today stats, got total %d", got)
	}

	store.setRangeErr(nil)
	feed.Refresh()

	waitFor(t, "recovery", func() bool { return !feed.Snapshot().Stale })
}

func TestFeedDetachedObserverReceivesNothing(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{rangeGate: gate}
	notifier := &fakeNotifier{ch: make(chan struct{})}
	feed := testFeed(store, notifier)
	feed.SetAutoRefresh(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "startup pull", func() bool { return store.calls() == 1 })

	ch, stop := feed.Watch()
	<-ch // seed snapshot

	// Manual refresh issued, observer detaches before it resolves.
	feed.Refresh()
	stop()
	close(gate)

	waitFor(t, "refresh settled", func() bool { return store.calls() >= 2 })

	select {
	case snap, ok := <-ch:
		if ok {
			t.Errorf("detached observer received snapshot: %+v", snap)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFeedPushWhilePullInFlight(t *testing.T) {
	gate := make(chan struct{})
	now := time.Now()
	store := &fakeStore{
		rangeGate: gate,
		ranged: []models.Session{
			sessionActiveAt("r1", now.Add(-2*time.Hour)),
			sessionActiveAt("r2", now.Add(-time.Hour)),
		},
	}
	notifier := &fakeNotifier{ch: make(chan struct{})}
	feed := testFeed(store, notifier)
	feed.SetAutoRefresh(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "startup pull in flight", func() bool { return store.calls() == 1 })

	// A change notification lands while the pull is still blocked; the
	// live family must update without waiting for the pull.
	store.setActive([]models.Session{sessionActiveAt("live", now)})
	notifier.notify()

	waitFor(t, "live update during in-flight pull", func() bool {
		snap := feed.Snapshot()
		return len(snap.ActiveSessions) == 1 && snap.Today.TotalCount == 0
	})

	close(gate)

	waitFor(t, "today stats after pull settles", func() bool {
		return feed.Snapshot().Today.TotalCount == 2
	})

	// The settled pull must not clobber the newer live data.
	snap := feed.Snapshot()
	if len(snap.ActiveSessions) != 1 || snap.ActiveSessions[0].SessionID != "live" {
		t.Errorf("expected live active set to survive pull, got %+v", snap.ActiveSessions)
	}
	if snap.Stale {
		t.Error("expected fresh snapshot after successful pull")
	}
}

func TestFeedAutoRefreshToggle(t *testing.T) {
	store := &fakeStore{}
	feed := testFeed(store, &fakeNotifier{ch: make(chan struct{})})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "interval pulls", func() bool { return store.calls() >= 3 })

	feed.SetAutoRefresh(false)
	time.Sleep(50 * time.Millisecond)
	settled := store.calls()
	time.Sleep(100 * time.Millisecond)
	if got := store.calls(); got != settled {
		t.Errorf("pull cadence not suspended: %d -> %d calls", settled, got)
	}

	// Manual refresh stays available while suspended.
	feed.Refresh()
	waitFor(t, "manual pull while suspended", func() bool { return store.calls() == settled+1 })
}

func TestFeedFallsBackToPullOnly(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{err: errors.New("channel unavailable")}
	feed := testFeed(store, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "pull-only fallback", func() bool { return feed.Snapshot().PullOnly })

	// Active set keeps refreshing from the pull cadence.
	now := time.Now()
	store.setActive([]models.Session{sessionActiveAt("a", now)})
	waitFor(t, "active refresh via pull", func() bool {
		return len(feed.Snapshot().ActiveSessions) == 1
	})
}

func TestFeedResubscribesAfterChannelDrop(t *testing.T) {
	store := &fakeStore{}
	ch := make(chan struct{})
	notifier := &fakeNotifier{ch: ch}
	feed := testFeed(store, notifier)
	feed.SetAutoRefresh(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	waitFor(t, "initial subscription", func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.subs == 1
	})

	// Swap in a fresh channel, then drop the old one.
	fresh := make(chan struct{}, 1)
	notifier.mu.Lock()
	old := notifier.ch
	notifier.ch = fresh
	notifier.mu.Unlock()
	close(old)

	waitFor(t, "resubscription", func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.subs == 2
	})

	// The fresh channel drives push updates again.
	now := time.Now()
	store.setActive([]models.Session{sessionActiveAt("a", now)})
	fresh <- struct{}{}
	waitFor(t, "push after resubscribe", func() bool {
		return len(feed.Snapshot().ActiveSessions) == 1
	})
}
