package tracking

import (
	"sort"
	"time"

	"storyland-backend/internal/models"
)

// Tracker decides which session records count as currently active.
// Liveness is a read-time filter: nothing is ever written back to the
// store to expire a session, so stale records stay queryable for
// historical aggregation.
type Tracker struct {
	threshold time.Duration
	now       func() time.Time
}

func NewTracker(threshold time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultInactiveThreshold
	}
	return &Tracker{threshold: threshold, now: time.Now}
}

// Cutoff returns the oldest lastActive a session may carry and still be
// considered active. It doubles as the store-side query bound.
func (t *Tracker) Cutoff() time.Time {
	return t.now().Add(-t.threshold)
}

// Active filters sessions down to the live subset, most recently active
// first. A session whose lastActive sits exactly on the threshold
// boundary is inactive. Records with no lastActive at all are skipped
// rather than failing the whole pass.
func (t *Tracker) Active(sessions []models.Session) []models.Session {
	cutoff := t.Cutoff()

	active := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.LastActive.IsZero() {
			continue
		}
		if s.LastActive.After(cutoff) {
			active = append(active, s)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastActive.After(active[j].LastActive)
	})

	return active
}
