package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"storyland-backend/internal/models"
	"storyland-backend/internal/observability"
	"storyland-backend/internal/tracking"
)

const rollupQueue = "queue:analytics-rollup"

type rollupJob struct {
	Day string `json:"day"` // YYYY-MM-DD
}

// SessionStore is the slice of the session repository the worker needs:
// bounded reads for aggregation plus the two maintenance writes.
type SessionStore interface {
	Range(ctx context.Context, start, end time.Time) ([]models.Session, error)
	MarkInactive(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AnalyticsStore persists materialized per-day rollup rows.
type AnalyticsStore interface {
	UpsertDaily(ctx context.Context, d *models.DailyAnalytics) error
}

// RollupWorker materializes per-day analytics rows from the raw
// session records and keeps the sessions table healthy: each scheduled
// pass also clears the is_active hint on sessions past the inactivity
// threshold and prunes rows older than the retention window. It runs
// on a schedule and also drains on-demand jobs from the Redis queue.
type RollupWorker struct {
	redis             *redis.Client
	sessions          SessionStore
	analytics         AnalyticsStore
	metrics           *observability.Metrics
	interval          time.Duration
	inactiveThreshold time.Duration
	retention         time.Duration
	topPagesLimit     int
	stopChan          chan struct{}
}

func NewRollupWorker(
	redisClient *redis.Client,
	sessions SessionStore,
	analytics AnalyticsStore,
	metrics *observability.Metrics,
	interval time.Duration,
	inactiveThreshold time.Duration,
	retention time.Duration,
	topPagesLimit int,
) *RollupWorker {
	return &RollupWorker{
		redis:             redisClient,
		sessions:          sessions,
		analytics:         analytics,
		metrics:           metrics,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		retention:         retention,
		topPagesLimit:     topPagesLimit,
		stopChan:          make(chan struct{}),
	}
}

func (w *RollupWorker) Start() {
	go w.schedulerLoop()
	go w.queueLoop()
	log.Printf("Started analytics rollup worker (every %s)", w.interval)
}

func (w *RollupWorker) Stop() {
	close(w.stopChan)
}

// Enqueue schedules a rollup for the given day via the Redis queue.
func (w *RollupWorker) Enqueue(day time.Time) error {
	payload, _ := json.Marshal(rollupJob{Day: day.Format("2006-01-02")})
	return w.redis.RPush(context.Background(), rollupQueue, payload).Err()
}

func (w *RollupWorker) schedulerLoop() {
	// Run once at startup so a fresh deploy has today's row, then on
	// the configured cadence.
	w.runScheduled()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.runScheduled()
		}
	}
}

func (w *RollupWorker) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := w.Rollup(ctx, time.Now()); err != nil {
		log.Printf("Rollup worker: scheduled pass failed: %v", err)
	}
	w.maintain(ctx)
}

// maintain keeps the indexed active query cheap by flipping the
// is_active hint on expired sessions, and bounds the table by pruning
// rows past the retention window. Correctness never depends on either:
// the read path filters by recency regardless.
func (w *RollupWorker) maintain(ctx context.Context) {
	now := time.Now()

	if n, err := w.sessions.MarkInactive(ctx, now.Add(-w.inactiveThreshold)); err != nil {
		log.Printf("Rollup worker: mark-inactive pass failed: %v", err)
	} else if n > 0 {
		log.Printf("Rollup worker: marked %d sessions inactive", n)
	}

	if w.retention <= 0 {
		return
	}
	if n, err := w.sessions.DeleteOlderThan(ctx, now.Add(-w.retention)); err != nil {
		log.Printf("Rollup worker: retention pass failed: %v", err)
	} else if n > 0 {
		log.Printf("Rollup worker: pruned %d sessions past retention", n)
	}
}

func (w *RollupWorker) queueLoop() {
	for {
		select {
		case <-w.stopChan:
			log.Printf("Rollup worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := w.redis.BLPop(ctx, 30*time.Second, rollupQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job rollupJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Rollup worker: failed to parse job: %v", err)
			continue
		}

		day, err := time.ParseInLocation("2006-01-02", job.Day, time.Local)
		if err != nil {
			log.Printf("Rollup worker: bad day in job: %v", err)
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := w.Rollup(jobCtx, day); err != nil {
			log.Printf("Rollup worker: rollup for %s failed: %v", job.Day, err)
		}
		cancel()
	}
}

// Rollup recomputes and stores the analytics row for the day t falls
// on. Idempotent: re-running replaces the row.
func (w *RollupWorker) Rollup(ctx context.Context, t time.Time) error {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1)

	sessions, err := w.sessions.Range(ctx, start, end)
	if err != nil {
		if w.metrics != nil {
			w.metrics.RollupRuns.WithLabelValues("error").Inc()
		}
		return err
	}

	stats := tracking.Aggregate(sessions, w.topPagesLimit)

	unique := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		unique[s.SessionID] = struct{}{}
	}

	row := &models.DailyAnalytics{
		Day:              start,
		TotalVisits:      stats.TotalCount,
		UniqueSessions:   len(unique),
		TotalPageViews:   stats.TotalPageViews,
		AverageSessionMS: stats.AverageSessionMS,
		BounceRate:       stats.BounceRate,
		DeviceBreakdown:  stats.DeviceBreakdown,
		AgeGroupCounts:   stats.AgeGroupBreakdown,
		ContentCounts:    stats.ContentTypeBreakdown,
	}

	if err := w.analytics.UpsertDaily(ctx, row); err != nil {
		if w.metrics != nil {
			w.metrics.RollupRuns.WithLabelValues("error").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.RollupRuns.WithLabelValues("ok").Inc()
	}
	log.Printf("Rollup for %s: %d visits, %d unique sessions", start.Format("2006-01-02"), row.TotalVisits, row.UniqueSessions)
	return nil
}
