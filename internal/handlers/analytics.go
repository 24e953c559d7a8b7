package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"storyland-backend/internal/repository"
	"storyland-backend/internal/tracking"
)

// RollupEnqueuer schedules an out-of-band daily rollup pass.
type RollupEnqueuer interface {
	Enqueue(day time.Time) error
}

type AnalyticsHandler struct {
	feed          *tracking.Feed
	analyticsRepo *repository.AnalyticsRepo
	rollups       RollupEnqueuer
}

func NewAnalyticsHandler(feed *tracking.Feed, analyticsRepo *repository.AnalyticsRepo, rollups RollupEnqueuer) *AnalyticsHandler {
	return &AnalyticsHandler{feed: feed, analyticsRepo: analyticsRepo, rollups: rollups}
}

// Active returns the current snapshot of active sessions with live
// stats over them.
func (h *AnalyticsHandler) Active(w http.ResponseWriter, r *http.Request) {
	snap := h.feed.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions": snap.ActiveSessions,
		"count":           len(snap.ActiveSessions),
		"live":            snap.Live,
		"updated_at":      snap.LiveUpdatedAt,
		"pull_only":       snap.PullOnly,
	})
}

// Stats returns today's aggregated statistics from the feed snapshot.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.feed.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"today":      snap.Today,
		"updated_at": snap.TodayUpdatedAt,
		"stale":      snap.Stale,
	})
}

// Refresh requests an immediate recomputation pass.
func (h *AnalyticsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.feed.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Refresh requested"})
}

func (h *AnalyticsHandler) GetAutoRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.feed.AutoRefresh()})
}

func (h *AnalyticsHandler) SetAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	h.feed.SetAutoRefresh(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// Daily returns the materialized per-day rollups for the requested
// period (7d or 30d, defaulting to 7d).
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days := 7
	if r.URL.Query().Get("period") == "30d" {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)
	rollups, err := h.analyticsRepo.ListDaily(r.Context(), since)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period": days,
		"days":   rollups,
	})
}

// TriggerRollup enqueues a rollup pass for today, used after backfills
// or when an admin wants fresh daily numbers ahead of the schedule.
func (h *AnalyticsHandler) TriggerRollup(w http.ResponseWriter, r *http.Request) {
	if err := h.rollups.Enqueue(time.Now()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Rollup scheduled"})
}
