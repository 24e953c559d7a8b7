package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyland-backend/internal/models"
	"storyland-backend/internal/tracking"
)

type stubStore struct{}

func (stubStore) ActiveSince(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	return nil, nil
}

func (stubStore) Range(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	return nil, nil
}

type stubEnqueuer struct {
	enqueued int
	err      error
}

func (s *stubEnqueuer) Enqueue(day time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued++
	return nil
}

func newTestAnalyticsHandler() (*AnalyticsHandler, *tracking.Feed, *stubEnqueuer) {
	feed := tracking.NewFeed(tracking.Config{}, stubStore{}, nil, nil)
	enqueuer := &stubEnqueuer{}
	return NewAnalyticsHandler(feed, nil, enqueuer), feed, enqueuer
}

func TestAnalyticsActive(t *testing.T) {
	h, _, _ := newTestAnalyticsHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/active", nil)
	rr := httptest.NewRecorder()
	h.Active(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("expected empty active set, got count %d", resp.Count)
	}
}

func TestAnalyticsAutoRefreshToggle(t *testing.T) {
	h, feed, _ := newTestAnalyticsHandler()

	if !feed.AutoRefresh() {
		t.Fatal("expected auto-refresh enabled by default")
	}

	body := bytes.NewReader([]byte(`{"enabled": false}`))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/analytics/auto-refresh", body)
	rr := httptest.NewRecorder()
	h.SetAutoRefresh(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if feed.AutoRefresh() {
		t.Error("expected auto-refresh disabled after PUT")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analytics/auto-refresh", nil)
	rr = httptest.NewRecorder()
	h.GetAutoRefresh(rr, req)

	var resp struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Enabled {
		t.Error("expected enabled=false in response")
	}
}

func TestAnalyticsAutoRefreshBadBody(t *testing.T) {
	h, _, _ := newTestAnalyticsHandler()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/analytics/auto-refresh", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	h.SetAutoRefresh(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestAnalyticsRefreshAccepted(t *testing.T) {
	h, _, _ := newTestAnalyticsHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/refresh", nil)
	rr := httptest.NewRecorder()
	h.Refresh(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rr.Code)
	}
}

func TestAnalyticsTriggerRollup(t *testing.T) {
	h, _, enqueuer := newTestAnalyticsHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/rollup", nil)
	rr := httptest.NewRecorder()
	h.TriggerRollup(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if enqueuer.enqueued != 1 {
		t.Errorf("expected 1 enqueued rollup, got %d", enqueuer.enqueued)
	}
}

func TestAnalyticsTriggerRollupError(t *testing.T) {
	h, _, enqueuer := newTestAnalyticsHandler()
	enqueuer.err = errors.New("queue unavailable")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/rollup", nil)
	rr := httptest.NewRecorder()
	h.TriggerRollup(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}
