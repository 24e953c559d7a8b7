package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyland-backend/internal/models"
)

type fakeSessionStore struct {
	mu           sync.Mutex
	ranged       []models.Session
	rangeErr     error
	markCutoff   time.Time
	markCalls    int
	deleteCutoff time.Time
	deleteCalls  int
}

func (s *fakeSessionStore) Range(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rangeErr != nil {
		return nil, s.rangeErr
	}
	out := make([]models.Session, len(s.ranged))
	copy(out, s.ranged)
	return out, nil
}

func (s *fakeSessionStore) MarkInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	s.markCutoff = cutoff
	return 2, nil
}

func (s *fakeSessionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	s.deleteCutoff = cutoff
	return 1, nil
}

type fakeAnalyticsStore struct {
	mu   sync.Mutex
	rows []*models.DailyAnalytics
	err  error
}

func (s *fakeAnalyticsStore) UpsertDaily(ctx context.Context, d *models.DailyAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, d)
	return nil
}

func daySession(id string, lastActive time.Time, pageViews int) models.Session {
	return models.Session{
		SessionID:   id,
		DeviceType:  models.DeviceDesktop,
		LastActive:  lastActive,
		JoinedAt:    lastActive.Add(-10 * time.Minute),
		CurrentPage: "/",
		PageViews:   pageViews,
		TimeSpentMS: 60000,
	}
}

func newTestWorker(sessions *fakeSessionStore, analytics *fakeAnalyticsStore) *RollupWorker {
	return NewRollupWorker(nil, sessions, analytics, nil,
		15*time.Minute, 5*time.Minute, 90*24*time.Hour, 5)
}

func TestRollupComputesDailyRow(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessionStore{ranged: []models.Session{
		daySession("a", now, 1),
		daySession("a", now.Add(-time.Hour), 3),
		daySession("b", now.Add(-2*time.Hour), 1),
	}}
	analytics := &fakeAnalyticsStore{}
	w := newTestWorker(sessions, analytics)

	if err := w.Rollup(context.Background(), now); err != nil {
		t.Fatalf("rollup failed: %v", err)
	}

	if len(analytics.rows) != 1 {
		t.Fatalf("expected 1 rollup row, got %d", len(analytics.rows))
	}
	row := analytics.rows[0]

	wantDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !row.Day.Equal(wantDay) {
		t.Errorf("expected day %v, got %v", wantDay, row.Day)
	}
	if row.TotalVisits != 3 {
		t.Errorf("expected 3 visits, got %d", row.TotalVisits)
	}
	if row.UniqueSessions != 2 {
		t.Errorf("expected 2 unique sessions, got %d", row.UniqueSessions)
	}
	if row.TotalPageViews != 5 {
		t.Errorf("expected 5 page views, got %d", row.TotalPageViews)
	}
	// 2 of 3 records bounced → 67.
	if row.BounceRate != 67 {
		t.Errorf("expected bounce rate 67, got %d", row.BounceRate)
	}
	if row.DeviceBreakdown[models.DeviceDesktop] != 3 {
		t.Errorf("unexpected device breakdown: %v", row.DeviceBreakdown)
	}
}

func TestRollupRangeError(t *testing.T) {
	sessions := &fakeSessionStore{rangeErr: errors.New("backend unreachable")}
	analytics := &fakeAnalyticsStore{}
	w := newTestWorker(sessions, analytics)

	if err := w.Rollup(context.Background(), time.Now()); err == nil {
		t.Fatal("expected rollup error")
	}
	if len(analytics.rows) != 0 {
		t.Errorf("expected no rollup row on error, got %d", len(analytics.rows))
	}
}

func TestScheduledPassRunsMaintenance(t *testing.T) {
	sessions := &fakeSessionStore{}
	analytics := &fakeAnalyticsStore{}
	w := newTestWorker(sessions, analytics)

	before := time.Now()
	w.runScheduled()
	after := time.Now()

	if len(analytics.rows) != 1 {
		t.Errorf("expected a rollup row from the scheduled pass, got %d", len(analytics.rows))
	}
	if sessions.markCalls != 1 {
		t.Fatalf("expected 1 mark-inactive pass, got %d", sessions.markCalls)
	}
	if sessions.deleteCalls != 1 {
		t.Fatalf("expected 1 retention pass, got %d", sessions.deleteCalls)
	}

	// Cutoffs derive from the pass time minus threshold / retention.
	wantMarkLo := before.Add(-5 * time.Minute)
	wantMarkHi := after.Add(-5 * time.Minute)
	if sessions.markCutoff.Before(wantMarkLo) || sessions.markCutoff.After(wantMarkHi) {
		t.Errorf("mark-inactive cutoff %v outside [%v, %v]", sessions.markCutoff, wantMarkLo, wantMarkHi)
	}

	wantDeleteLo := before.Add(-90 * 24 * time.Hour)
	wantDeleteHi := after.Add(-90 * 24 * time.Hour)
	if sessions.deleteCutoff.Before(wantDeleteLo) || sessions.deleteCutoff.After(wantDeleteHi) {
		t.Errorf("retention cutoff %v outside [%v, %v]", sessions.deleteCutoff, wantDeleteLo, wantDeleteHi)
	}
}

func TestMaintenanceSkipsRetentionWhenDisabled(t *testing.T) {
	sessions := &fakeSessionStore{}
	w := NewRollupWorker(nil, sessions, &fakeAnalyticsStore{}, nil,
		15*time.Minute, 5*time.Minute, 0, 5)

	w.maintain(context.Background())

	if sessions.markCalls != 1 {
		t.Errorf("expected mark-inactive pass to run, got %d calls", sessions.markCalls)
	}
	if sessions.deleteCalls != 0 {
		t.Errorf("expected no retention pass when disabled, got %d calls", sessions.deleteCalls)
	}
}
