package services

import (
	"context"
	"log"

	"storyland-backend/internal/models"
	"storyland-backend/internal/repository"
)

// TrackingService ingests heartbeats from the public site and signals
// the dashboard feed. Unrecognized device types are stored as sent; the
// aggregation layer decides what to do with them.
type TrackingService struct {
	sessionRepo *repository.SessionRepo
	changes     *repository.SessionChanges
}

func NewTrackingService(sessionRepo *repository.SessionRepo, changes *repository.SessionChanges) *TrackingService {
	return &TrackingService{sessionRepo: sessionRepo, changes: changes}
}

func (s *TrackingService) RecordHeartbeat(ctx context.Context, req models.HeartbeatRequest) error {
	fieldErrors := make(map[string]string)
	if req.SessionID == "" {
		fieldErrors["session_id"] = "Session ID is required"
	}
	if len(req.SessionID) > 128 {
		fieldErrors["session_id"] = "Session ID is too long"
	}
	if req.CurrentPage == "" {
		fieldErrors["current_page"] = "Current page is required"
	}
	if req.TimeSpentMS < 0 {
		fieldErrors["time_spent_ms"] = "Time spent cannot be negative"
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	if err := s.sessionRepo.RecordHeartbeat(ctx, &req); err != nil {
		return err
	}

	// Change signal is best-effort; the pull cadence covers a missed one.
	if err := s.changes.Publish(ctx); err != nil {
		log.Printf("tracking: change publish failed: %v", err)
	}
	return nil
}
