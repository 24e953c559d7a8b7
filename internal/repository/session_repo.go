package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyland-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, session_id, device_type, browser, os, last_active, joined_at,
	current_page, content_type, content_id, age_group, page_views, time_spent_ms, is_active`

// RecordHeartbeat upserts the session row for a heartbeat. last_active
// only moves forward, page_views grows by one on navigation, and
// time_spent_ms accumulates.
func (r *SessionRepo) RecordHeartbeat(ctx context.Context, hb *models.HeartbeatRequest) error {
	query := `INSERT INTO sessions
		(id, session_id, device_type, browser, os, last_active, joined_at,
		 current_page, content_type, content_id, age_group, page_views, time_spent_ms, is_active)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), $6, $7, $8, $9, 1, $10, TRUE)
		ON CONFLICT (session_id) DO UPDATE SET
			last_active   = GREATEST(sessions.last_active, NOW()),
			current_page  = EXCLUDED.current_page,
			content_type  = EXCLUDED.content_type,
			content_id    = EXCLUDED.content_id,
			age_group     = EXCLUDED.age_group,
			page_views    = sessions.page_views + $11,
			time_spent_ms = sessions.time_spent_ms + EXCLUDED.time_spent_ms,
			is_active     = TRUE`

	navigated := 0
	if hb.Navigated {
		navigated = 1
	}

	_, err := r.pool.Exec(ctx, query,
		uuid.New(), hb.SessionID, hb.DeviceType, hb.Browser, hb.OS,
		hb.CurrentPage, nullIfEmpty(hb.ContentType), nullIfEmpty(hb.ContentID), nullIfEmpty(hb.AgeGroup),
		hb.TimeSpentMS, navigated,
	)
	return err
}

// ActiveSince returns sessions with a heartbeat after the cutoff, most
// recent first. The is_active flag is a query hint only; the recency
// filter is authoritative.
func (r *SessionRepo) ActiveSince(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE last_active > $1 AND is_active = TRUE
		ORDER BY last_active DESC`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Range returns sessions that joined within [start, end).
func (r *SessionRepo) Range(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE joined_at >= $1 AND joined_at < $2
		ORDER BY joined_at DESC`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// MarkInactive clears the is_active hint on sessions without a
// heartbeat since the cutoff, so the active query stays cheap.
func (r *SessionRepo) MarkInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE AND last_active <= $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan prunes session rows that joined before the cutoff.
func (r *SessionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE joined_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var s models.Session
	var contentType, ageGroup *string

	err := row.Scan(
		&s.ID, &s.SessionID, &s.DeviceType, &s.Browser, &s.OS, &s.LastActive, &s.JoinedAt,
		&s.CurrentPage, &contentType, &s.ContentID, &ageGroup, &s.PageViews, &s.TimeSpentMS, &s.IsActive,
	)
	if err != nil {
		return models.Session{}, err
	}

	if contentType != nil {
		s.ContentType = models.ContentType(*contentType)
	}
	if ageGroup != nil {
		s.AgeGroup = models.AgeGroup(*ageGroup)
	}
	return s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
