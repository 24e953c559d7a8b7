package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"storyland-backend/internal/models"
)

type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

// UpsertDaily replaces the rollup row for the day. Re-running a rollup
// for the same day is idempotent.
func (r *AnalyticsRepo) UpsertDaily(ctx context.Context, d *models.DailyAnalytics) error {
	deviceJSON, _ := json.Marshal(d.DeviceBreakdown)
	ageJSON, _ := json.Marshal(d.AgeGroupCounts)
	contentJSON, _ := json.Marshal(d.ContentCounts)

	query := `INSERT INTO daily_analytics
		(day, total_visits, unique_sessions, total_page_views, average_session_ms,
		 bounce_rate, device_breakdown, age_group_breakdown, content_type_breakdown, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (day) DO UPDATE SET
			total_visits           = EXCLUDED.total_visits,
			unique_sessions        = EXCLUDED.unique_sessions,
			total_page_views       = EXCLUDED.total_page_views,
			average_session_ms     = EXCLUDED.average_session_ms,
			bounce_rate            = EXCLUDED.bounce_rate,
			device_breakdown       = EXCLUDED.device_breakdown,
			age_group_breakdown    = EXCLUDED.age_group_breakdown,
			content_type_breakdown = EXCLUDED.content_type_breakdown,
			computed_at            = NOW()
		RETURNING computed_at`

	return r.pool.QueryRow(ctx, query,
		d.Day, d.TotalVisits, d.UniqueSessions, d.TotalPageViews, d.AverageSessionMS,
		d.BounceRate, deviceJSON, ageJSON, contentJSON,
	).Scan(&d.ComputedAt)
}

// ListDaily returns rollup rows for days on or after since, oldest
// first, ready for charting.
func (r *AnalyticsRepo) ListDaily(ctx context.Context, since time.Time) ([]*models.DailyAnalytics, error) {
	query := `SELECT day, total_visits, unique_sessions, total_page_views, average_session_ms,
			bounce_rate, device_breakdown, age_group_breakdown, content_type_breakdown, computed_at
		FROM daily_analytics
		WHERE day >= $1
		ORDER BY day ASC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DailyAnalytics
	for rows.Next() {
		d := &models.DailyAnalytics{}
		var deviceJSON, ageJSON, contentJSON []byte
		err := rows.Scan(
			&d.Day, &d.TotalVisits, &d.UniqueSessions, &d.TotalPageViews, &d.AverageSessionMS,
			&d.BounceRate, &deviceJSON, &ageJSON, &contentJSON, &d.ComputedAt,
		)
		if err != nil {
			return nil, err
		}
		json.Unmarshal(deviceJSON, &d.DeviceBreakdown)
		json.Unmarshal(ageJSON, &d.AgeGroupCounts)
		json.Unmarshal(contentJSON, &d.ContentCounts)
		out = append(out, d)
	}
	return out, rows.Err()
}
