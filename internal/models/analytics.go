package models

import "time"

// DailyAnalytics is one materialized per-day rollup row, recomputed by
// the rollup worker from the raw session records for that day.
type DailyAnalytics struct {
	Day              time.Time           `json:"day"`
	TotalVisits      int                 `json:"total_visits"`
	UniqueSessions   int                 `json:"unique_sessions"`
	TotalPageViews   int                 `json:"total_page_views"`
	AverageSessionMS int64               `json:"average_session_ms"`
	BounceRate       int                 `json:"bounce_rate"`
	DeviceBreakdown  map[DeviceType]int  `json:"device_breakdown"`
	AgeGroupCounts   map[AgeGroup]int    `json:"age_group_breakdown"`
	ContentCounts    map[ContentType]int `json:"content_type_breakdown"`
	ComputedAt       time.Time           `json:"computed_at"`
}
