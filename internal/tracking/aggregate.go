package tracking

import (
	"math"
	"sort"

	"storyland-backend/internal/models"
)

type PageCount struct {
	Page  string `json:"page"`
	Views int    `json:"views"`
}

// Stats is one full reduction of a session set. The age-group and
// content-type breakdowns always sum to TotalCount because their
// fallback buckets absorb unrecognized values. The device breakdown
// drops unrecognized values instead and may sum lower; existing
// dashboards rely on that behavior, so it is kept as is.
type Stats struct {
	TotalCount           int                        `json:"total_count"`
	TotalPageViews       int                        `json:"total_page_views"`
	DeviceBreakdown      map[models.DeviceType]int  `json:"device_breakdown"`
	BrowserBreakdown     map[string]int             `json:"browser_breakdown"`
	OSBreakdown          map[string]int             `json:"os_breakdown"`
	AgeGroupBreakdown    map[models.AgeGroup]int    `json:"age_group_breakdown"`
	ContentTypeBreakdown map[models.ContentType]int `json:"content_type_breakdown"`
	TopPages             []PageCount                `json:"top_pages"`
	AverageSessionMS     int64                      `json:"average_session_ms"`
	BounceRate           int                        `json:"bounce_rate"`
}

// Aggregate reduces a set of session records into the breakdown and
// scalar metrics the dashboards consume. The reduction is
// order-independent and every record contributes at most once per
// dimension. Records missing lastActive are excluded entirely.
func Aggregate(sessions []models.Session, topPagesLimit int) Stats {
	if topPagesLimit <= 0 {
		topPagesLimit = DefaultTopPagesLimit
	}

	stats := Stats{
		DeviceBreakdown: map[models.DeviceType]int{
			models.DeviceDesktop: 0,
			models.DeviceMobile:  0,
			models.DeviceTablet:  0,
		},
		BrowserBreakdown: map[string]int{},
		OSBreakdown:      map[string]int{},
		AgeGroupBreakdown: map[models.AgeGroup]int{
			models.AgeGroup0to3:    0,
			models.AgeGroup3to6:    0,
			models.AgeGroup6to9:    0,
			models.AgeGroup9to12:   0,
			models.AgeGroupUnknown: 0,
		},
		ContentTypeBreakdown: map[models.ContentType]int{
			models.ContentStory:       0,
			models.ContentVideo:       0,
			models.ContentCodeStories: 0,
			models.ContentAgeGroup:    0,
			models.ContentParents:     0,
			models.ContentHome:        0,
			models.ContentOther:       0,
		},
		TopPages: []PageCount{},
	}

	pageViews := map[string]int{}
	pageOrder := map[string]int{}

	var totalTimeMS int64
	bounced := 0

	for _, s := range sessions {
		if s.LastActive.IsZero() {
			continue
		}

		stats.TotalCount++
		stats.TotalPageViews += s.PageViews
		totalTimeMS += s.TimeSpentMS
		if s.PageViews <= 1 {
			bounced++
		}

		// Unrecognized device types are dropped, not bucketed.
		if _, ok := stats.DeviceBreakdown[s.DeviceType]; ok {
			stats.DeviceBreakdown[s.DeviceType]++
		}

		if s.Browser != "" {
			stats.BrowserBreakdown[s.Browser]++
		}
		if s.OS != "" {
			stats.OSBreakdown[s.OS]++
		}

		if _, ok := stats.AgeGroupBreakdown[s.AgeGroup]; ok && s.AgeGroup != models.AgeGroupUnknown {
			stats.AgeGroupBreakdown[s.AgeGroup]++
		} else {
			stats.AgeGroupBreakdown[models.AgeGroupUnknown]++
		}

		if _, ok := stats.ContentTypeBreakdown[s.ContentType]; ok && s.ContentType != models.ContentOther {
			stats.ContentTypeBreakdown[s.ContentType]++
		} else {
			stats.ContentTypeBreakdown[models.ContentOther]++
		}

		if s.CurrentPage != "" {
			if _, seen := pageViews[s.CurrentPage]; !seen {
				pageOrder[s.CurrentPage] = len(pageOrder)
			}
			pageViews[s.CurrentPage]++
		}
	}

	if stats.TotalCount > 0 {
		stats.AverageSessionMS = int64(math.Round(float64(totalTimeMS) / float64(stats.TotalCount)))
		stats.BounceRate = int(math.Round(float64(bounced) / float64(stats.TotalCount) * 100))
	}

	stats.TopPages = topPages(pageViews, pageOrder, topPagesLimit)

	return stats
}

// topPages ranks pages by view count descending; ties keep first-seen
// order so repeated reductions of the same input stay stable.
func topPages(views map[string]int, order map[string]int, limit int) []PageCount {
	ranked := make([]PageCount, 0, len(views))
	for page, count := range views {
		ranked = append(ranked, PageCount{Page: page, Views: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Views != ranked[j].Views {
			return ranked[i].Views > ranked[j].Views
		}
		return order[ranked[i].Page] < order[ranked[j].Page]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
