package models

import (
	"time"

	"github.com/google/uuid"
)

type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

type ContentType string

const (
	ContentStory       ContentType = "story"
	ContentVideo       ContentType = "video"
	ContentCodeStories ContentType = "code-stories"
	ContentAgeGroup    ContentType = "age-group"
	ContentParents     ContentType = "parents"
	ContentHome        ContentType = "home"
	ContentOther       ContentType = "other"
)

type AgeGroup string

const (
	AgeGroup0to3    AgeGroup = "0-3"
	AgeGroup3to6    AgeGroup = "3-6"
	AgeGroup6to9    AgeGroup = "6-9"
	AgeGroup9to12   AgeGroup = "9-12"
	AgeGroupUnknown AgeGroup = "unknown"
)

// Session is one visitor session. Rows are created and advanced by the
// public tracking endpoint; the analytics core only ever reads them.
// A session is never closed explicitly — it ages out of the active view
// when its last heartbeat falls behind the inactivity threshold.
type Session struct {
	ID          uuid.UUID   `json:"id"`
	SessionID   string      `json:"session_id"`
	DeviceType  DeviceType  `json:"device_type"`
	Browser     string      `json:"browser"`
	OS          string      `json:"os"`
	LastActive  time.Time   `json:"last_active"`
	JoinedAt    time.Time   `json:"joined_at"`
	CurrentPage string      `json:"current_page"`
	ContentType ContentType `json:"content_type,omitempty"`
	ContentID   *string     `json:"content_id,omitempty"`
	AgeGroup    AgeGroup    `json:"age_group,omitempty"`
	PageViews   int         `json:"page_views"`
	TimeSpentMS int64       `json:"time_spent_ms"`
	IsActive    bool        `json:"is_active"`
}

// HeartbeatRequest is the payload the client-side tracking snippet sends
// on every navigation and keep-alive tick.
type HeartbeatRequest struct {
	SessionID   string `json:"session_id"`
	DeviceType  string `json:"device_type"`
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	CurrentPage string `json:"current_page"`
	ContentType string `json:"content_type,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	AgeGroup    string `json:"age_group,omitempty"`
	Navigated   bool   `json:"navigated"`
	TimeSpentMS int64  `json:"time_spent_ms"`
}
