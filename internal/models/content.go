package models

import (
	"time"

	"github.com/google/uuid"
)

type ContentItem struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"` // "story" | "video" | "post"
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Body         *string   `json:"body"`
	MediaURL     *string   `json:"media_url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	AgeGroup     *AgeGroup `json:"age_group"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ContentItemRequest struct {
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Body         *string `json:"body"`
	MediaURL     *string `json:"media_url"`
	ThumbnailURL *string `json:"thumbnail_url"`
	AgeGroup     *string `json:"age_group"`
	IsPublished  *bool   `json:"is_published"`
}
