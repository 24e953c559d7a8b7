package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"storyland-backend/internal/models"
	"storyland-backend/internal/repository"
)

var validAgeGroups = map[string]bool{
	string(models.AgeGroup0to3):  true,
	string(models.AgeGroup3to6):  true,
	string(models.AgeGroup6to9):  true,
	string(models.AgeGroup9to12): true,
}

type ContentService struct {
	contentRepo *repository.ContentRepo
}

func NewContentService(contentRepo *repository.ContentRepo) *ContentService {
	return &ContentService{contentRepo: contentRepo}
}

func (s *ContentService) Create(ctx context.Context, kind string, req models.ContentItemRequest) (*models.ContentItem, error) {
	fieldErrors := make(map[string]string)
	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	}
	if req.AgeGroup != nil && !validAgeGroups[*req.AgeGroup] {
		fieldErrors["age_group"] = "Unknown age group"
	}
	if kind == "video" && req.MediaURL == nil {
		fieldErrors["media_url"] = "Videos require a media URL"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	item := &models.ContentItem{
		Kind:         kind,
		Title:        req.Title,
		Description:  req.Description,
		Body:         req.Body,
		MediaURL:     req.MediaURL,
		ThumbnailURL: req.ThumbnailURL,
	}
	if req.AgeGroup != nil {
		ag := models.AgeGroup(*req.AgeGroup)
		item.AgeGroup = &ag
	}
	if req.IsPublished != nil {
		item.IsPublished = *req.IsPublished
	}

	if err := s.contentRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ContentService) Get(ctx context.Context, kind string, id uuid.UUID) (*models.ContentItem, error) {
	item, err := s.contentRepo.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Content not found"}
		}
		return nil, err
	}
	return item, nil
}

func (s *ContentService) List(ctx context.Context, kind string, publishedOnly bool, limit, offset int) ([]*models.ContentItem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contentRepo.ListByKind(ctx, kind, publishedOnly, limit, offset)
}

func (s *ContentService) Update(ctx context.Context, kind string, id uuid.UUID, req models.ContentItemRequest) (*models.ContentItem, error) {
	item, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	}
	if req.AgeGroup != nil && !validAgeGroups[*req.AgeGroup] {
		fieldErrors["age_group"] = "Unknown age group"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	item.Title = req.Title
	item.Description = req.Description
	item.Body = req.Body
	item.MediaURL = req.MediaURL
	item.ThumbnailURL = req.ThumbnailURL
	item.AgeGroup = nil
	if req.AgeGroup != nil {
		ag := models.AgeGroup(*req.AgeGroup)
		item.AgeGroup = &ag
	}
	if req.IsPublished != nil {
		item.IsPublished = *req.IsPublished
	}

	if err := s.contentRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ContentService) Delete(ctx context.Context, kind string, id uuid.UUID) error {
	deleted, err := s.contentRepo.Delete(ctx, kind, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{Message: "Content not found"}
	}
	return nil
}
