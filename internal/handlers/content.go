package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storyland-backend/internal/models"
	"storyland-backend/internal/services"
)

// ContentHandler serves the story, video, and post catalogues. The
// kind is fixed per route subtree, so one handler covers all three.
type ContentHandler struct {
	contentService *services.ContentService
	kind           string
}

func NewContentHandler(contentService *services.ContentService, kind string) *ContentHandler {
	return &ContentHandler{contentService: contentService, kind: kind}
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	publishedOnly := r.URL.Query().Get("published") == "true"

	items, total, err := h.contentService.List(r.Context(), h.kind, publishedOnly, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if items == nil {
		items = []*models.ContentItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	item, err := h.contentService.Get(r.Context(), h.kind, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ContentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	item, err := h.contentService.Create(r.Context(), h.kind, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	var req models.ContentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	item, err := h.contentService.Update(r.Context(), h.kind, id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	if err := h.contentService.Delete(r.Context(), h.kind, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Content deleted"})
}
