package handlers

import (
	"encoding/json"
	"net/http"

	"storyland-backend/internal/models"
	"storyland-backend/internal/observability"
	"storyland-backend/internal/services"
)

// TrackHandler is the public ingestion surface. No auth: the tracking
// snippet on the site calls it for every visitor.
type TrackHandler struct {
	trackingService *services.TrackingService
	metrics         *observability.Metrics
}

func NewTrackHandler(trackingService *services.TrackingService, metrics *observability.Metrics) *TrackHandler {
	return &TrackHandler{trackingService: trackingService, metrics: metrics}
}

func (h *TrackHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.trackingService.RecordHeartbeat(r.Context(), req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.Heartbeats.Inc()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}
