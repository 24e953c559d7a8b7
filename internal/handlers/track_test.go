package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyland-backend/internal/services"
)

func TestHeartbeatHandler_InvalidBody(t *testing.T) {
	h := NewTrackHandler(services.NewTrackingService(nil, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/track/heartbeat", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.Heartbeat(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", resp.Error.Code)
	}
}

func TestHeartbeatHandler_MissingFields(t *testing.T) {
	h := NewTrackHandler(services.NewTrackingService(nil, nil), nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing session_id", map[string]interface{}{"current_page": "/stories/1"}},
		{"missing current_page", map[string]interface{}{"session_id": "abc"}},
		{"negative time spent", map[string]interface{}{
			"session_id": "abc", "current_page": "/", "time_spent_ms": -5,
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jsonBody, _ := json.Marshal(tc.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/track/heartbeat", bytes.NewReader(jsonBody))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			h.Heartbeat(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}
