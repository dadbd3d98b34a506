package api

import (
	"log/slog"
	"net/http"

	"github.com/ayusman/haptic/internal/app"
	"github.com/ayusman/haptic/internal/store"
	"github.com/ayusman/haptic/internal/transport"
)

// Tracker is the tracking control surface of the pipeline.
type Tracker interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
	Reset() string
	Status() app.Status
}

// Notifier broadcasts an event to connected clients.
type Notifier interface {
	Emit(event string, data any) error
}

// TrackingHandler toggles and resets tracking.
type TrackingHandler struct {
	tracker  Tracker
	settings *store.SettingsRepository
	notifier Notifier
	logger   *slog.Logger
}

// NewTrackingHandler creates a TrackingHandler. settings and notifier may be
// nil; when set, the enabled flag is persisted and broadcast.
func NewTrackingHandler(tracker Tracker, settings *store.SettingsRepository, notifier Notifier, logger *slog.Logger) *TrackingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingHandler{tracker: tracker, settings: settings, notifier: notifier, logger: logger}
}

type setTrackingRequest struct {
	Enabled *bool `json:"enabled"`
}

type resetResponse struct {
	SessionID string `json:"session_id"`
}

// ServeHTTP routes /api/tracking and /api/tracking/reset.
func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch itemPath(r, "/api/tracking") {
	case "":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.tracker.Status())
		case http.MethodPost, http.MethodPut:
			h.set(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "reset":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, resetResponse{SessionID: h.tracker.Reset()})
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *TrackingHandler) set(w http.ResponseWriter, r *http.Request) {
	var req setTrackingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	enabled := *req.Enabled
	h.tracker.SetEnabled(enabled)

	if h.settings != nil {
		if err := h.settings.SetBool(store.SettingTrackingEnabled, enabled); err != nil {
			h.logger.Warn("failed to persist tracking setting", "error", err)
		}
	}
	if h.notifier != nil {
		if err := h.notifier.Emit(transport.EventTracking, map[string]bool{"enabled": enabled}); err != nil {
			h.logger.Warn("failed to broadcast tracking state", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, h.tracker.Status())
}
