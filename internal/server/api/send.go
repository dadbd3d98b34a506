package api

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/ayusman/haptic/internal/command"
)

// Publisher delivers a command to the desktop clients.
type Publisher interface {
	PublishCommand(cmd *command.Command) error
}

// SendCommandHandler relays a hand-built command to the desktop, bypassing
// detection. It is used to test desktop wiring.
type SendCommandHandler struct {
	publisher Publisher
	specs     command.SpecTable
	logger    *slog.Logger
}

// NewSendCommandHandler creates a SendCommandHandler.
func NewSendCommandHandler(publisher Publisher, specs command.SpecTable, logger *slog.Logger) *SendCommandHandler {
	if specs == nil {
		specs = command.DefaultSpecs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendCommandHandler{publisher: publisher, specs: specs, logger: logger}
}

// sendCommandRequest names either a command from the table, or a raw action.
type sendCommandRequest struct {
	Command     string              `json:"command"`
	Action      string              `json:"action"`
	Value       int                 `json:"value"`
	Direction   command.Direction   `json:"direction"`
	Intensity   *float64            `json:"intensity"`
	GestureType command.GestureType `json:"gesture_type"`
}

// ServeHTTP handles POST /api/send-command.
func (h *SendCommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendCommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	cmd, err := h.build(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.PublishCommand(cmd); err != nil {
		h.logger.Warn("failed to publish command", "action", cmd.Action, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to publish command")
		return
	}

	h.logger.Info("command sent", "action", cmd.Action, "value", cmd.Value)
	writeJSON(w, http.StatusAccepted, cmd)
}

func (h *SendCommandHandler) build(req sendCommandRequest) (*command.Command, error) {
	intensity := 1.0
	if req.Intensity != nil {
		intensity = *req.Intensity
		if intensity < 0 || intensity > 1 {
			return nil, errors.New("intensity must be within [0, 1]")
		}
	}

	if req.Command != "" {
		return h.specs.Manual(req.Command, intensity)
	}

	if !slices.Contains(h.specs.Actions(), req.Action) {
		return nil, errors.New("unknown action: " + req.Action)
	}

	cmd := &command.Command{
		Action:      req.Action,
		Value:       req.Value,
		Direction:   req.Direction,
		Intensity:   intensity,
		GestureType: req.GestureType,
	}
	if cmd.Direction == "" {
		cmd.Direction = command.DirectionUp
		if cmd.Value < 0 {
			cmd.Direction = command.DirectionDown
		}
	}
	if cmd.Direction != command.DirectionUp && cmd.Direction != command.DirectionDown {
		return nil, errors.New("direction must be up or down")
	}
	if cmd.GestureType == "" {
		cmd.GestureType = command.GestureDiscrete
	}
	if !cmd.GestureType.Valid() {
		return nil, errors.New("gesture_type must be continuous or discrete")
	}
	return cmd, nil
}
