// Package plugin discovers desktop action plugins and runs them as child
// processes speaking JSON over stdin and stdout.
package plugin

import (
	"encoding/json"

	"github.com/ayusman/haptic/internal/command"
)

// ManifestFile is the manifest name looked up in each plugin directory.
const ManifestFile = "plugin.json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to the plugin's stdin. The command fields mirror
// command.Command; Params carries free-form arguments for generic actions.
type Request struct {
	Action      string          `json:"action"`
	Value       int             `json:"value"`
	Direction   string          `json:"direction,omitempty"`
	Intensity   float64         `json:"intensity"`
	GestureType string          `json:"gesture_type,omitempty"`
	Command     string          `json:"command,omitempty"`
	ObjectLabel string          `json:"object_label,omitempty"`
	Gesture     string          `json:"gesture,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds the request for a resolved command.
func NewRequest(cmd *command.Command, config json.RawMessage) *Request {
	return &Request{
		Action:      cmd.Action,
		Value:       cmd.Value,
		Direction:   string(cmd.Direction),
		Intensity:   cmd.Intensity,
		GestureType: string(cmd.GestureType),
		Command:     cmd.Name,
		ObjectLabel: cmd.Label,
		Gesture:     string(cmd.Gesture),
		Config:      config,
	}
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the plugin's manifest lists action.
func (p *Plugin) Handles(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}
