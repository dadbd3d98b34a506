// Package transport carries commands between the tracking server and
// desktop daemons over WebSocket. Every frame is a JSON envelope
// {"event": name, "data": payload}.
//
// Clients send register with their role, and send_command or
// gesture_interpreted to have a command relayed. The server emits
// motion_command to every client, including the sender, and announces
// desktop_connected and desktop_disconnected as daemons come and go.
package transport

import (
	"encoding/json"
	"fmt"
)

// Event names.
const (
	EventRegister            = "register"
	EventMotionCommand       = "motion_command"
	EventSendCommand         = "send_command"
	EventGestureInterpreted  = "gesture_interpreted"
	EventDesktopConnected    = "desktop_connected"
	EventDesktopDisconnected = "desktop_disconnected"
	EventTracking            = "tracking"
)

// Client roles.
const (
	RoleDesktop = "desktop"
	RoleMobile  = "mobile"
)

// Envelope is one WebSocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds the wire form of an event. A nil data omits the field.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event")
	}
	return env, nil
}

// commandPayload extracts what gesture_interpreted should relay.
func commandPayload(data json.RawMessage) json.RawMessage {
	var wrapper struct {
		Command json.RawMessage `json:"command"`
	}
	if json.Unmarshal(data, &wrapper) == nil && len(wrapper.Command) > 0 && string(wrapper.Command) != "null" {
		return wrapper.Command
	}
	return data
}
