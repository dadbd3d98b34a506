package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxRepeat caps how many key presses one request may send.
const maxRepeat = 50

// macOS key codes.
const (
	keyReturn = 36
	keySpace  = 49
	keyLeft   = 123
	keyRight  = 124
	keyDown   = 125
	keyUp     = 126
)

// KeystrokeParams defines parameters for keystroke and shortcut actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// action is the planned effect of one request.
type action struct {
	steps  int
	effect string
	script string
	click  bool
}

func (a action) run() error {
	if a.click {
		return runCliclick()
	}
	if a.script == "" {
		return nil
	}
	return runAppleScript(a.script)
}

// plan turns a request into the key presses that carry it out.
func plan(req Request) (action, error) {
	switch req.Action {
	case "scroll":
		// Positive values scroll up, one arrow press per line.
		amount := int(float64(req.Value) * 10 * req.Intensity)
		if amount == 0 {
			return action{}, nil
		}
		key := keyUp
		if amount < 0 {
			key = keyDown
		}
		return action{steps: amount, effect: fmt.Sprintf("scroll %+d", amount), script: keyScript(key, abs(amount), nil)}, nil

	case "pan":
		steps := max(1, int(5*req.Intensity))
		key, dir := keyRight, "right"
		if req.Value < 0 {
			key, dir = keyLeft, "left"
		}
		return action{steps: steps, effect: "pan " + dir, script: keyScript(key, steps, nil)}, nil

	case "tab_switch":
		key, dir := keyRight, "next"
		if req.Value < 0 {
			key, dir = keyLeft, "previous"
		}
		return action{steps: 1, effect: dir + " tab", script: keyScript(key, 1, []string{"command", "option"})}, nil

	case "click":
		return action{steps: 1, effect: "click", click: true}, nil

	case "keypress":
		switch keypressKind(req) {
		case "enter":
			return action{steps: 1, effect: "enter", script: keyScript(keyReturn, 1, nil)}, nil
		case "space":
			return action{steps: 1, effect: "space", script: keyScript(keySpace, 1, nil)}, nil
		}
		return action{}, fmt.Errorf("unknown key: %d", req.Value)

	case "keystroke", "shortcut":
		script, err := keystrokeScript(req.Params)
		if err != nil {
			return action{}, err
		}
		return action{steps: 1, effect: req.Action, script: script}, nil
	}

	return action{}, fmt.Errorf("unknown action: %s", req.Action)
}

// keypressKind prefers the command name; bare requests use value 1 for
// enter and 2 for space.
func keypressKind(req Request) string {
	switch req.Command {
	case "enter", "space":
		return req.Command
	}
	switch req.Value {
	case 1:
		return "enter"
	case 2:
		return "space"
	}
	return ""
}

// keyScript presses a key code the given number of times.
func keyScript(code, times int, modifiers []string) string {
	times = min(times, maxRepeat)
	using := modifierList(modifiers)
	if using != "" {
		using = " using {" + using + "}"
	}
	return fmt.Sprintf(`tell application "System Events"
	repeat %d times
		key code %d%s
	end repeat
end tell`, times, code, using)
}

// keystrokeScript builds the script for a keystroke or shortcut request.
func keystrokeScript(params json.RawMessage) (string, error) {
	var p KeystrokeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("failed to parse params: %w", err)
	}
	if p.Key == "" {
		return "", errors.New("key is required")
	}
	return buildKeystrokeScript(p.Key, p.Modifiers), nil
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	key = strings.ReplaceAll(key, `"`, `\"`)
	if list := modifierList(modifiers); list != "" {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, list)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
}

func modifierList(modifiers []string) string {
	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}
	return strings.Join(appleModifiers, ", ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
