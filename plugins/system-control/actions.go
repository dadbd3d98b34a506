package main

import "fmt"

// defaultVolumeStep is the output volume change per step, in percent.
const defaultVolumeStep = 6

// macOS key codes for the brightness and play/pause keys.
const (
	keyBrightnessUp   = 144
	keyBrightnessDown = 145
	keyPlayPause      = 100
)

// action is the planned effect of one request.
type action struct {
	steps  int
	effect string
	script string
}

// plan turns a request into the steps to take and the script that takes them.
// A zero step count is a successful no-op.
func plan(req Request, cfg Config) (action, error) {
	switch req.Action {
	case "adjust_volume":
		steps := int(float64(req.Value) * req.Intensity)
		if steps == 0 {
			return action{}, nil
		}
		return action{
			steps:  steps,
			effect: signed("volume", steps),
			script: fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, steps*cfg.VolumeStep),
		}, nil

	case "adjust_brightness":
		steps := int(float64(req.Value) * req.Intensity)
		if steps == 0 {
			return action{}, nil
		}
		key := keyBrightnessUp
		if steps < 0 {
			key = keyBrightnessDown
		}
		return action{
			steps:  steps,
			effect: signed("brightness", steps),
			script: repeatKey(key, abs(steps)),
		}, nil

	case "media":
		switch mediaKind(req) {
		case "play_pause":
			return action{steps: 1, effect: "play_pause", script: repeatKey(keyPlayPause, 1)}, nil
		case "mute":
			return action{steps: 1, effect: "mute", script: `set volume output muted (not (output muted of (get volume settings)))`}, nil
		}
		return action{}, fmt.Errorf("unknown media control: %d", req.Value)
	}

	return action{}, fmt.Errorf("unknown action: %s", req.Action)
}

// mediaKind prefers the command name; bare requests use value 1 for
// play/pause and 2 for mute.
func mediaKind(req Request) string {
	switch req.Command {
	case "play_pause", "mute":
		return req.Command
	}
	switch req.Value {
	case 1:
		return "play_pause"
	case 2:
		return "mute"
	}
	return ""
}

func repeatKey(code, times int) string {
	return fmt.Sprintf(`tell application "System Events"
	repeat %d times
		key code %d
	end repeat
end tell`, times, code)
}

func signed(what string, steps int) string {
	return fmt.Sprintf("%s %+d", what, steps)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
