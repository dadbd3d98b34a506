package command

import (
	"fmt"
	"math"
	"sort"
)

// Spec describes how a command name maps onto a desktop action.
// The sign of BaseValue gives the direction.
type Spec struct {
	Action    string `json:"action"`
	BaseValue int    `json:"base_value"`
}

// SpecTable maps command names to specs.
type SpecTable map[string]Spec

// Desktop action names understood by the daemon.
const (
	ActionAdjustVolume     = "adjust_volume"
	ActionAdjustBrightness = "adjust_brightness"
	ActionScroll           = "scroll"
	ActionPan              = "pan"
	ActionTabSwitch        = "tab_switch"
	ActionClick            = "click"
	ActionKeypress         = "keypress"
	ActionMedia            = "media"
)

// DefaultSpecs returns the fixed command table.
func DefaultSpecs() SpecTable {
	return SpecTable{
		"volume_up":       {Action: ActionAdjustVolume, BaseValue: 1},
		"volume_down":     {Action: ActionAdjustVolume, BaseValue: -1},
		"brightness_up":   {Action: ActionAdjustBrightness, BaseValue: 1},
		"brightness_down": {Action: ActionAdjustBrightness, BaseValue: -1},
		"scroll_up":       {Action: ActionScroll, BaseValue: 1},
		"scroll_down":     {Action: ActionScroll, BaseValue: -1},
		"pan_left":        {Action: ActionPan, BaseValue: -1},
		"pan_right":       {Action: ActionPan, BaseValue: 1},
		"previous_tab":    {Action: ActionTabSwitch, BaseValue: -1},
		"next_tab":        {Action: ActionTabSwitch, BaseValue: 1},
		"click":           {Action: ActionClick, BaseValue: 1},
		"enter":           {Action: ActionKeypress, BaseValue: 1},
		"space":           {Action: ActionKeypress, BaseValue: 2},
		"play_pause":      {Action: ActionMedia, BaseValue: 1},
		"mute":            {Action: ActionMedia, BaseValue: 2},
	}
}

// Names returns the command names in sorted order.
func (t SpecTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Actions returns the distinct action names in sorted order.
func (t SpecTable) Actions() []string {
	seen := make(map[string]bool)
	var actions []string
	for _, s := range t {
		if !seen[s.Action] {
			seen[s.Action] = true
			actions = append(actions, s.Action)
		}
	}
	sort.Strings(actions)
	return actions
}

// Manual builds the command for name at the given intensity, as if a gesture
// of that strength had triggered it. The result carries no object label.
func (t SpecTable) Manual(name string, intensity float64) (*Command, error) {
	spec, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	intensity = math.Max(0, math.Min(1, intensity))
	direction := DirectionDown
	if spec.BaseValue > 0 {
		direction = DirectionUp
	}
	gestureType := GestureContinuous
	if spec.Action == ActionClick || spec.Action == ActionKeypress {
		gestureType = GestureDiscrete
	}

	return &Command{
		Action:      spec.Action,
		Value:       int(math.Round(float64(spec.BaseValue) * LocalMultiplier(intensity))),
		Direction:   direction,
		Intensity:   intensity,
		GestureType: gestureType,
		Name:        name,
	}, nil
}
