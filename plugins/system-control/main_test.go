package main

import (
	"strings"
	"testing"
)

func TestPlan_Volume(t *testing.T) {
	cfg := Config{VolumeStep: defaultVolumeStep}

	tests := []struct {
		name      string
		value     int
		intensity float64
		steps     int
	}{
		{"full up", 3, 1.0, 3},
		{"truncated", 3, 0.8, 2},
		{"down", -2, 0.6, -1},
		{"rounds to nothing", 1, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := plan(Request{Action: "adjust_volume", Value: tt.value, Intensity: tt.intensity}, cfg)
			if err != nil {
				t.Fatalf("plan() error = %v", err)
			}
			if act.steps != tt.steps {
				t.Errorf("steps = %d, want %d", act.steps, tt.steps)
			}
			if tt.steps == 0 && act.script != "" {
				t.Errorf("zero steps should not produce a script, got %q", act.script)
			}
		})
	}
}

func TestPlan_VolumeScriptUsesStep(t *testing.T) {
	act, _ := plan(Request{Action: "adjust_volume", Value: -3, Intensity: 1}, Config{VolumeStep: 5})
	if !strings.Contains(act.script, "+ -15)") {
		t.Errorf("expected a -15%% change, got %q", act.script)
	}
}

func TestPlan_Brightness(t *testing.T) {
	act, err := plan(Request{Action: "adjust_brightness", Value: -3, Intensity: 1}, Config{})
	if err != nil {
		t.Fatalf("plan() error = %v", err)
	}
	if act.steps != -3 {
		t.Errorf("steps = %d, want -3", act.steps)
	}
	if !strings.Contains(act.script, "repeat 3 times") || !strings.Contains(act.script, "key code 145") {
		t.Errorf("unexpected script %q", act.script)
	}
}

func TestPlan_Media(t *testing.T) {
	tests := []struct {
		req    Request
		effect string
	}{
		{Request{Action: "media", Command: "play_pause", Value: 3}, "play_pause"},
		{Request{Action: "media", Command: "mute", Value: 6}, "mute"},
		{Request{Action: "media", Value: 1}, "play_pause"},
		{Request{Action: "media", Value: 2}, "mute"},
	}
	for _, tt := range tests {
		act, err := plan(tt.req, Config{})
		if err != nil {
			t.Errorf("plan(%+v) error = %v", tt.req, err)
			continue
		}
		if act.effect != tt.effect {
			t.Errorf("plan(%+v) effect = %q, want %q", tt.req, act.effect, tt.effect)
		}
	}

	if _, err := plan(Request{Action: "media", Value: 9}, Config{}); err == nil {
		t.Error("expected error for unknown media control")
	}
}

func TestPlan_UnknownAction(t *testing.T) {
	if _, err := plan(Request{Action: "scroll"}, Config{}); err == nil {
		t.Error("expected error for an action this plugin does not handle")
	}
}

func TestParseConfig(t *testing.T) {
	cfg := parseConfig([]byte(`{"simulate": true, "volume_step": 0}`))
	if !cfg.Simulate {
		t.Error("simulate should be honored")
	}
	if cfg.VolumeStep != defaultVolumeStep {
		t.Errorf("volume_step = %d, want default", cfg.VolumeStep)
	}

	t.Setenv("HAPTIC_SIMULATE", "1")
	if !parseConfig(nil).Simulate {
		t.Error("HAPTIC_SIMULATE should force simulation")
	}
}
