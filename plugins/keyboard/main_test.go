package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPlan_Scroll(t *testing.T) {
	tests := []struct {
		value     int
		intensity float64
		steps     int
		key       string
	}{
		{3, 0.8, 24, "key code 126"},
		{-1, 0.5, -5, "key code 125"},
		{1, 0.05, 0, ""},
	}

	for _, tt := range tests {
		act, err := plan(Request{Action: "scroll", Value: tt.value, Intensity: tt.intensity})
		if err != nil {
			t.Fatalf("plan() error = %v", err)
		}
		if act.steps != tt.steps {
			t.Errorf("scroll(%d, %v) steps = %d, want %d", tt.value, tt.intensity, act.steps, tt.steps)
		}
		if !strings.Contains(act.script, tt.key) {
			t.Errorf("scroll(%d, %v) script %q missing %q", tt.value, tt.intensity, act.script, tt.key)
		}
	}
}

func TestPlan_Pan(t *testing.T) {
	tests := []struct {
		value     int
		intensity float64
		steps     int
		effect    string
	}{
		{1, 1.0, 5, "pan right"},
		{-3, 0.5, 2, "pan left"},
		{1, 0.1, 1, "pan right"},
	}

	for _, tt := range tests {
		act, err := plan(Request{Action: "pan", Value: tt.value, Intensity: tt.intensity})
		if err != nil {
			t.Fatalf("plan() error = %v", err)
		}
		if act.steps != tt.steps || act.effect != tt.effect {
			t.Errorf("pan(%d, %v) = %d %q, want %d %q", tt.value, tt.intensity, act.steps, act.effect, tt.steps, tt.effect)
		}
	}
}

func TestPlan_TabSwitch(t *testing.T) {
	act, _ := plan(Request{Action: "tab_switch", Value: -2})
	if act.effect != "previous tab" {
		t.Errorf("effect = %q, want previous tab", act.effect)
	}
	if !strings.Contains(act.script, "key code 123 using {command down, option down}") {
		t.Errorf("unexpected script %q", act.script)
	}
}

func TestPlan_Keypress(t *testing.T) {
	act, err := plan(Request{Action: "keypress", Command: "space", Value: 6})
	if err != nil {
		t.Fatalf("plan() error = %v", err)
	}
	if act.effect != "space" || !strings.Contains(act.script, "key code 49") {
		t.Errorf("unexpected action %+v", act)
	}

	act, _ = plan(Request{Action: "keypress", Value: 1})
	if act.effect != "enter" {
		t.Errorf("value 1 should press enter, got %q", act.effect)
	}

	if _, err := plan(Request{Action: "keypress", Value: 7}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestPlan_Click(t *testing.T) {
	act, err := plan(Request{Action: "click", Value: 3})
	if err != nil {
		t.Fatalf("plan() error = %v", err)
	}
	if !act.click || act.steps != 1 {
		t.Errorf("unexpected action %+v", act)
	}
}

func TestPlan_Keystroke(t *testing.T) {
	params, _ := json.Marshal(KeystrokeParams{Key: "t", Modifiers: []string{"cmd", "shift", "hyper"}})
	act, err := plan(Request{Action: "shortcut", Params: params})
	if err != nil {
		t.Fatalf("plan() error = %v", err)
	}
	want := `tell application "System Events" to keystroke "t" using {command down, shift down}`
	if act.script != want {
		t.Errorf("script = %q, want %q", act.script, want)
	}

	if _, err := plan(Request{Action: "keystroke", Params: json.RawMessage(`{"key": ""}`)}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestKeyScript_CapsRepeat(t *testing.T) {
	if s := keyScript(keyUp, 500, nil); !strings.Contains(s, "repeat 50 times") {
		t.Errorf("expected repeat cap, got %q", s)
	}
}

func TestBuildKeystrokeScript_EscapesQuotes(t *testing.T) {
	got := buildKeystrokeScript(`"`, nil)
	if got != `tell application "System Events" to keystroke "\""` {
		t.Errorf("unexpected script %q", got)
	}
}
