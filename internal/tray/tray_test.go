package tray

import (
	"testing"

	"github.com/ayusman/haptic/internal/command"
)

func TestTray_Toggle(t *testing.T) {
	tr := New(false)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("unexpected toggle callbacks %v", got)
	}
	if tr.IsEnabled() {
		t.Error("expected tracking to be paused after two toggles")
	}
}

func TestTray_SetEnabled_NoCallback(t *testing.T) {
	tr := New(false)
	called := false
	tr.OnToggle(func(bool) { called = true })

	tr.SetEnabled(true)
	if !tr.IsEnabled() {
		t.Error("expected enabled")
	}
	if called {
		t.Error("SetEnabled must not fire OnToggle")
	}
}

func TestTray_ResetClearsLastCommand(t *testing.T) {
	tr := New(true)
	resets := 0
	tr.OnReset(func() string { resets++; return "session-2" })

	tr.SetLastCommand(&command.Command{Action: command.ActionScroll, Value: 2, Name: "scroll_up"})
	if tr.LastCommand() == "" {
		t.Fatal("expected last command to be set")
	}

	tr.handleReset()
	if resets != 1 {
		t.Errorf("expected reset callback once, got %d", resets)
	}
	if tr.LastCommand() != "" {
		t.Errorf("expected last command cleared, got %q", tr.LastCommand())
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New(true)
	settings, quit := false, false
	tr.OnSettings(func() { settings = true })
	tr.OnQuit(func() { quit = true })

	tr.handleSettings()
	tr.handleQuit()
	if !settings || !quit {
		t.Errorf("settings=%v quit=%v", settings, quit)
	}

	// No callbacks set.
	New(true).handleSettings()
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		cmd  command.Command
		want string
	}{
		{command.Command{Action: "adjust_volume", Value: 3, Name: "volume_up", Label: "coffee mug", Gesture: "up"}, "coffee mug up: volume_up (+3)"},
		{command.Command{Action: "scroll", Value: -2, Name: "scroll_down"}, "scroll_down (-2)"},
		{command.Command{Action: "pan", Value: 1}, "pan (+1)"},
	}

	for _, tt := range tests {
		if got := Describe(&tt.cmd); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}
