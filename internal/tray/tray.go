// Package tray provides the system tray menu for the haptic server.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/haptic/internal/command"
)

// Tray is the system tray menu. Callbacks run outside its lock.
type Tray struct {
	onToggle   func(enabled bool)
	onReset    func() string
	onSettings func()
	onQuit     func()
	enabled    bool
	last       string
	mu         sync.RWMutex

	menuToggle      *systray.MenuItem
	menuLastCommand *systray.MenuItem
}

// New creates a Tray showing the given tracking state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback for the tracking toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnReset sets the callback for "Reset Session". It returns the new session ID.
func (t *Tray) OnReset(fn func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnSettings sets the callback for "Open Settings...".
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for "Quit".
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Haptic")
	systray.SetTooltip("Haptic object tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle object tracking")
	systray.AddSeparator()
	t.menuLastCommand = systray.AddMenuItem(lastTitle(t.last), "Last command sent")
	t.menuLastCommand.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuReset := systray.AddMenuItem("Reset Session", "Clear motion history")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Haptic")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleReset() {
	t.mu.RLock()
	callback := t.onReset
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	t.setLast("")
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetEnabled updates the toggle without firing OnToggle, for changes made
// elsewhere such as the HTTP API.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastCommand shows cmd as the last command sent.
func (t *Tray) SetLastCommand(cmd *command.Command) {
	if cmd == nil {
		t.setLast("")
		return
	}
	t.setLast(Describe(cmd))
}

func (t *Tray) setLast(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = s
	if t.menuLastCommand != nil {
		t.menuLastCommand.SetTitle(lastTitle(s))
	}
}

// IsEnabled returns the tracking state the menu shows.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastCommand returns the text of the last command shown.
func (t *Tray) LastCommand() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Describe formats a command for the menu, e.g. "coffee mug up: volume_up (+3)".
func Describe(cmd *command.Command) string {
	name := cmd.Name
	if name == "" {
		name = cmd.Action
	}
	if cmd.Label == "" {
		return fmt.Sprintf("%s (%+d)", name, cmd.Value)
	}
	return fmt.Sprintf("%s %s: %s (%+d)", cmd.Label, cmd.Gesture, name, cmd.Value)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func lastTitle(s string) string {
	if s == "" {
		return "Last: none"
	}
	return "Last: " + s
}
