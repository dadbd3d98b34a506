// Package main provides the keyboard and pointer plugin.
// It sends keystrokes, scrolls and clicks via AppleScript on macOS and
// simulates them elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Value     int             `json:"value"`
	Direction string          `json:"direction"`
	Intensity float64         `json:"intensity"`
	Command   string          `json:"command"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin's own configuration, passed through by the daemon.
type Config struct {
	Simulate bool `json:"simulate"`
}

type result struct {
	Steps     int    `json:"steps"`
	Effect    string `json:"effect,omitempty"`
	Simulated bool   `json:"simulated"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := parseConfig(req.Config)
	act, err := plan(req)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	if !cfg.Simulate {
		if err := act.run(); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	}

	writeSuccessResponse(result{Steps: act.steps, Effect: act.effect, Simulated: cfg.Simulate})
}

func parseConfig(raw json.RawMessage) Config {
	var cfg Config
	if len(raw) > 0 {
		json.Unmarshal(raw, &cfg)
	}
	if runtime.GOOS != "darwin" || os.Getenv("HAPTIC_SIMULATE") == "1" {
		cfg.Simulate = true
	}
	return cfg
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(res result) {
	data, _ := json.Marshal(res)
	resp := Response{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// runCliclick clicks at the pointer using the cliclick tool, since
// AppleScript cannot click at the current pointer position.
func runCliclick() error {
	path, err := exec.LookPath("cliclick")
	if err != nil {
		return fmt.Errorf("click needs cliclick on PATH: %w", err)
	}
	output, err := exec.Command(path, "c:.").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
