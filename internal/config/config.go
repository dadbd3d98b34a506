// Package config loads haptic's runtime configuration from defaults, an
// optional JSON file and environment variables, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override file values.
const (
	EnvAddr            = "HAPTIC_ADDR"
	EnvDataDir         = "HAPTIC_DATA_DIR"
	EnvCamera          = "HAPTIC_CAMERA"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvLogLevel        = "HAPTIC_LOG_LEVEL"
	EnvMotionThreshold = "HAPTIC_MOTION_THRESHOLD"
	EnvServerURL       = "HAPTIC_SERVER_URL"
)

// Detector backends.
const (
	DetectorAuto      = "auto"
	DetectorGemini    = "gemini"
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
)

const maxFileSize = 1 << 20

// Duration is a time.Duration that reads from JSON as "500ms" style strings.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of the server and the desktop daemon.
type Config struct {
	Addr      string `json:"addr"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
	PluginDir string `json:"plugin_dir"`
	LogLevel  string `json:"log_level"`
	Tray      bool   `json:"tray"`

	CameraID  int `json:"camera_id"`
	IdleFPS   int `json:"idle_fps"`
	ActiveFPS int `json:"active_fps"`
	// SceneThreshold is the percentage of changed pixels that wakes the pipeline.
	SceneThreshold float64 `json:"scene_threshold"`

	Detector      string   `json:"detector"`
	GeminiAPIKey  string   `json:"gemini_api_key"`
	GeminiModel   string   `json:"gemini_model"`
	MaxObjects    int      `json:"max_objects"`
	MinConfidence float64  `json:"min_confidence"`
	DetectTimeout Duration `json:"detect_timeout"`

	MotionThreshold float64 `json:"motion_threshold"`
	HistorySize     int     `json:"history_size"`

	Refine        bool     `json:"refine"`
	RefineTimeout Duration `json:"refine_timeout"`

	// ServerURL is the WebSocket endpoint the daemon dials.
	ServerURL      string   `json:"server_url"`
	ReconnectDelay Duration `json:"reconnect_delay"`
	PluginTimeout  Duration `json:"plugin_timeout"`

	// Plugins holds per-plugin configuration keyed by plugin name. It is
	// passed to the plugin with every request.
	Plugins map[string]json.RawMessage `json:"plugins,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := ".haptic"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".haptic")
	}

	return &Config{
		Addr:      ":8080",
		DataDir:   dataDir,
		PluginDir: filepath.Join(dataDir, "plugins"),
		LogLevel:  "info",

		CameraID:       0,
		IdleFPS:        1,
		ActiveFPS:      2,
		SceneThreshold: 1.0,

		Detector:      DetectorAuto,
		MaxObjects:    10,
		DetectTimeout: Duration(10 * time.Second),

		MotionThreshold: 5,
		HistorySize:     5,

		Refine:        false,
		RefineTimeout: Duration(3 * time.Second),

		ServerURL:      "ws://localhost:8080/ws",
		ReconnectDelay: Duration(5 * time.Second),
		PluginTimeout:  Duration(5 * time.Second),
	}
}

// Load builds a Config from defaults, the JSON file at path (if non-empty)
// and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults.
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvGeminiAPIKey); ok && v != "" {
		c.GeminiAPIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookup(EnvCamera); ok && v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCamera, err)
		}
		c.CameraID = id
	}
	if v, ok := lookup(EnvMotionThreshold); ok && v != "" {
		th, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMotionThreshold, err)
		}
		c.MotionThreshold = th
	}
	return nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.CameraID < 0 {
		return fmt.Errorf("camera_id must be >= 0, got %d", c.CameraID)
	}
	if c.IdleFPS <= 0 || c.ActiveFPS <= 0 {
		return fmt.Errorf("idle_fps and active_fps must be positive, got %d and %d", c.IdleFPS, c.ActiveFPS)
	}
	if c.ActiveFPS < c.IdleFPS {
		return fmt.Errorf("active_fps (%d) must not be below idle_fps (%d)", c.ActiveFPS, c.IdleFPS)
	}
	if c.SceneThreshold < 0 || c.SceneThreshold > 100 {
		return fmt.Errorf("scene_threshold must be between 0 and 100, got %f", c.SceneThreshold)
	}
	switch c.Detector {
	case DetectorAuto, DetectorGemini, DetectorMediaPipe, DetectorMock:
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if c.Detector == DetectorGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("detector %q requires %s", DetectorGemini, EnvGeminiAPIKey)
	}
	if c.MaxObjects <= 0 {
		return fmt.Errorf("max_objects must be positive, got %d", c.MaxObjects)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", c.MinConfidence)
	}
	if c.MotionThreshold <= 0 {
		return fmt.Errorf("motion_threshold must be positive, got %f", c.MotionThreshold)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must be >= 0, got %d", c.HistorySize)
	}
	if c.DetectTimeout < 0 || c.RefineTimeout < 0 || c.PluginTimeout < 0 || c.ReconnectDelay < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// DatabasePath returns the sqlite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "haptic.db")
}

// DetectorBackend resolves DetectorAuto to a concrete backend.
func (c *Config) DetectorBackend() string {
	if c.Detector != DetectorAuto {
		return c.Detector
	}
	if c.GeminiAPIKey != "" {
		return DetectorGemini
	}
	return DetectorMock
}
