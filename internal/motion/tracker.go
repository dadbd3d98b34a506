// Package motion tracks labeled points across frames and turns their
// frame-to-frame displacement into motion samples.
package motion

import (
	"math"
	"time"

	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gesture"
)

// Tracker defaults.
const (
	// DefaultThreshold is the minimum magnitude that produces a sample.
	DefaultThreshold = 5.0
	// DefaultHistorySize is the number of recent frames kept for inspection.
	DefaultHistorySize = 5
)

// Sample is the motion of one labeled object between two frames.
type Sample struct {
	Label      string              `json:"label"`
	Affordance detector.Affordance `json:"affordance"`
	Gesture    gesture.Category    `json:"gesture"`
	DeltaX     float64             `json:"delta_x"`
	DeltaY     float64             `json:"delta_y"`
	Magnitude  float64             `json:"magnitude"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Frame is one entry of the recent-frame history.
type Frame struct {
	Timestamp time.Time
	Points    []detector.DetectedPoint
}

// Config holds tracker options.
type Config struct {
	// Threshold is the minimum magnitude that produces a sample. Motion at
	// or above it is emitted.
	Threshold float64
	// HistorySize bounds the recent-frame buffer. Zero disables it.
	HistorySize int
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		HistorySize: DefaultHistorySize,
	}
}

// Tracker owns the last-seen position of every label in one tracking session.
//
// A Tracker is not safe for concurrent use. The pipeline that owns it
// processes one frame at a time.
type Tracker struct {
	config   Config
	previous map[string]detector.Point
	history  []Frame
}

// NewTracker creates a tracker. A non-positive threshold falls back to
// DefaultThreshold and a negative history size to zero.
func NewTracker(config Config) *Tracker {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.HistorySize < 0 {
		config.HistorySize = 0
	}
	return &Tracker{
		config:   config,
		previous: make(map[string]detector.Point),
		history:  make([]Frame, 0, config.HistorySize),
	}
}

// Update records pos as the latest position of label and returns the
// displacement from the previous one. The first sighting of a label returns
// (0, 0). The stored position is always replaced, whether or not the caller
// goes on to emit a sample.
func (t *Tracker) Update(label string, pos detector.Point) (dx, dy float64) {
	prev, ok := t.previous[label]
	if !ok {
		prev = pos
	}

	dx = pos.X - prev.X
	dy = pos.Y - prev.Y

	t.previous[label] = pos
	return dx, dy
}

// Process runs one frame through the tracker. Each point is updated,
// classified and kept as a sample if its magnitude reaches the threshold.
// Points are handled in order; there is no interaction between labels.
func (t *Tracker) Process(points []detector.DetectedPoint, now time.Time) []Sample {
	samples := make([]Sample, 0, len(points))

	for _, p := range points {
		dx, dy := t.Update(p.Label, p.Position)
		magnitude := math.Hypot(dx, dy)

		if magnitude < t.config.Threshold {
			continue
		}

		samples = append(samples, Sample{
			Label:      p.Label,
			Affordance: p.Affordance,
			Gesture:    gesture.Classify(dx, dy, magnitude),
			DeltaX:     dx,
			DeltaY:     dy,
			Magnitude:  magnitude,
			Timestamp:  now,
		})
	}

	t.remember(points, now)
	return samples
}

// remember appends the frame to the bounded history, evicting the oldest.
func (t *Tracker) remember(points []detector.DetectedPoint, now time.Time) {
	if t.config.HistorySize == 0 {
		return
	}

	if len(t.history) >= t.config.HistorySize {
		copy(t.history, t.history[1:])
		t.history = t.history[:t.config.HistorySize-1]
	}
	t.history = append(t.history, Frame{
		Timestamp: now,
		Points:    append([]detector.DetectedPoint(nil), points...),
	})
}

// Position returns the last recorded position of label.
func (t *Tracker) Position(label string) (detector.Point, bool) {
	p, ok := t.previous[label]
	return p, ok
}

// Labels returns the number of labels currently tracked.
func (t *Tracker) Labels() int {
	return len(t.previous)
}

// History returns a copy of the recent-frame buffer, oldest first.
func (t *Tracker) History() []Frame {
	return append([]Frame(nil), t.history...)
}

// Reset forgets every label and the frame history.
func (t *Tracker) Reset() {
	t.previous = make(map[string]detector.Point)
	t.history = t.history[:0]
}
