// Package detector turns camera frames into labeled object points.
package detector

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedOutput is returned when a detector answers with data that
// cannot be parsed into points. Callers treat it as an empty frame.
var ErrMalformedOutput = errors.New("detector: malformed output")

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a JPEG-encoded frame and returns the labeled points
	// it found. Returns an empty slice if nothing was detected.
	Detect(ctx context.Context, frame []byte) ([]DetectedPoint, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for object detection.
type Config struct {
	// MaxObjects is the maximum number of objects kept per frame (default: 10).
	MaxObjects int

	// MinConfidence drops points scored below this value (0.0-1.0).
	MinConfidence float64

	// Timeout caps a single Detect call. Zero means no cap beyond the caller's context.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxObjects:    10,
		MinConfidence: 0,
		Timeout:       10 * time.Second,
	}
}
