package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// indexTip is the MediaPipe landmark tracked as the hand's position.
const indexTip = 8

// idleShutdown stops the Python service after this long without frames.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector with a local Python MediaPipe hand
// service. Each detected hand becomes one point labeled "<handedness> hand"
// positioned at the index finger tip.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findFirst("scripts/mediapipe_service.py")
	if scriptPath == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found")
	}

	return &MediaPipeDetector{
		config: config,
		script: scriptPath,
	}, nil
}

// Detect writes the JPEG frame to the service and reads back the hands.
// A cancelled ctx kills the service; the next call starts a fresh one.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame []byte) ([]DetectedPoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, nil
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	// Frames are length-prefixed: 4 bytes big-endian, then the JPEG.
	msg := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(frame)), uint32(len(frame)))
	msg = append(msg, frame...)
	if _, err := d.stdin.Write(msg); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("mediapipe: write frame: %w", err)
	}

	type reply struct {
		line string
		err  error
	}
	replies := make(chan reply, 1)
	stdout := d.stdout
	go func() {
		line, err := stdout.ReadString('\n')
		replies <- reply{line, err}
	}()

	select {
	case <-ctx.Done():
		if d.cmd != nil && d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		d.shutdown()
		return nil, ctx.Err()
	case r := <-replies:
		if r.err != nil {
			d.shutdown()
			return nil, fmt.Errorf("mediapipe: read response: %w", r.err)
		}
		d.resetIdleTimer()
		return parseHands([]byte(r.line), d.config)
	}
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := findFirst("venv/bin/python")
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.script)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mediapipe: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mediapipe: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mediapipe: start %s: %w", d.script, err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	return nil
}

// shutdown closes stdin and waits for the service. Callers hold d.mu.
func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()

	d.started = false
	d.cmd, d.stdin, d.stdout = nil, nil, nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// parseHands converts one service response line into hand points.
func parseHands(line []byte, config Config) ([]DetectedPoint, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	points := make([]DetectedPoint, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) <= indexTip {
			continue
		}
		if h.Score < config.MinConfidence {
			continue
		}

		label := "hand"
		if h.Handedness != "" {
			label = NormalizeLabel(h.Handedness + " hand")
		}

		tip := h.Points[indexTip]
		points = append(points, DetectedPoint{
			Label:      label,
			Position:   PointYX(roundCoord(tip.Y*CoordinateRange), roundCoord(tip.X*CoordinateRange)),
			Affordance: AffordanceTranslation,
			Confidence: clamp(h.Score, 0, 1),
		})

		if config.MaxObjects > 0 && len(points) >= config.MaxObjects {
			break
		}
	}

	return points, nil
}

// findFirst resolves rel against the working directory, its parents, the
// executable's directory and ~/.haptic, returning the first that exists.
func findFirst(rel string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		rel,
		filepath.Join("..", rel),
		filepath.Join("..", "..", rel),
		filepath.Join(execDir, rel),
		filepath.Join(os.Getenv("HOME"), ".haptic", strings.TrimPrefix(rel, "scripts/")),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
