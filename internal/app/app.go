// Package app wires the frame pipeline together: camera, detector, motion
// tracker, command resolver, transport and command log.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/haptic/internal/capture"
	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/motion"
	"github.com/ayusman/haptic/internal/store"
)

// Pipeline timing defaults.
const (
	// IdleFPS is the frame rate when the scene is still.
	IdleFPS = 1
	// ActiveFPS is the frame rate while the scene is changing.
	ActiveFPS = 2
	// IdleTimeout is how long the scene must stay still before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
	// DefaultDetectTimeout caps a single detector call.
	DefaultDetectTimeout = 10 * time.Second
)

// Publisher delivers resolved commands to desktop clients.
type Publisher interface {
	PublishCommand(cmd *command.Command) error
}

// BindingSource returns the current binding table keyed by "label:gestureKey".
type BindingSource interface {
	Table() (map[string]string, error)
}

// CommandLog records emitted commands.
type CommandLog interface {
	Append(rec *store.CommandRecord) error
}

// ObjectRegistry stores objects found by Register.
type ObjectRegistry interface {
	Upsert(o *store.Object) error
}

// Config holds configuration options for the application.
type Config struct {
	Detector  detector.Detector
	Resolver  *command.Resolver
	Publisher Publisher
	Bindings  BindingSource
	Log       CommandLog
	Objects   ObjectRegistry

	// Camera defaults to the device CameraID.
	Camera   capture.Camera
	CameraID int
	// Frames receives every captured frame as JPEG when set.
	Frames *capture.FrameBuffer

	IdleFPS        int
	ActiveFPS      int
	SceneThreshold float64
	DetectTimeout  time.Duration
	Tracker        motion.Config

	Logger *slog.Logger
}

// Status is a snapshot of the pipeline for the API and tray.
type Status struct {
	SessionID       string           `json:"session_id"`
	Enabled         bool             `json:"enabled"`
	Running         bool             `json:"running"`
	TrackedLabels   int              `json:"tracked_labels"`
	FramesProcessed uint64           `json:"frames_processed"`
	CommandsEmitted uint64           `json:"commands_emitted"`
	LastCommand     *command.Command `json:"last_command,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
}

// App is the main application that turns detections into desktop commands.
type App struct {
	config   Config
	camera   capture.Camera
	resolver *command.Resolver
	logger   *slog.Logger

	detMu    sync.RWMutex
	detector detector.Detector

	enabled atomic.Bool

	// trackMu serializes frames; the tracker is owned by whoever holds it.
	trackMu   sync.Mutex
	tracker   *motion.Tracker
	sessionID string

	frames   atomic.Uint64
	commands atomic.Uint64

	mu          sync.RWMutex
	lastCommand *command.Command
	lastError   string
	listeners   []func(*command.Command)

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS < config.IdleFPS {
		config.ActiveFPS = max(ActiveFPS, config.IdleFPS)
	}
	if config.SceneThreshold <= 0 {
		config.SceneThreshold = 1.0 // 1% pixel change
	}
	if config.DetectTimeout <= 0 {
		config.DetectTimeout = DefaultDetectTimeout
	}
	if config.Tracker == (motion.Config{}) {
		config.Tracker = motion.DefaultConfig()
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		resolver:  config.Resolver,
		logger:    config.Logger.With("component", "app"),
		tracker:   motion.NewTracker(config.Tracker),
		sessionID: uuid.New().String(),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}
	if a.detector == nil {
		a.logger.Warn("no detector configured, using mock detector")
		a.detector = detector.NewMockDetector()
	}
	if a.resolver == nil {
		a.resolver = command.NewResolver(nil, command.WithLogger(config.Logger))
	}

	return a
}

// SetEnabled turns tracking on or off. Frames already in flight finish but
// their commands are discarded once tracking is off.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) != enabled {
		a.logger.Info("tracking toggled", "enabled", enabled)
	}
}

// IsEnabled returns whether tracking is on.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// Reset forgets every tracked position and starts a new session. It waits
// for the frame in flight, if any.
func (a *App) Reset() string {
	a.trackMu.Lock()
	defer a.trackMu.Unlock()

	a.tracker.Reset()
	a.sessionID = uuid.New().String()
	a.logger.Info("tracker reset", "session", a.sessionID)
	return a.sessionID
}

// Status returns a snapshot of the pipeline.
func (a *App) Status() Status {
	a.trackMu.Lock()
	labels := a.tracker.Labels()
	session := a.sessionID
	a.trackMu.Unlock()

	a.mu.RLock()
	last := a.lastCommand
	lastErr := a.lastError
	a.mu.RUnlock()

	a.runMu.Lock()
	running := a.cancel != nil
	a.runMu.Unlock()

	return Status{
		SessionID:       session,
		Enabled:         a.IsEnabled(),
		Running:         running,
		TrackedLabels:   labels,
		FramesProcessed: a.frames.Load(),
		CommandsEmitted: a.commands.Load(),
		LastCommand:     last,
		LastError:       lastErr,
	}
}

// History returns the tracker's recent frames.
func (a *App) History() []motion.Frame {
	a.trackMu.Lock()
	defer a.trackMu.Unlock()
	return a.tracker.History()
}

// OnCommand registers fn to be called with every emitted command.
func (a *App) OnCommand(fn func(*command.Command)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// ProcessFrame runs one frame of detections through tracking, classification
// and resolution, then publishes and logs the resulting commands. It does
// nothing while tracking is off.
func (a *App) ProcessFrame(ctx context.Context, points []detector.DetectedPoint) ([]*command.Command, error) {
	if !a.IsEnabled() {
		return nil, nil
	}

	a.trackMu.Lock()
	defer a.trackMu.Unlock()

	table, err := a.bindingTable()
	if err != nil {
		a.setError(err)
		return nil, fmt.Errorf("load bindings: %w", err)
	}

	samples := a.tracker.Process(points, time.Now())
	a.frames.Add(1)

	var emitted []*command.Command
	for _, s := range samples {
		cmd, err := a.resolver.Resolve(ctx, s, table)
		if err != nil {
			// A bad binding must not stop the rest of the frame.
			a.logger.Warn("cannot resolve command", "label", s.Label, "gesture", s.Gesture, "error", err)
			a.setError(err)
			continue
		}
		if cmd == nil {
			a.logger.Debug("no binding", "label", s.Label, "gesture", s.Gesture, "magnitude", s.Magnitude)
			continue
		}
		emitted = append(emitted, cmd)
	}

	if !a.IsEnabled() {
		a.logger.Debug("tracking stopped mid-frame, discarding commands", "count", len(emitted))
		return nil, nil
	}

	for _, cmd := range emitted {
		a.emit(cmd)
	}
	return emitted, nil
}

func (a *App) bindingTable() (command.BindingMap, error) {
	if a.config.Bindings == nil {
		return command.BindingMap{}, nil
	}
	table, err := a.config.Bindings.Table()
	if err != nil {
		return nil, err
	}
	return command.BindingMap(table), nil
}

func (a *App) emit(cmd *command.Command) {
	a.logger.Info("command",
		"label", cmd.Label,
		"gesture", cmd.Gesture,
		"action", cmd.Action,
		"value", cmd.Value,
		"intensity", cmd.Intensity,
	)

	if a.config.Publisher != nil {
		if err := a.config.Publisher.PublishCommand(cmd); err != nil {
			a.logger.Warn("publish failed", "action", cmd.Action, "error", err)
		}
	}

	a.LogCommand(cmd)

	a.commands.Add(1)

	a.mu.Lock()
	a.lastCommand = cmd
	listeners := append(([]func(*command.Command))(nil), a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(cmd)
	}
}

// LogCommand appends cmd to the command log, if one is configured. Commands
// relayed for clients are logged through it as well.
func (a *App) LogCommand(cmd *command.Command) {
	if a.config.Log == nil {
		return
	}
	rec := &store.CommandRecord{
		ObjectLabel: cmd.Label,
		Gesture:     string(cmd.Gesture),
		Command:     cmd.Name,
		Action:      cmd.Action,
		Value:       cmd.Value,
		Direction:   string(cmd.Direction),
		Intensity:   cmd.Intensity,
		GestureType: string(cmd.GestureType),
	}
	if err := a.config.Log.Append(rec); err != nil {
		a.logger.Warn("command log append failed", "error", err)
	}
}

func (a *App) setError(err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
}

// Detect runs the detector on one JPEG frame under the configured timeout.
// Malformed detector output counts as a frame with no detections.
func (a *App) Detect(ctx context.Context, jpeg []byte) ([]detector.DetectedPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.DetectTimeout)
	defer cancel()

	points, err := a.Detector().Detect(ctx, jpeg)
	if errors.Is(err, detector.ErrMalformedOutput) {
		a.logger.Debug("malformed detector output", "error", err)
		return nil, nil
	}
	return points, err
}

// RegisterFrame detects the objects in one JPEG frame and stores them as
// registered objects.
func (a *App) RegisterFrame(ctx context.Context, jpeg []byte) ([]detector.DetectedPoint, error) {
	points, err := a.Detect(ctx, jpeg)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	if a.config.Objects != nil {
		for _, p := range points {
			err := a.config.Objects.Upsert(&store.Object{
				Label:      p.Label,
				Affordance: string(p.Affordance),
				Y:          p.Position.Y,
				X:          p.Position.X,
			})
			if err != nil {
				return nil, fmt.Errorf("store object %q: %w", p.Label, err)
			}
		}
	}

	a.logger.Info("objects registered", "count", len(points))
	return points, nil
}

// Register captures one frame and registers its objects. While the pipeline
// runs the latest buffered frame is used; otherwise the camera is opened for
// the call.
func (a *App) Register(ctx context.Context) ([]detector.DetectedPoint, error) {
	if a.isRunning() && a.config.Frames != nil {
		if jpeg, seq := a.config.Frames.Latest(); seq > 0 {
			return a.RegisterFrame(ctx, jpeg)
		}
	}

	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return nil, fmt.Errorf("open camera: %w", err)
		}
		defer func() {
			if !a.isRunning() {
				a.camera.Close()
			}
		}()
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	jpeg, err := capture.EncodeJPEG(frame, capture.DefaultJPEGQuality)
	frame.Close()
	if err != nil {
		return nil, err
	}

	return a.RegisterFrame(ctx, jpeg)
}

// SetDetector replaces the detector used from the next frame on.
func (a *App) SetDetector(d detector.Detector) {
	a.detMu.Lock()
	defer a.detMu.Unlock()
	a.detector = d
}

// Detector returns the detector in use.
func (a *App) Detector() detector.Detector {
	a.detMu.RLock()
	defer a.detMu.RUnlock()
	return a.detector
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Frames returns the latest-frame buffer, which may be nil.
func (a *App) Frames() *capture.FrameBuffer {
	return a.config.Frames
}
