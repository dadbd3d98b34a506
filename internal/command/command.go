// Package command resolves motion samples into desktop commands through the
// user's binding table and the fixed command specs.
package command

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gesture"
	"github.com/ayusman/haptic/internal/motion"
)

// Direction is the sign of a command's value.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// GestureType says whether a command is part of a continuous motion or a
// one-shot press.
type GestureType string

const (
	GestureContinuous GestureType = "continuous"
	GestureDiscrete   GestureType = "discrete"
)

// Valid reports whether g is a known gesture type.
func (g GestureType) Valid() bool {
	return g == GestureContinuous || g == GestureDiscrete
}

// Multiplier bounds accepted from a refiner.
const (
	MinMultiplier = 1.0
	MaxMultiplier = 5.0
)

// Command is an actionable desktop command.
type Command struct {
	Action      string      `json:"action"`
	Value       int         `json:"value"`
	Direction   Direction   `json:"direction"`
	Intensity   float64     `json:"intensity"`
	GestureType GestureType `json:"gesture_type"`

	// Where the command came from. Informational only.
	Name    string           `json:"command,omitempty"`
	Label   string           `json:"object_label,omitempty"`
	Gesture gesture.Category `json:"gesture,omitempty"`
}

// Resolver turns samples into commands.
type Resolver struct {
	specs         SpecTable
	refiner       Refiner
	refineTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRefiner sets the optional refinement collaborator.
func WithRefiner(r Refiner) Option {
	return func(res *Resolver) { res.refiner = r }
}

// WithRefineTimeout caps each refinement call. Zero leaves only the caller's context.
func WithRefineTimeout(d time.Duration) Option {
	return func(res *Resolver) { res.refineTimeout = d }
}

// WithLogger sets the resolver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(res *Resolver) { res.logger = l }
}

// NewResolver creates a resolver over the given spec table.
// A nil table uses DefaultSpecs.
func NewResolver(specs SpecTable, opts ...Option) *Resolver {
	if specs == nil {
		specs = DefaultSpecs()
	}
	r := &Resolver{
		specs:  specs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "command.resolver")
	return r
}

// Specs returns the resolver's spec table.
func (r *Resolver) Specs() SpecTable {
	return r.specs
}

// Resolve produces the command for s.
//
// It returns nil, nil when bindings has no entry for the sample's key; that
// is the normal state for unbound objects. A binding that names an unknown
// command yields a *ConfigurationError. Refiner failures are never returned.
func (r *Resolver) Resolve(ctx context.Context, s motion.Sample, bindings Bindings) (*Command, error) {
	key := Key(s.Label, string(s.Gesture))

	name, ok := bindings.Lookup(key)
	if !ok {
		return nil, nil
	}

	spec, ok := r.specs[name]
	if !ok {
		return nil, &ConfigurationError{Key: key, Command: name}
	}

	intensity := Intensity(s.Magnitude)
	gestureType := GestureContinuous
	if s.Affordance == detector.AffordancePress {
		gestureType = GestureDiscrete
	}
	multiplier := LocalMultiplier(intensity)

	if ref, ok := r.refine(ctx, s, name); ok {
		if ref.GestureType != nil {
			gestureType = *ref.GestureType
		}
		if ref.Intensity != nil {
			intensity = *ref.Intensity
		}
		if ref.ValueMultiplier != nil {
			multiplier = *ref.ValueMultiplier
		}
	}

	direction := DirectionDown
	if spec.BaseValue > 0 {
		direction = DirectionUp
	}

	return &Command{
		Action:      spec.Action,
		Value:       int(math.Round(float64(spec.BaseValue) * multiplier)),
		Direction:   direction,
		Intensity:   intensity,
		GestureType: gestureType,
		Name:        name,
		Label:       s.Label,
		Gesture:     s.Gesture,
	}, nil
}

// refine asks the refiner, if any, and returns only its valid fields.
func (r *Resolver) refine(ctx context.Context, s motion.Sample, name string) (Refinement, bool) {
	if r.refiner == nil {
		return Refinement{}, false
	}

	if r.refineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.refineTimeout)
		defer cancel()
	}

	ref, err := r.refiner.Refine(ctx, RefineRequest{
		Label:      s.Label,
		Gesture:    s.Gesture,
		DeltaX:     s.DeltaX,
		DeltaY:     s.DeltaY,
		Magnitude:  s.Magnitude,
		Affordance: s.Affordance,
		Command:    name,
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrRefinementUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelDebug
		}
		r.logger.Log(ctx, level, "refinement failed, using local values", "label", s.Label, "error", err)
		return Refinement{}, false
	}

	return ref.sanitized(), true
}

// Intensity maps a magnitude onto [0, 1].
func Intensity(magnitude float64) float64 {
	return math.Max(0, math.Min(1, magnitude/100))
}

// LocalMultiplier is ceil(intensity*3), never below 1.
func LocalMultiplier(intensity float64) float64 {
	m := math.Ceil(intensity * 3)
	if m < 1 {
		return 1
	}
	return m
}
