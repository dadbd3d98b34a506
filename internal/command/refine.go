package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gemini"
	"github.com/ayusman/haptic/internal/gesture"
)

// RefineRequest carries one bound motion sample to a refiner.
type RefineRequest struct {
	Label      string
	Gesture    gesture.Category
	DeltaX     float64
	DeltaY     float64
	Magnitude  float64
	Affordance detector.Affordance
	Command    string
}

// Refinement holds the fields a refiner chose to override. Nil means absent.
type Refinement struct {
	GestureType     *GestureType `json:"gesture_type"`
	Intensity       *float64     `json:"intensity"`
	ValueMultiplier *float64     `json:"value_multiplier"`
	Confidence      *float64     `json:"confidence"`
}

// Refiner is an optional collaborator that may tune a command before it is
// emitted. Implementations should return ErrRefinementUnavailable when they
// cannot answer.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (Refinement, error)
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(ctx context.Context, req RefineRequest) (Refinement, error)

// Refine implements Refiner.
func (f RefinerFunc) Refine(ctx context.Context, req RefineRequest) (Refinement, error) {
	return f(ctx, req)
}

// sanitized drops every field that is out of range.
func (r Refinement) sanitized() Refinement {
	var out Refinement
	if r.GestureType != nil && r.GestureType.Valid() {
		out.GestureType = r.GestureType
	}
	if r.Intensity != nil && inRange(*r.Intensity, 0, 1) {
		out.Intensity = r.Intensity
	}
	if r.ValueMultiplier != nil && inRange(*r.ValueMultiplier, MinMultiplier, MaxMultiplier) {
		out.ValueMultiplier = r.ValueMultiplier
	}
	if r.Confidence != nil && inRange(*r.Confidence, 0, 1) {
		out.Confidence = r.Confidence
	}
	return out
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

const refinePrompt = `
Interpret this physical gesture for desktop control and return ONLY valid JSON:

Input:
- Object: %s
- Gesture: %s
- Delta: (%.1f, %.1f)
- Magnitude: %.1f
- Affordance: %s
- Mapped Command: %s

Based on the gesture and magnitude, determine the appropriate intensity (0-1) and value multiplier.

Return JSON only:
{
  "gesture_type": "continuous|discrete",
  "intensity": 0.0-1.0,
  "value_multiplier": 1-5,
  "confidence": 0.0-1.0
}
`

// GeminiRefiner asks Gemini to tune intensity and value multiplier.
type GeminiRefiner struct {
	client *gemini.Client
	logger *slog.Logger
}

// NewGeminiRefiner creates a refiner backed by the given client.
func NewGeminiRefiner(client *gemini.Client, logger *slog.Logger) *GeminiRefiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiRefiner{
		client: client,
		logger: logger.With("component", "command.refiner"),
	}
}

// Refine implements Refiner. Transport failures and unparseable answers are
// both reported as ErrRefinementUnavailable.
func (g *GeminiRefiner) Refine(ctx context.Context, req RefineRequest) (Refinement, error) {
	prompt := fmt.Sprintf(refinePrompt,
		req.Label, req.Gesture, req.DeltaX, req.DeltaY, req.Magnitude, req.Affordance, req.Command)

	text, err := g.client.GenerateContent(ctx, gemini.TextPart(prompt))
	if err != nil {
		return Refinement{}, fmt.Errorf("%w: %v", ErrRefinementUnavailable, err)
	}

	ref, err := ParseRefinement([]byte(gemini.StripFences(text)))
	if err != nil {
		g.logger.Debug("unparseable refinement", "error", err)
		return Refinement{}, err
	}
	return ref, nil
}

// ParseRefinement decodes a refiner answer. The answer must be a JSON
// object; a field with the wrong JSON type is dropped on its own and
// out-of-range values are dropped later by the resolver.
func ParseRefinement(raw []byte) (Refinement, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Refinement{}, fmt.Errorf("%w: %v", ErrRefinementUnavailable, err)
	}
	if fields == nil {
		return Refinement{}, fmt.Errorf("%w: answer is not an object", ErrRefinementUnavailable)
	}

	var ref Refinement
	ref.GestureType = decodeField[GestureType](fields, "gesture_type")
	ref.Intensity = decodeField[float64](fields, "intensity")
	ref.ValueMultiplier = decodeField[float64](fields, "value_multiplier")
	ref.Confidence = decodeField[float64](fields, "confidence")
	return ref, nil
}

// decodeField returns nil when key is absent, null or of the wrong type.
func decodeField[T any](fields map[string]json.RawMessage, key string) *T {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
