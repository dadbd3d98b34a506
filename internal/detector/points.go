package detector

import (
	"fmt"
	"strings"
)

// Coordinate range of detector positions. Both axes run 0..CoordinateRange
// from the top-left corner of the frame.
const CoordinateRange = 1000

// Affordance is the interaction mode an object supports.
type Affordance string

const (
	AffordanceRotation    Affordance = "rotation"
	AffordanceTranslation Affordance = "translation"
	AffordancePress       Affordance = "press"
)

// ParseAffordance maps a raw string onto a known affordance.
// Unknown values become translation.
func ParseAffordance(s string) Affordance {
	switch Affordance(strings.ToLower(strings.TrimSpace(s))) {
	case AffordanceRotation:
		return AffordanceRotation
	case AffordancePress:
		return AffordancePress
	default:
		return AffordanceTranslation
	}
}

// Point is a position in detector coordinates. The axes are named so the
// wire order [y, x] never leaks into arithmetic.
type Point struct {
	Y float64 `json:"y"`
	X float64 `json:"x"`
}

// PointYX builds a Point from the [y, x] order the vision model uses.
func PointYX(y, x float64) Point {
	return Point{Y: y, X: x}
}

// DetectedPoint is one labeled object found in a frame.
type DetectedPoint struct {
	Label      string     `json:"label"`
	Position   Point      `json:"position"`
	Affordance Affordance `json:"affordance"`
	Confidence float64    `json:"confidence"`
}

// NormalizeLabel lower-cases and trims a label.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Validate reports whether the point is usable by the pipeline.
func (p DetectedPoint) Validate() error {
	if p.Label == "" {
		return fmt.Errorf("label cannot be empty")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %f", p.Confidence)
	}
	return nil
}
