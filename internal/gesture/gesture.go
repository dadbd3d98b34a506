// Package gesture classifies frame-to-frame displacements into discrete gestures.
package gesture

import "math"

// Category is a discrete motion category.
type Category string

const (
	Subtle    Category = "subtle"
	Left      Category = "left"
	Right     Category = "right"
	Up        Category = "up"
	Down      Category = "down"
	RotateCW  Category = "rotate_cw"
	RotateCCW Category = "rotate_ccw"
	Unknown   Category = "unknown"
)

// Classification thresholds, in detector coordinate units.
const (
	// SubtleMagnitude is the magnitude below which any motion is subtle.
	SubtleMagnitude = 10.0
	// RotationMagnitude is the magnitude above which an undirected motion
	// counts as a rotation.
	RotationMagnitude = 30.0
)

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{Subtle, Left, Right, Up, Down, RotateCW, RotateCCW, Unknown}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Angle returns atan2(dy, dx) in degrees, in (-180, 180].
// Positive dy points down the frame, so "down" has a positive angle.
func Angle(dx, dy float64) float64 {
	return math.Atan2(dy, dx) * 180 / math.Pi
}

// Classify maps a displacement to a category. Rules are checked in order and
// the first match wins. It never fails.
//
// The four cardinal sectors use strict bounds, so a vector lying exactly on a
// diagonal (±45°, ±135°) falls through to the rotation rule.
func Classify(dx, dy, magnitude float64) Category {
	angle := Angle(dx, dy)

	switch {
	case magnitude < SubtleMagnitude:
		return Subtle
	case math.Abs(angle) < 45:
		return Right
	case math.Abs(angle-180) < 45 || math.Abs(angle+180) < 45:
		return Left
	case angle > 45 && angle < 135:
		return Down
	case angle > -135 && angle < -45:
		return Up
	case magnitude > RotationMagnitude:
		if angle > 0 {
			return RotateCW
		}
		return RotateCCW
	default:
		return Unknown
	}
}
