package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ParseDetections decodes a vision-model answer into detected points.
//
// The answer may be a bare JSON array or an object with an "objects" array.
// Entries without a two-element point, a string label or a string affordance
// are dropped. Coordinates are rounded and clamped to CoordinateRange, labels
// are normalized, unknown affordances become translation and a missing
// confidence counts as 1. At most maxObjects points are returned
// (maxObjects <= 0 means no cap).
//
// Input that is not JSON, or JSON of the wrong shape, yields ErrMalformedOutput.
func ParseDetections(raw []byte, maxObjects int, minConfidence float64) ([]DetectedPoint, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedOutput)
	}

	var entries []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	case '{':
		var wrapped struct {
			Objects []json.RawMessage `json:"objects"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		entries = wrapped.Objects
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformedOutput)
	}

	points := make([]DetectedPoint, 0, len(entries))
	for _, entry := range entries {
		p, ok := parseEntry(entry)
		if !ok {
			continue
		}
		if p.Confidence < minConfidence {
			continue
		}
		points = append(points, p)
		if maxObjects > 0 && len(points) >= maxObjects {
			break
		}
	}

	return points, nil
}

type wireEntry struct {
	Point      []float64 `json:"point"`
	Label      *string   `json:"label"`
	Affordance *string   `json:"affordance"`
	Confidence *float64  `json:"confidence"`
}

func parseEntry(entry json.RawMessage) (DetectedPoint, bool) {
	var w wireEntry
	if err := json.Unmarshal(entry, &w); err != nil {
		return DetectedPoint{}, false
	}
	if len(w.Point) != 2 || w.Label == nil || w.Affordance == nil {
		return DetectedPoint{}, false
	}

	label := NormalizeLabel(*w.Label)
	if label == "" {
		return DetectedPoint{}, false
	}

	confidence := 1.0
	if w.Confidence != nil {
		confidence = clamp(*w.Confidence, 0, 1)
	}

	return DetectedPoint{
		Label:      label,
		Position:   PointYX(roundCoord(w.Point[0]), roundCoord(w.Point[1])),
		Affordance: ParseAffordance(*w.Affordance),
		Confidence: confidence,
	}, true
}

func roundCoord(v float64) float64 {
	return clamp(math.Round(v), 0, CoordinateRange)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
