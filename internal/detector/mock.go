package detector

import (
	"context"
	"sync"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	points   []DetectedPoint
	sequence [][]DetectedPoint
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPoints sets the points that will be returned by every Detect call.
func (m *MockDetector) SetPoints(points []DetectedPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = points
	m.sequence = nil
}

// SetSequence queues one result per Detect call. Once the queue is drained
// Detect returns no points.
func (m *MockDetector) SetSequence(frames [][]DetectedPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
	m.points = nil
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured points or error.
func (m *MockDetector) Detect(ctx context.Context, frame []byte) ([]DetectedPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if m.sequence != nil {
		if len(m.sequence) == 0 {
			return nil, nil
		}
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return append([]DetectedPoint(nil), next...), nil
	}

	return append([]DetectedPoint(nil), m.points...), nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// DemoPoints returns the desk scene used when no vision model is configured.
func DemoPoints() []DetectedPoint {
	return []DetectedPoint{
		{Label: "coffee mug", Position: PointYX(300, 400), Affordance: AffordanceRotation, Confidence: 1},
		{Label: "notebook", Position: PointYX(500, 300), Affordance: AffordanceTranslation, Confidence: 1},
		{Label: "pen holder", Position: PointYX(200, 600), Affordance: AffordanceRotation, Confidence: 1},
		{Label: "keyboard", Position: PointYX(700, 500), Affordance: AffordanceTranslation, Confidence: 1},
	}
}
