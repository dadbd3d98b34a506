package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene gate tuning.
const (
	// sceneWidth and sceneHeight are the size frames are shrunk to before comparison.
	sceneWidth  = 160
	sceneHeight = 120
	// sceneBlur is the Gaussian kernel applied to the shrunk frame.
	sceneBlur = 5
	// pixelDelta is the grey-level difference that marks a pixel as changed.
	pixelDelta = 25
)

// SceneGate decides whether a frame differs enough from the previous one to
// be worth sending to the detector. The first frame always counts as changed.
type SceneGate struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewSceneGate creates a gate. threshold is the percentage of changed
// pixels that opens the gate; 1.0 means 1%.
func NewSceneGate(threshold float64) *SceneGate {
	return &SceneGate{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Check compares frame against the previous one and returns whether the
// scene changed and by what percentage.
func (g *SceneGate) Check(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Point{X: sceneWidth, Y: sceneHeight}, 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Point{X: sceneBlur, Y: sceneBlur}, 0, 0, gocv.BorderDefault)

	if !g.primed {
		gray.CopyTo(&g.prev)
		g.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)
	gocv.Threshold(diff, &diff, pixelDelta, 255, gocv.ThresholdBinary)

	percent := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	gray.CopyTo(&g.prev)

	return percent > g.threshold, percent
}

// Reset forgets the previous frame so the next Check reports a change.
func (g *SceneGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
}

// SetThreshold changes the gate threshold. Negative values are ignored.
func (g *SceneGate) SetThreshold(threshold float64) {
	if threshold < 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = threshold
}

// Close releases the stored frame.
func (g *SceneGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.prev = gocv.NewMat()
	g.primed = false
}
