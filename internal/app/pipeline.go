package app

import (
	"context"
	"time"

	"github.com/ayusman/haptic/internal/capture"
)

// Start opens the camera and begins the frame loop. Frames are captured and
// streamed while tracking is off; detection runs only while it is on.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.IdleFPS)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runPipeline(ctx)
	}()

	a.logger.Info("pipeline started", "idle_fps", a.config.IdleFPS, "active_fps", a.config.ActiveFPS)
	return nil
}

// Stop halts the frame loop, waits for the frame in flight and releases the camera.
func (a *App) Stop() {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("closing camera", "error", err)
	}
	a.logger.Info("pipeline stopped")
}

// Close stops the pipeline and releases the detector.
func (a *App) Close() error {
	a.Stop()
	return a.Detector().Close()
}

func (a *App) isRunning() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.cancel != nil
}

// runPipeline is the frame loop. It runs at IdleFPS until the scene gate
// sees change, then at ActiveFPS until the scene has been still for
// IdleTimeout. Each active frame is detected and processed before the next
// one is read.
func (a *App) runPipeline(ctx context.Context) {
	gate := capture.NewSceneGate(a.config.SceneThreshold)
	defer gate.Close()

	active := false
	wasEnabled := false
	lastChange := time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(a.config.IdleFPS))
	defer ticker.Stop()

	setRate := func(fps int) {
		a.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			a.logger.Debug("reading frame", "error", err)
			continue
		}

		enabled := a.IsEnabled()
		if enabled && !wasEnabled {
			// Re-enabling must not compare against a stale frame.
			gate.Reset()
		}
		wasEnabled = enabled

		changed := false
		if enabled {
			changed, _ = gate.Check(frame)
		}
		jpeg, err := capture.EncodeJPEG(frame, capture.DefaultJPEGQuality)
		frame.Close()
		if err != nil {
			a.logger.Warn("encoding frame", "error", err)
			continue
		}

		if a.config.Frames != nil {
			a.config.Frames.Put(jpeg)
		}

		if !enabled {
			if active {
				active = false
				setRate(a.config.IdleFPS)
			}
			continue
		}

		now := time.Now()
		switch {
		case changed:
			lastChange = now
			if !active {
				active = true
				setRate(a.config.ActiveFPS)
				a.logger.Debug("switched to active mode")
			}
		case active && now.Sub(lastChange) > IdleTimeout:
			active = false
			setRate(a.config.IdleFPS)
			a.logger.Debug("switched to idle mode")
		}

		if !active {
			continue
		}

		a.step(ctx, jpeg)
	}
}

// step detects and processes one frame.
func (a *App) step(ctx context.Context, jpeg []byte) {
	points, err := a.Detect(ctx, jpeg)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("detection failed", "error", err)
			a.setError(err)
		}
		return
	}

	if _, err := a.ProcessFrame(ctx, points); err != nil {
		a.logger.Warn("processing frame", "error", err)
	}
}
