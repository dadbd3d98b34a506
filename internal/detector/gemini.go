package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ayusman/haptic/internal/gemini"
)

// registrationPrompt asks the model for controllable objects on the desk.
const registrationPrompt = `
You are analyzing a desk scene for object tracking. Identify all prominent objects that could be used as physical controls.

Return ONLY valid JSON (no markdown, no code fences, no explanation):
[
  {"point": [y, x], "label": "object name", "affordance": "rotation|translation|press", "confidence": 0.0-1.0},
  ...
]

Guidelines:
- Points are normalized 0-1000 (y is vertical, x is horizontal from top-left)
- "rotation" for round objects that can spin (mugs, bottles, wheels)
- "translation" for flat objects that can slide (books, phones, papers)
- "press" for objects that can be pressed (buttons, keys, small items)
- Max %d objects
- Use simple, lowercase labels
`

// GeminiDetector implements Detector using the Gemini vision model.
type GeminiDetector struct {
	client *gemini.Client
	config Config
	logger *slog.Logger
}

// NewGeminiDetector creates a detector backed by the given Gemini client.
func NewGeminiDetector(client *gemini.Client, config Config, logger *slog.Logger) *GeminiDetector {
	if config.MaxObjects <= 0 {
		config.MaxObjects = DefaultConfig().MaxObjects
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiDetector{
		client: client,
		config: config,
		logger: logger.With("component", "detector.gemini"),
	}
}

// Detect sends the frame to Gemini and parses the returned points.
// A parse failure is reported as ErrMalformedOutput.
func (d *GeminiDetector) Detect(ctx context.Context, frame []byte) ([]DetectedPoint, error) {
	if len(frame) == 0 {
		return nil, nil
	}

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	text, err := d.client.GenerateContent(ctx,
		gemini.ImagePart(frame),
		gemini.TextPart(fmt.Sprintf(registrationPrompt, d.config.MaxObjects)),
	)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}

	points, err := ParseDetections([]byte(gemini.StripFences(text)), d.config.MaxObjects, d.config.MinConfidence)
	if err != nil {
		d.logger.Debug("unparseable detector response", "error", err)
		return nil, err
	}

	return points, nil
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (d *GeminiDetector) Close() error {
	return nil
}
