package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used for detector uploads and the MJPEG stream.
const DefaultJPEGQuality = 80

// EncodeJPEG encodes a frame. Quality outside 1..100 uses DefaultJPEGQuality.
func EncodeJPEG(frame *gocv.Mat, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrNoFrame
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
