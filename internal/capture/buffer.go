package capture

import (
	"context"
	"sync"
)

// FrameBuffer holds the most recent JPEG frame for readers such as the
// MJPEG stream, so they never compete with the pipeline for the device.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  []byte
	seq    uint64
	notify chan struct{}
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{notify: make(chan struct{})}
}

// Put stores a new frame and wakes all waiters. The buffer takes ownership
// of jpeg.
func (b *FrameBuffer) Put(jpeg []byte) {
	b.mu.Lock()
	b.frame = jpeg
	b.seq++
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// Latest returns the current frame and its sequence number. seq is 0 when
// nothing has been stored yet.
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.seq
}

// Next blocks until a frame newer than after is available or ctx ends.
func (b *FrameBuffer) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > after {
			frame, seq := b.frame, b.seq
			b.mu.Unlock()
			return frame, seq, nil
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-wait:
		}
	}
}
