// Package frame defines the frame type and video-source contract the
// attendance pipeline consumes. Actual capture (webcam, WebRTC, file
// playback) is supplied by the caller; the core only sees frames arriving
// sequentially from a single logical stream.
package frame

import (
	"errors"
	"time"
)

// Frame is a single video frame, encoded as JPEG or PNG bytes.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Source yields frames in arrival order. Implementations need not be safe
// for concurrent reads; the pipeline processes one frame at a time.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}

// ErrSourceClosed is returned when reading from a closed source.
var ErrSourceClosed = errors.New("frame source closed")

// ErrNoFrame is returned when the source has no frame available.
var ErrNoFrame = errors.New("no frame available")
