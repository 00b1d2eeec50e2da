package types

import (
	"image"
	"time"
)

// Frame is one processed camera frame ready for display.
type Frame struct {
	JPEG      []byte            // Encoded frame with the HUD drawn in
	Width     int               // Frame width in pixels
	Height    int               // Frame height in pixels
	Faces     []image.Rectangle // Detected faces, in mirrored coordinates
	Motion    []image.Rectangle // Motion regions (sentry mode only)
	ScanLine  int               // Scan line row drawn on this frame
	Timestamp time.Time         // Capture time
	Number    uint64            // Sequential frame number
}

// Locked reports whether at least one face is present.
func (f Frame) Locked() bool {
	return len(f.Faces) > 0
}

// MotionDetected reports whether any motion region was found.
func (f Frame) MotionDetected() bool {
	return len(f.Motion) > 0
}
