// Package vision acquires camera frames, finds faces and motion in them and
// renders the HUD-annotated JPEG that the dashboard streams.
package vision

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Source yields raw BGR frames.
type Source interface {
	Read(dst *gocv.Mat) bool
}

// Camera is a gocv video capture device or stream.
type Camera struct {
	capture *gocv.VideoCapture
	device  string
}

// OpenCamera opens device, which is either a numeric device index or a
// file path or stream URL. Width and height are requested when positive.
func OpenCamera(device string, width, height int) (*Camera, error) {
	var target interface{} = device
	if idx, err := strconv.Atoi(device); err == nil {
		target = idx
	}
	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %q: device not available", device)
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	if width > 0 && height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{capture: capture, device: device}, nil
}

// Read grabs the next frame into dst. It returns false when no frame is
// available.
func (c *Camera) Read(dst *gocv.Mat) bool {
	if !c.capture.Read(dst) {
		return false
	}
	return !dst.Empty()
}

// Resolution reports the capture size the device settled on.
func (c *Camera) Resolution() (int, int) {
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Device returns the device string the camera was opened with.
func (c *Camera) Device() string {
	return c.device
}

func (c *Camera) Close() error {
	return c.capture.Close()
}
