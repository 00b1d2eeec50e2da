package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// Motion detection defaults.
const (
	DefaultMotionThreshold = 25
	DefaultMotionMinArea   = 500
	motionBlurKernel       = 21
	motionDilateIterations = 2
)

// MotionDetector compares consecutive grayscale frames and reports the
// regions that changed.
type MotionDetector struct {
	Threshold float32
	MinArea   float64

	prev   gocv.Mat
	kernel gocv.Mat
}

// NewMotionDetector returns a detector with the default threshold and area.
func NewMotionDetector() *MotionDetector {
	return &MotionDetector{
		Threshold: DefaultMotionThreshold,
		MinArea:   DefaultMotionMinArea,
		prev:      gocv.NewMat(),
		kernel:    gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

// Detect returns the bounding boxes of changed regions larger than MinArea.
// The first frame only primes the detector.
func (m *MotionDetector) Detect(gray gocv.Mat) []image.Rectangle {
	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(motionBlurKernel, motionBlurKernel), 0, 0, gocv.BorderDefault)

	if m.prev.Empty() || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		m.prev.Close()
		m.prev = blurred
		return nil
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(m.prev, blurred, &delta)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(delta, &mask, m.Threshold, 255, gocv.ThresholdBinary)
	for range motionDilateIterations {
		gocv.Dilate(mask, &mask, m.kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) <= m.MinArea {
			continue
		}
		regions = append(regions, gocv.BoundingRect(c))
	}

	m.prev.Close()
	m.prev = blurred
	return regions
}

func (m *MotionDetector) Close() error {
	m.kernel.Close()
	return m.prev.Close()
}
