package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// Haar cascade parameters.
const (
	cascadeScaleFactor  = 1.1
	cascadeMinNeighbors = 4
)

// FaceFinder returns face bounding boxes in a grayscale frame.
type FaceFinder interface {
	Detect(gray gocv.Mat) []image.Rectangle
}

// FaceDetector finds frontal faces with a Haar cascade.
type FaceDetector struct {
	classifier gocv.CascadeClassifier
	MinSize    image.Point
}

// NewFaceDetector loads the cascade XML at path.
func NewFaceDetector(path string) (*FaceDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("face cascade: %w", err)
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("face cascade: cannot load %s", path)
	}
	return &FaceDetector{classifier: classifier, MinSize: image.Pt(30, 30)}, nil
}

func (d *FaceDetector) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() {
		return nil
	}
	return d.classifier.DetectMultiScaleWithParams(gray, cascadeScaleFactor, cascadeMinNeighbors, 0, d.MinSize, image.Point{})
}

func (d *FaceDetector) Close() error {
	return d.classifier.Close()
}
