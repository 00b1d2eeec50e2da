package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	"github.com/aether-core/dashboard/internal/hud"
	"github.com/aether-core/dashboard/pkg/types"
)

// DefaultQuality is the JPEG quality of streamed frames.
const DefaultQuality = 80

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Caption  string
	Quality  int
	ScanStep int
	Mirror   bool
}

// Processor turns raw camera frames into annotated, encoded frames. It is
// owned by the update loop.
type Processor struct {
	source  Source
	faces   FaceFinder
	motion  *MotionDetector // nil outside sentry mode
	scanner *hud.Scanner
	overlay *hud.Overlay
	quality int
	mirror  bool
	now     func() time.Time

	raw     gocv.Mat
	flipped gocv.Mat
	gray    gocv.Mat
	number  uint64
}

// NewProcessor wires a source, a face finder and an optional motion
// detector.
func NewProcessor(source Source, faces FaceFinder, motion *MotionDetector, cfg ProcessorConfig) *Processor {
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Processor{
		source:  source,
		faces:   faces,
		motion:  motion,
		scanner: hud.NewScanner(cfg.ScanStep),
		overlay: hud.NewOverlay(cfg.Caption),
		quality: quality,
		mirror:  cfg.Mirror,
		now:     time.Now,
		raw:     gocv.NewMat(),
		flipped: gocv.NewMat(),
		gray:    gocv.NewMat(),
	}
}

// Process reads one frame and returns it annotated and encoded. It returns
// false when the source has no frame or the frame cannot be converted.
func (p *Processor) Process() (types.Frame, bool) {
	if !p.source.Read(&p.raw) || p.raw.Empty() {
		return types.Frame{}, false
	}

	src := p.raw
	if p.mirror {
		gocv.Flip(p.raw, &p.flipped, 1)
		src = p.flipped
	}
	gocv.CvtColor(src, &p.gray, gocv.ColorBGRToGray)

	var faces, motion []image.Rectangle
	if p.faces != nil {
		faces = p.faces.Detect(p.gray)
	}
	if p.motion != nil {
		motion = p.motion.Detect(p.gray)
	}

	img, err := toRGBA(src)
	if err != nil {
		log.Warn("convert frame: %v", err)
		return types.Frame{}, false
	}

	at := p.now()
	p.number++
	scan := p.scanner.Advance(img.Bounds().Dy())
	p.overlay.Draw(img, hud.Scene{
		ScanLine: scan,
		Faces:    faces,
		Motion:   motion,
		Stamp:    fmt.Sprintf("AETHER %s #%d", at.Format("15:04:05"), p.number),
	})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		log.Warn("encode frame: %v", err)
		return types.Frame{}, false
	}

	return types.Frame{
		JPEG:      buf.Bytes(),
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		Faces:     faces,
		Motion:    motion,
		ScanLine:  scan,
		Timestamp: at,
		Number:    p.number,
	}, true
}

func (p *Processor) Close() error {
	p.raw.Close()
	p.flipped.Close()
	p.gray.Close()
	if p.motion != nil {
		return p.motion.Close()
	}
	return nil
}

func toRGBA(m gocv.Mat) (*image.RGBA, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, err
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
