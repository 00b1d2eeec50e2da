package hud

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Palette holds the HUD colors.
type Palette struct {
	Locked    color.RGBA // scan line and brackets while a face is present
	Searching color.RGBA // scan line while no face is present
	Motion    color.RGBA // motion boxes
	Stamp     color.RGBA // frame stamp text
	StampBG   color.RGBA // frame stamp background
}

// DefaultPalette is the cyan/red scheme of the dashboard.
var DefaultPalette = Palette{
	Locked:    color.RGBA{R: 0, G: 255, B: 255, A: 255},
	Searching: color.RGBA{R: 255, G: 0, B: 0, A: 255},
	Motion:    color.RGBA{R: 255, G: 170, B: 0, A: 255},
	Stamp:     color.RGBA{R: 0, G: 240, B: 255, A: 255},
	StampBG:   color.RGBA{R: 0, G: 0, B: 0, A: 160},
}

// Scene is what gets drawn on one frame.
type Scene struct {
	ScanLine int
	Faces    []image.Rectangle
	Motion   []image.Rectangle
	Stamp    string
}

// Segment is a horizontal or vertical line from A to B, inclusive.
type Segment struct {
	A, B image.Point
}

// Overlay draws Scenes onto RGBA frames.
type Overlay struct {
	Palette      Palette
	Caption      string
	BracketRatio float64
	Thickness    int
	face         font.Face
}

// NewOverlay returns an Overlay with the dashboard defaults.
func NewOverlay(caption string) *Overlay {
	return &Overlay{
		Palette:      DefaultPalette,
		Caption:      caption,
		BracketRatio: 0.2,
		Thickness:    2,
		face:         basicfont.Face7x13,
	}
}

// Draw renders scene onto img in place.
func (o *Overlay) Draw(img *image.RGBA, scene Scene) {
	b := img.Bounds()
	lineColor := o.Palette.Searching
	if len(scene.Faces) > 0 {
		lineColor = o.Palette.Locked
	}

	y := b.Min.Y + scene.ScanLine
	drawSegment(img, Segment{A: image.Pt(b.Min.X, y), B: image.Pt(b.Max.X-1, y)}, 1, lineColor)

	for _, r := range scene.Motion {
		for _, s := range outline(r) {
			drawSegment(img, s, 1, o.Palette.Motion)
		}
		for _, s := range Brackets(r, 0.15) {
			drawSegment(img, s, o.Thickness, o.Palette.Motion)
		}
	}

	for _, r := range scene.Faces {
		for _, s := range Brackets(r, o.BracketRatio) {
			drawSegment(img, s, o.Thickness, lineColor)
		}
		if o.Caption != "" {
			o.text(img, image.Pt(r.Min.X, r.Min.Y-10), o.Caption, lineColor)
		}
	}

	if scene.Stamp != "" {
		o.stamp(img, scene.Stamp)
	}
}

// Brackets returns the eight segments of the four L-shaped corner brackets
// around r. Each arm is ratio times the width of r.
func Brackets(r image.Rectangle, ratio float64) []Segment {
	x, y := r.Min.X, r.Min.Y
	w, h := r.Dx(), r.Dy()
	d := int(float64(w) * ratio)
	return []Segment{
		// top-left
		{image.Pt(x, y), image.Pt(x+d, y)},
		{image.Pt(x, y), image.Pt(x, y+d)},
		// top-right
		{image.Pt(x+w, y), image.Pt(x+w-d, y)},
		{image.Pt(x+w, y), image.Pt(x+w, y+d)},
		// bottom-left
		{image.Pt(x, y+h), image.Pt(x+d, y+h)},
		{image.Pt(x, y+h), image.Pt(x, y+h-d)},
		// bottom-right
		{image.Pt(x+w, y+h), image.Pt(x+w-d, y+h)},
		{image.Pt(x+w, y+h), image.Pt(x+w, y+h-d)},
	}
}

func outline(r image.Rectangle) []Segment {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	return []Segment{
		{image.Pt(x0, y0), image.Pt(x1, y0)},
		{image.Pt(x0, y1), image.Pt(x1, y1)},
		{image.Pt(x0, y0), image.Pt(x0, y1)},
		{image.Pt(x1, y0), image.Pt(x1, y1)},
	}
}

// segmentRect converts an axis-aligned segment of the given thickness to the
// pixel rectangle it covers. Thickness grows down and to the right.
func segmentRect(s Segment, thickness int) image.Rectangle {
	if thickness < 1 {
		thickness = 1
	}
	r := image.Rectangle{Min: s.A, Max: s.B}.Canon()
	if r.Dy() == 0 {
		return image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Min.Y+thickness)
	}
	return image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y+1)
}

func drawSegment(img *image.RGBA, s Segment, thickness int, c color.RGBA) {
	draw.Draw(img, segmentRect(s, thickness), image.NewUniform(c), image.Point{}, draw.Src)
}

func (o *Overlay) text(img *image.RGBA, at image.Point, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: o.face,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(s)
}

func (o *Overlay) stamp(img *image.RGBA, s string) {
	d := font.Drawer{Face: o.face}
	width := d.MeasureString(s).Ceil()
	height := o.face.Metrics().Height.Ceil()
	origin := img.Bounds().Min.Add(image.Pt(8, 8))
	bg := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width+8, height+6))}
	draw.Draw(img, bg, image.NewUniform(o.Palette.StampBG), image.Point{}, draw.Over)
	o.text(img, image.Pt(origin.X+4, origin.Y+o.face.Metrics().Ascent.Ceil()+3), s, o.Palette.Stamp)
}
