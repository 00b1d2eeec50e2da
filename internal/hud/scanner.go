// Package hud draws the head-up display drawn over every camera frame: the
// animated scan line, face brackets, motion boxes and the frame stamp.
package hud

// DefaultScanStep is the number of rows the scan line moves per frame.
const DefaultScanStep = 4

// Scanner tracks the scan line row. It wraps at the frame height.
type Scanner struct {
	pos  int
	step int
}

// NewScanner returns a Scanner starting at row 0.
func NewScanner(step int) *Scanner {
	if step <= 0 {
		step = DefaultScanStep
	}
	return &Scanner{step: step}
}

// Advance moves the line one step down a frame of the given height and
// returns the new row.
func (s *Scanner) Advance(height int) int {
	if height <= 0 {
		return s.pos
	}
	s.pos = (s.pos + s.step) % height
	return s.pos
}
