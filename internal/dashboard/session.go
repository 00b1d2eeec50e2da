package dashboard

import (
	"fmt"
	"time"

	"github.com/aether-core/dashboard/internal/history"
	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/pkg/types"
)

// Session is the mutable dashboard state. It is owned by the loop goroutine.
type Session struct {
	Locked   bool
	Motion   bool
	Faces    int
	Regions  int
	ScanLine int
	HighLoad bool

	Logs *history.Ring[types.LogLine]

	Tick   uint64
	Shown  uint64
	Missed uint64

	frame    types.Frame
	hasFrame bool
	reading  telemetry.Reading
}

func newSession(logSize int) *Session {
	return &Session{Logs: history.NewRing[types.LogLine](logSize)}
}

func (s *Session) log(at time.Time, level, format string, args ...any) {
	s.Logs.Push(types.LogLine{Time: at, Level: level, Text: fmt.Sprintf(format, args...)})
}

// LastFrame returns the most recently displayed frame.
func (s *Session) LastFrame() (types.Frame, bool) {
	return s.frame, s.hasFrame
}

// Badge returns the status badge text and threat level.
func (s *Session) Badge(sentry bool) (string, string) {
	switch {
	case s.Locked:
		return "TARGET LOCKED", types.ThreatHigh
	case sentry && s.Motion:
		return "MOTION DETECTED", types.ThreatElevated
	default:
		return "SCANNING SECTOR...", types.ThreatLow
	}
}
