// Package dashboard runs the update loop: it pulls processed frames, tracks
// detection state, samples telemetry, maintains the kernel log and publishes
// a status snapshot every tick.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aether-core/dashboard/internal/gallery"
	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/internal/voice"
	"github.com/aether-core/dashboard/pkg/types"
)

var log = logger.For("Loop")

// Errors returned by Capture.
var (
	ErrNoFrame = errors.New("no frame displayed yet")
	ErrStopped = errors.New("update loop stopped")
)

// Processor produces annotated frames.
type Processor interface {
	Process() (types.Frame, bool)
}

// Publisher receives every displayed frame and status snapshot.
type Publisher interface {
	PublishFrame(types.Frame)
	PublishStatus(types.Status)
}

// EventSink receives discrete events such as lock changes and snapshots.
type EventSink interface {
	Emit(types.Event)
}

// Observer receives loop measurements.
type Observer interface {
	FrameShown(types.Frame)
	FrameMissed()
	TickDone(time.Duration)
	Reading(telemetry.Reading)
	Event(kind string)
	GallerySize(stored int)
}

// Deps are the collaborators of a Loop. Processor, Sampler and Gallery are
// required.
type Deps struct {
	Processor Processor
	Sampler   *telemetry.Sampler
	Gallery   *gallery.Gallery
	Voice     voice.Queue
	Publisher Publisher
	Events    EventSink
	Observer  Observer
}

type captureResult struct {
	entry gallery.Entry
	err   error
}

// Loop is the single writer of the dashboard session.
type Loop struct {
	cfg       Config
	proc      Processor
	sampler   *telemetry.Sampler
	gallery   *gallery.Gallery
	announcer *voice.Announcer
	pub       Publisher
	events    EventSink
	obs       Observer
	now       func() time.Time

	session  *Session
	captures chan chan captureResult
	done     chan struct{}
}

// New builds a Loop. It does not start it.
func New(cfg Config, deps Deps) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Processor == nil || deps.Sampler == nil || deps.Gallery == nil {
		return nil, errors.New("dashboard: processor, sampler and gallery are required")
	}
	cfg = cfg.withDefaults()

	q := deps.Voice
	if q == nil {
		q = discardQueue{}
	}
	l := &Loop{
		cfg:       cfg,
		proc:      deps.Processor,
		sampler:   deps.Sampler,
		gallery:   deps.Gallery,
		announcer: voice.NewAnnouncer(q, cfg.Cooldown),
		pub:       deps.Publisher,
		events:    deps.Events,
		obs:       deps.Observer,
		now:       time.Now,
		session:   newSession(cfg.LogSize),
		captures:  make(chan chan captureResult),
		done:      make(chan struct{}),
	}
	if l.pub == nil {
		l.pub = nopPublisher{}
	}
	if l.events == nil {
		l.events = nopSink{}
	}
	if l.obs == nil {
		l.obs = nopObserver{}
	}
	return l, nil
}

// Session exposes the loop state. Only safe to read while the loop is not
// running or from within it.
func (l *Loop) Session() *Session {
	return l.session
}

// Run ticks until ctx is cancelled, serving capture requests between ticks.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	if l.cfg.AutoCapture != "" {
		c := cron.New()
		_, err := c.AddFunc(l.cfg.AutoCapture, func() {
			if _, err := l.Capture(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("auto capture: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("auto capture schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
		log.Info("auto capture scheduled: %s", l.cfg.AutoCapture)
	}

	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()
	log.Info("update loop started (tick=%v sentry=%v)", l.cfg.Tick, l.cfg.Sentry)

	for {
		select {
		case <-ctx.Done():
			log.Info("update loop stopped after %d ticks", l.session.Tick)
			return nil
		case reply := <-l.captures:
			entry, err := l.capture(l.now())
			reply <- captureResult{entry: entry, err: err}
		case <-ticker.C:
			l.Tick(l.now())
		}
	}
}

// Tick runs one loop iteration at time now and returns the published
// status.
func (l *Loop) Tick(now time.Time) types.Status {
	start := time.Now()
	s := l.session
	s.Tick++

	// 1. video
	frame, ok := l.proc.Process()
	if ok {
		s.frame, s.hasFrame = frame, true
		s.Shown++
		l.pub.PublishFrame(frame)
		l.obs.FrameShown(frame)
		// 2. detection
		l.updateDetection(now, frame)
	} else {
		s.Missed++
		l.obs.FrameMissed()
	}

	// 3. telemetry
	reading, err := l.sampler.Sample()
	sampled := err == nil
	if sampled {
		s.reading = reading
		l.obs.Reading(reading)
	} else {
		log.Warn("sample telemetry: %v", err)
	}

	// 4. logs
	if sampled && reading.CPU > l.cfg.WarnCPU {
		s.log(now, types.LogWarn, "HIGH LOAD: %.1f%%", reading.CPU)
		if !s.HighLoad {
			l.emit(now, types.EventHighLoad, map[string]any{"cpu": reading.CPU})
		}
		s.HighLoad = true
	} else if sampled {
		s.HighLoad = false
	}
	if !s.Locked && s.Logs.Len() == 0 {
		s.log(now, types.LogSys, "IDLE...")
	}

	status := l.status(now)
	l.pub.PublishStatus(status)
	l.obs.TickDone(time.Since(start))
	return status
}

func (l *Loop) updateDetection(now time.Time, f types.Frame) {
	s := l.session
	wasLocked, hadMotion := s.Locked, s.Motion

	s.Locked = f.Locked()
	s.Motion = l.cfg.Sentry && f.MotionDetected()
	s.Faces = len(f.Faces)
	s.Regions = len(f.Motion)
	s.ScanLine = f.ScanLine

	switch {
	case s.Locked && !wasLocked:
		s.log(now, types.LogEvt, "TARGET ACQUIRED (%d)", s.Faces)
		l.emit(now, types.EventTargetAcquired, map[string]any{"faces": s.Faces})
		if l.cfg.Sentry {
			l.announcer.Announce(now, voice.PhraseTargetConfirmed)
		}
	case !s.Locked && wasLocked:
		s.log(now, types.LogEvt, "TARGET LOST")
		l.emit(now, types.EventTargetLost, nil)
		if l.cfg.Sentry {
			l.announcer.Announce(now, voice.PhraseTargetLost)
		}
	}

	if s.Motion && !hadMotion {
		s.log(now, types.LogEvt, "MOTION DETECTED (%d)", s.Regions)
		l.emit(now, types.EventMotion, map[string]any{"regions": s.Regions})
	}
}

func (l *Loop) emit(now time.Time, kind string, fields map[string]any) {
	l.events.Emit(types.Event{Kind: kind, Timestamp: now, Fields: fields})
	l.obs.Event(kind)
}

func (l *Loop) status(now time.Time) types.Status {
	s := l.session
	badge, threat := s.Badge(l.cfg.Sentry)

	var lastSpoken float64
	if t := l.announcer.LastSpoken(); !t.IsZero() {
		lastSpoken = float64(t.UnixNano()) / 1e9
	}

	entries := l.gallery.View(l.cfg.GalleryView)
	items := make([]types.GalleryItem, len(entries))
	for i, e := range entries {
		items[i] = GalleryItem(e)
	}

	return types.Status{
		Tick:      s.Tick,
		Timestamp: float64(now.UnixNano()) / 1e9,
		Sentry:    l.cfg.Sentry,
		Badge:     badge,
		Threat:    threat,
		Detection: types.Detection{
			Locked:     s.Locked,
			Motion:     s.Motion,
			Faces:      s.Faces,
			Regions:    s.Regions,
			ScanLine:   s.ScanLine,
			LastSpoken: lastSpoken,
		},
		Telemetry: types.Telemetry{
			CPU:       s.reading.CPU,
			RAM:       s.reading.RAM,
			NetMBps:   s.reading.NetMBps,
			Disk:      s.reading.Disk,
			NetLabel:  s.reading.NetLabel(),
			DiskLabel: s.reading.DiskLabel(),
		},
		History: types.History{
			CPU: l.sampler.CPU.Snapshot(),
			RAM: l.sampler.RAM.Snapshot(),
			Net: l.sampler.Net.Snapshot(),
		},
		Logs:          s.Logs.Last(l.cfg.LogSize),
		Gallery:       items,
		GalleryTotal:  l.gallery.Len(),
		CapturesTotal: l.gallery.Total(),
		FramesShown:   s.Shown,
		FramesMissed:  s.Missed,
	}
}

// GalleryItem describes a gallery entry for API consumers.
func GalleryItem(e gallery.Entry) types.GalleryItem {
	return types.GalleryItem{
		ID:         e.ID,
		CapturedAt: e.CapturedAt,
		Label:      e.Label(),
		Size:       len(e.JPEG),
		URL:        "/api/gallery/" + e.ID,
		ThumbURL:   "/api/gallery/" + e.ID + "/thumb",
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishFrame(types.Frame)   {}
func (nopPublisher) PublishStatus(types.Status) {}

type nopSink struct{}

func (nopSink) Emit(types.Event) {}

type nopObserver struct{}

func (nopObserver) FrameShown(types.Frame)    {}
func (nopObserver) FrameMissed()              {}
func (nopObserver) TickDone(time.Duration)    {}
func (nopObserver) Reading(telemetry.Reading) {}
func (nopObserver) Event(string)              {}
func (nopObserver) GallerySize(int)           {}

type discardQueue struct{}

func (discardQueue) Enqueue(string) bool { return false }
