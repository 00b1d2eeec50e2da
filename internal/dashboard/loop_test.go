package dashboard

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aether-core/dashboard/internal/gallery"
	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/internal/voice"
	"github.com/aether-core/dashboard/pkg/types"
)

type scriptedProcessor struct {
	mu     sync.Mutex
	faces  [][]image.Rectangle // per call; last entry repeats
	motion []image.Rectangle
	fail   bool
	calls  int
}

func (p *scriptedProcessor) Process() (types.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return types.Frame{}, false
	}
	var faces []image.Rectangle
	if len(p.faces) > 0 {
		faces = p.faces[min(p.calls, len(p.faces)-1)]
	}
	p.calls++
	return types.Frame{
		JPEG:     []byte{0xff, 0xd8, byte(p.calls)},
		Width:    640,
		Height:   480,
		Faces:    faces,
		Motion:   p.motion,
		ScanLine: (p.calls * 4) % 480,
		Number:   uint64(p.calls),
	}, true
}

type cpuSource struct {
	cpu   []float64
	calls int
	err   error
}

func (s *cpuSource) CPUPercent() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	v := s.cpu[s.calls%len(s.cpu)]
	s.calls++
	return v, nil
}
func (s *cpuSource) MemoryPercent() (float64, error) { return 40, nil }
func (s *cpuSource) DiskUsage() (telemetry.DiskUsage, error) {
	return telemetry.DiskUsage{Percent: 42, Used: 42 << 30, Total: 100 << 30}, nil
}
func (s *cpuSource) RxBytes() (uint64, error) { return 0, nil }

type phraseQueue struct{ phrases []string }

func (q *phraseQueue) Enqueue(p string) bool {
	q.phrases = append(q.phrases, p)
	return true
}

type recordingSink struct{ kinds []string }

func (r *recordingSink) Emit(e types.Event) { r.kinds = append(r.kinds, e.Kind) }

func newTestLoop(t *testing.T, cfg Config, proc Processor, src telemetry.Source) (*Loop, *phraseQueue, *recordingSink) {
	t.Helper()
	sampler, err := telemetry.NewSampler(src, 50)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	q := &phraseQueue{}
	sink := &recordingSink{}
	l, err := New(cfg, Deps{
		Processor: proc,
		Sampler:   sampler,
		Gallery:   gallery.New(gallery.DefaultCapacity),
		Voice:     q,
		Events:    sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, q, sink
}

func TestHundredTicksAlternatingLoad(t *testing.T) {
	l, _, _ := newTestLoop(t, Config{}, &scriptedProcessor{}, &cpuSource{cpu: []float64{50, 70}})
	t0 := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	var st types.Status
	for i := range 100 {
		now := t0.Add(time.Duration(i) * 33 * time.Millisecond)
		st = l.Tick(now)
		newest := st.Logs[len(st.Logs)-1]

		switch {
		case i%2 == 1:
			if newest.Level != types.LogWarn || newest.Text != "HIGH LOAD: 70.0%" || !newest.Time.Equal(now) {
				t.Fatalf("tick %d: newest log = %+v, want HIGH LOAD warning", i, newest)
			}
		case i == 0:
			if newest.Level != types.LogSys || newest.Text != "IDLE..." {
				t.Fatalf("tick 0: newest log = %+v, want IDLE", newest)
			}
		default:
			if newest.Time.Equal(now) {
				t.Fatalf("tick %d: log %+v appended at 50%% load", i, newest)
			}
		}
	}

	if len(st.History.CPU) != 50 {
		t.Fatalf("cpu history len = %d, want 50", len(st.History.CPU))
	}
	for j, v := range st.History.CPU {
		want := 50.0
		if j%2 == 1 {
			want = 70
		}
		if v != want {
			t.Fatalf("cpu history[%d] = %v, want %v", j, v, want)
		}
	}
	if len(st.Logs) != DefaultLogSize {
		t.Fatalf("logs = %d, want %d", len(st.Logs), DefaultLogSize)
	}
	for _, line := range st.Logs {
		if line.Level != types.LogWarn {
			t.Fatalf("log %+v survived 50 warnings", line)
		}
	}
	if st.Badge != "SCANNING SECTOR..." || st.Threat != types.ThreatLow {
		t.Fatalf("badge = %q/%q", st.Badge, st.Threat)
	}
	if st.FramesShown != 100 || st.Tick != 100 {
		t.Fatalf("frames shown = %d tick = %d", st.FramesShown, st.Tick)
	}
}

func TestLockAnnouncementsAreDebounced(t *testing.T) {
	face := []image.Rectangle{image.Rect(10, 10, 60, 60)}
	proc := &scriptedProcessor{faces: [][]image.Rectangle{face, nil, face, nil}}
	l, q, sink := newTestLoop(t, Config{Sentry: true}, proc, &cpuSource{cpu: []float64{10}})
	t0 := time.Unix(5000, 0)

	for _, at := range []time.Duration{0, time.Second, 2 * time.Second, 6 * time.Second} {
		l.Tick(t0.Add(at))
	}

	want := []string{voice.PhraseTargetConfirmed, voice.PhraseTargetLost}
	if strings.Join(q.phrases, ",") != strings.Join(want, ",") {
		t.Fatalf("phrases = %v, want %v", q.phrases, want)
	}
	wantKinds := "target_acquired,target_lost,target_acquired,target_lost"
	if got := strings.Join(sink.kinds, ","); got != wantKinds {
		t.Fatalf("events = %s, want %s", got, wantKinds)
	}
}

func TestNoAnnouncementsOutsideSentry(t *testing.T) {
	face := []image.Rectangle{image.Rect(10, 10, 60, 60)}
	proc := &scriptedProcessor{faces: [][]image.Rectangle{face}}
	l, q, _ := newTestLoop(t, Config{}, proc, &cpuSource{cpu: []float64{10}})

	st := l.Tick(time.Unix(1, 0))
	if len(q.phrases) != 0 {
		t.Fatalf("phrases = %v, want none", q.phrases)
	}
	if st.Badge != "TARGET LOCKED" || st.Threat != types.ThreatHigh || !st.Detection.Locked {
		t.Fatalf("status = %q/%q locked=%v", st.Badge, st.Threat, st.Detection.Locked)
	}
}

func TestMotionBadgeOnlyInSentry(t *testing.T) {
	motion := []image.Rectangle{image.Rect(0, 0, 50, 50)}
	tests := []struct {
		sentry    bool
		wantBadge string
	}{
		{true, "MOTION DETECTED"},
		{false, "SCANNING SECTOR..."},
	}
	for _, tt := range tests {
		l, _, _ := newTestLoop(t, Config{Sentry: tt.sentry}, &scriptedProcessor{motion: motion}, &cpuSource{cpu: []float64{10}})
		st := l.Tick(time.Unix(1, 0))
		if st.Badge != tt.wantBadge {
			t.Fatalf("sentry=%v badge = %q, want %q", tt.sentry, st.Badge, tt.wantBadge)
		}
	}
}

func TestCaptureStoresLastFrame(t *testing.T) {
	l, q, sink := newTestLoop(t, Config{Sentry: true}, &scriptedProcessor{}, &cpuSource{cpu: []float64{10}})
	at := time.Date(2026, 10, 19, 14, 3, 11, 0, time.Local)

	if _, err := l.CaptureNow(at); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("capture before any frame: err = %v, want ErrNoFrame", err)
	}

	l.Tick(at)
	entry, err := l.CaptureNow(at)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if entry.JPEG[2] != 1 {
		t.Fatalf("captured frame %d, want frame 1", entry.JPEG[2])
	}

	st := l.Tick(at.Add(time.Second))
	if len(st.Gallery) != 1 || st.Gallery[0].ID != entry.ID || st.Gallery[0].Label != "14:03:11" {
		t.Fatalf("gallery = %+v", st.Gallery)
	}
	found := false
	for _, line := range st.Logs {
		if line.String() == "[REC] FRAME CAPTURED: 14:03:11" {
			found = true
		}
	}
	if !found {
		t.Fatalf("capture log missing from %v", st.Logs)
	}
	if len(q.phrases) != 1 || q.phrases[0] != voice.PhraseSnapshotCaptured {
		t.Fatalf("phrases = %v", q.phrases)
	}
	if sink.kinds[len(sink.kinds)-1] != types.EventSnapshot {
		t.Fatalf("events = %v", sink.kinds)
	}
}

func TestCapturesBeyondCapacityAreCounted(t *testing.T) {
	sampler, err := telemetry.NewSampler(&cpuSource{cpu: []float64{10}}, 50)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	l, err := New(Config{}, Deps{
		Processor: &scriptedProcessor{},
		Sampler:   sampler,
		Gallery:   gallery.New(2),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	at := time.Unix(100, 0)
	l.Tick(at)
	for i := range 3 {
		if _, err := l.CaptureNow(at.Add(time.Duration(i) * time.Second)); err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
	}
	st := l.Tick(at.Add(5 * time.Second))
	if st.GalleryTotal != 2 || st.CapturesTotal != 3 {
		t.Fatalf("gallery_total = %d captures_total = %d, want 2 and 3", st.GalleryTotal, st.CapturesTotal)
	}
	if len(st.Gallery) != 2 {
		t.Fatalf("gallery view = %d items, want 2", len(st.Gallery))
	}
}

func TestSamplerErrorSkipsTelemetry(t *testing.T) {
	src := &cpuSource{cpu: []float64{80}}
	l, _, _ := newTestLoop(t, Config{}, &scriptedProcessor{}, src)
	l.Tick(time.Unix(1, 0))

	src.err = errors.New("procfs unavailable")
	st := l.Tick(time.Unix(2, 0))
	if len(st.History.CPU) != 1 {
		t.Fatalf("cpu history = %v, want one reading", st.History.CPU)
	}
	if st.Telemetry.CPU != 80 {
		t.Fatalf("telemetry cpu = %v, want last good reading", st.Telemetry.CPU)
	}
	if st.FramesShown != 2 {
		t.Fatalf("frames shown = %d, want 2", st.FramesShown)
	}
}

func TestMissingFrameKeepsDetection(t *testing.T) {
	face := []image.Rectangle{image.Rect(10, 10, 60, 60)}
	proc := &scriptedProcessor{faces: [][]image.Rectangle{face}}
	l, _, _ := newTestLoop(t, Config{}, proc, &cpuSource{cpu: []float64{10}})
	l.Tick(time.Unix(1, 0))

	proc.fail = true
	st := l.Tick(time.Unix(2, 0))
	if !st.Detection.Locked || st.FramesMissed != 1 {
		t.Fatalf("locked=%v missed=%d", st.Detection.Locked, st.FramesMissed)
	}
}

type statusCounter struct {
	mu     sync.Mutex
	frames int
}

func (c *statusCounter) PublishFrame(types.Frame) {
	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
}
func (c *statusCounter) PublishStatus(types.Status) {}

func (c *statusCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func TestRunServesCaptureAndStops(t *testing.T) {
	sampler, err := telemetry.NewSampler(&cpuSource{cpu: []float64{10}}, 50)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	pub := &statusCounter{}
	g := gallery.New(4)
	l, err := New(Config{Tick: time.Millisecond}, Deps{
		Processor: &scriptedProcessor{},
		Sampler:   sampler,
		Gallery:   g,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loop published no frame")
		}
		time.Sleep(time.Millisecond)
	}

	capCtx, capCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer capCancel()
	if _, err := l.Capture(capCtx); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("gallery len = %d, want 1", g.Len())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := l.Capture(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("capture after stop: err = %v, want ErrStopped", err)
	}
}

func TestConfigRejectsBadSchedule(t *testing.T) {
	if err := (Config{AutoCapture: "every now and then"}).Validate(); err == nil {
		t.Fatalf("expected schedule error")
	}
	if err := (Config{AutoCapture: "@every 10m"}).Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}
