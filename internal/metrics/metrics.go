// Package metrics exposes dashboard counters and gauges to Prometheus.
package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/internal/voice"
	"github.com/aether-core/dashboard/pkg/types"
)

// Float is an atomically stored float64.
type Float struct{ bits atomic.Uint64 }

func (f *Float) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *Float) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// Metrics holds all application metrics
type Metrics struct {
	// Loop
	FramesShown  atomic.Uint64
	FramesMissed atomic.Uint64
	TickLatency  Float // seconds, last tick

	// Detection
	FacesInView   atomic.Uint64
	TargetLocked  atomic.Uint64 // 0 = scanning, 1 = locked
	MotionRegions atomic.Uint64

	// Telemetry
	CPUPercent  Float
	RAMPercent  Float
	DiskPercent Float
	NetMBps     Float

	// Gallery
	GalleryEntries atomic.Uint64
	Snapshots      atomic.Uint64

	// Voice
	PhrasesSpoken atomic.Uint64
	PhraseErrors  atomic.Uint64

	// Clients
	StreamClients atomic.Int64
	WebRTCPeers   atomic.Int64

	events   *prometheus.CounterVec
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aether_events_total",
			Help: "Dashboard events by kind",
		}, []string{"kind"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"aether_frames_shown_total", "Frames processed and published", u64(&m.FramesShown)},
		{"aether_frames_missed_total", "Ticks without a camera frame", u64(&m.FramesMissed)},
		{"aether_tick_seconds", "Duration of the last loop tick", m.TickLatency.Load},
		{"aether_faces_in_view", "Faces detected in the last frame", u64(&m.FacesInView)},
		{"aether_target_locked", "Target lock (0=scanning, 1=locked)", u64(&m.TargetLocked)},
		{"aether_motion_regions", "Motion regions in the last frame", u64(&m.MotionRegions)},
		{"aether_cpu_percent", "Host CPU utilisation", m.CPUPercent.Load},
		{"aether_ram_percent", "Host memory utilisation", m.RAMPercent.Load},
		{"aether_disk_percent", "Root filesystem utilisation", m.DiskPercent.Load},
		{"aether_net_rx_mbps", "Received throughput in MB/s", m.NetMBps.Load},
		{"aether_gallery_entries", "Snapshots held in the gallery", u64(&m.GalleryEntries)},
		{"aether_snapshots_total", "Snapshots captured since start", u64(&m.Snapshots)},
		{"aether_voice_spoken_total", "Phrases handed to the speaker", u64(&m.PhrasesSpoken)},
		{"aether_voice_errors_total", "Phrases the speaker failed on", u64(&m.PhraseErrors)},
		{"aether_stream_clients", "Connected MJPEG and SSE clients", i64(&m.StreamClients)},
		{"aether_webrtc_peers", "Connected WebRTC peers", i64(&m.WebRTCPeers)},
	}
	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, g.fn))
	}
	m.registry.MustRegister(m.events)
}

func u64(v *atomic.Uint64) func() float64 { return func() float64 { return float64(v.Load()) } }
func i64(v *atomic.Int64) func() float64  { return func() float64 { return float64(v.Load()) } }

// FrameShown records a published frame.
func (m *Metrics) FrameShown(f types.Frame) {
	m.FramesShown.Add(1)
	m.FacesInView.Store(uint64(len(f.Faces)))
	m.MotionRegions.Store(uint64(len(f.Motion)))
	if f.Locked() {
		m.TargetLocked.Store(1)
	} else {
		m.TargetLocked.Store(0)
	}
}

// FrameMissed records a tick without a camera frame.
func (m *Metrics) FrameMissed() { m.FramesMissed.Add(1) }

// TickDone records the duration of a loop tick.
func (m *Metrics) TickDone(d time.Duration) { m.TickLatency.Store(d.Seconds()) }

// Reading records the latest telemetry sample.
func (m *Metrics) Reading(r telemetry.Reading) {
	m.CPUPercent.Store(r.CPU)
	m.RAMPercent.Store(r.RAM)
	m.DiskPercent.Store(r.Disk)
	m.NetMBps.Store(r.NetMBps)
}

// Event counts a dashboard event.
func (m *Metrics) Event(kind string) {
	m.events.WithLabelValues(kind).Inc()
	if kind == types.EventSnapshot {
		m.Snapshots.Add(1)
	}
}

// GallerySize records the number of stored snapshots.
func (m *Metrics) GallerySize(n int) { m.GalleryEntries.Store(uint64(n)) }

// VoiceResult records the outcome of one spoken phrase.
func (m *Metrics) VoiceResult(r voice.Result) {
	m.PhrasesSpoken.Add(1)
	if r.Err != nil {
		m.PhraseErrors.Add(1)
	}
}

// WatchMQTT exports the event emitter's delivery counters.
func (m *Metrics) WatchMQTT(stats func() (published, dropped, failed uint64)) {
	pick := func(i int) func() float64 {
		return func() float64 {
			p, d, f := stats()
			return float64([3]uint64{p, d, f}[i])
		}
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "aether_mqtt_published_total", Help: "Events delivered to the broker"}, pick(0)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "aether_mqtt_dropped_total", Help: "Events dropped on a full queue"}, pick(1)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "aether_mqtt_failed_total", Help: "Events the broker rejected"}, pick(2)),
	)
}

// WatchWebRTC exports per-peer frame counters summed over connected peers.
func (m *Metrics) WatchWebRTC(stats func() map[string]map[string]uint64) {
	sum := func(key string) func() float64 {
		return func() float64 {
			var n uint64
			for _, peer := range stats() {
				n += peer[key]
			}
			return float64(n)
		}
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "aether_webrtc_frames_sent", Help: "Frames sent to connected peers"}, sum("frames_sent")),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "aether_webrtc_frames_dropped", Help: "Frames dropped for slow peers"}, sum("frames_dropped")),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
