package webmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/pkg/types"
)

// Monitor holds the latest published status and fans frames and statuses out to
// HTTP clients. It implements the update loop's publisher and the voice
// speaker used for browser speech.
type Monitor struct {
	Frames   *Broadcaster[[]byte]
	Statuses *Broadcaster[*SerializedEvent]
	Phrases  *Broadcaster[*SerializedEvent]

	startTime time.Time

	mu          sync.RWMutex
	status      types.Status
	statusEvent *SerializedEvent
	framesSeen  uint64
}

// NewMonitor creates an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		Frames:    NewBroadcaster[[]byte]("FrameBroadcaster"),
		Statuses:  NewBroadcaster[*SerializedEvent]("StatusBroadcaster"),
		Phrases:   NewBroadcaster[*SerializedEvent]("PhraseBroadcaster"),
		startTime: time.Now(),
	}
}

// PublishFrame counts f and sends its JPEG to stream clients.
func (m *Monitor) PublishFrame(f types.Frame) {
	m.mu.Lock()
	m.framesSeen++
	m.mu.Unlock()

	m.Frames.Publish(f.JPEG)
}

// PublishStatus stores st and sends it, serialized once, to status clients.
func (m *Monitor) PublishStatus(st types.Status) {
	ev, err := serializeStatus(st)
	if err != nil {
		logger.Warn("Monitor", "Failed to serialize status: %v", err)
		return
	}

	m.mu.Lock()
	m.status, m.statusEvent = st, ev
	m.mu.Unlock()

	m.Statuses.Publish(ev)
}

// Say forwards a phrase to browsers listening on the voice stream.
func (m *Monitor) Say(_ context.Context, phrase string) error {
	ev, err := Serialize(newPhraseEvent(phrase, time.Now()))
	if err != nil {
		return err
	}
	m.Phrases.Publish(ev)
	return nil
}

// LatestStatus returns the last published status and its serialized form.
func (m *Monitor) LatestStatus() (types.Status, *SerializedEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.statusEvent, m.statusEvent != nil
}

// Stats summarizes the monitor for the status endpoint.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	frames := m.framesSeen
	m.mu.RUnlock()

	uptime := time.Since(m.startTime).Seconds()
	var fps float64
	if uptime > 0 {
		fps = float64(frames) / uptime
	}
	return MonitorStats{
		FramesPublished: frames,
		AverageFPS:      fps,
		UptimeSeconds:   uptime,
		StreamClients:   m.Frames.Clients(),
		StatusClients:   m.Statuses.Clients(),
		VoiceClients:    m.Phrases.Clients(),
		FramesDropped:   m.Frames.Dropped(),
	}
}

// Close disconnects all stream clients.
func (m *Monitor) Close() {
	m.Frames.Close()
	m.Statuses.Close()
	m.Phrases.Close()
}
