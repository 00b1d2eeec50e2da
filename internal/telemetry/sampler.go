package telemetry

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aether-core/dashboard/internal/history"
)

const bytesPerMB = 1024 * 1024

// Reading is one telemetry sample.
type Reading struct {
	CPU       float64
	RAM       float64
	NetMBps   float64
	Disk      float64
	DiskUsed  uint64
	DiskTotal uint64
	At        time.Time
}

// NetLabel formats the network throughput for the chart overlay.
func (r Reading) NetLabel() string {
	return fmt.Sprintf("%.1f", r.NetMBps)
}

// DiskLabel formats the disk usage as "used / total".
func (r Reading) DiskLabel() string {
	if r.DiskTotal == 0 {
		return fmt.Sprintf("%.0f%%", r.Disk)
	}
	return fmt.Sprintf("%s / %s", humanize.IBytes(r.DiskUsed), humanize.IBytes(r.DiskTotal))
}

// Sampler reads a Source and keeps the CPU, RAM and network histories.
type Sampler struct {
	src Source
	now func() time.Time

	CPU *history.Ring[float64]
	RAM *history.Ring[float64]
	Net *history.Ring[float64]

	lastRx uint64
	lastAt time.Time
}

// NewSampler takes the network baseline from src and returns a Sampler whose
// histories hold up to capacity readings.
func NewSampler(src Source, capacity int) (*Sampler, error) {
	return newSampler(src, capacity, time.Now)
}

func newSampler(src Source, capacity int, now func() time.Time) (*Sampler, error) {
	rx, err := src.RxBytes()
	if err != nil {
		return nil, fmt.Errorf("network baseline: %w", err)
	}
	return &Sampler{
		src:    src,
		now:    now,
		CPU:    history.NewRing[float64](capacity),
		RAM:    history.NewRing[float64](capacity),
		Net:    history.NewRing[float64](capacity),
		lastRx: rx,
		lastAt: now(),
	}, nil
}

// Sample reads the source, appends CPU/RAM/network to the histories and
// returns the reading. On error nothing is appended.
func (s *Sampler) Sample() (Reading, error) {
	cpu, err := s.src.CPUPercent()
	if err != nil {
		return Reading{}, err
	}
	ram, err := s.src.MemoryPercent()
	if err != nil {
		return Reading{}, err
	}
	disk, err := s.src.DiskUsage()
	if err != nil {
		return Reading{}, err
	}
	rx, err := s.src.RxBytes()
	if err != nil {
		return Reading{}, err
	}

	now := s.now()
	net := throughput(s.lastRx, rx, now.Sub(s.lastAt))
	s.lastRx = rx
	s.lastAt = now

	s.CPU.Push(cpu)
	s.RAM.Push(ram)
	s.Net.Push(net)

	return Reading{
		CPU:       cpu,
		RAM:       ram,
		NetMBps:   net,
		Disk:      disk.Percent,
		DiskUsed:  disk.Used,
		DiskTotal: disk.Total,
		At:        now,
	}, nil
}

// throughput converts a received-bytes delta into MB/s. A counter that went
// backwards (interface reset) yields 0.
func throughput(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev || elapsed <= 0 {
		return 0
	}
	return float64(cur-prev) / bytesPerMB / elapsed.Seconds()
}
