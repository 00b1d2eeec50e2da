// Package telemetry samples host CPU, memory, disk and network usage for the
// dashboard charts.
package telemetry

import (
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// DiskUsage is the usage of the filesystem holding the sampled path.
type DiskUsage struct {
	Percent float64
	Used    uint64
	Total   uint64
}

// Source exposes point-in-time host metrics.
type Source interface {
	CPUPercent() (float64, error)
	MemoryPercent() (float64, error)
	DiskUsage() (DiskUsage, error)
	RxBytes() (uint64, error)
}

// ProcSource reads metrics from procfs and statfs.
type ProcSource struct {
	fs       procfs.FS
	diskPath string

	mu      sync.Mutex
	lastCPU procfs.CPUStat
	primed  bool
}

// NewProcSource opens procfs at mountPoint (procfs.DefaultMountPoint when
// empty) and reports disk usage for diskPath.
func NewProcSource(mountPoint, diskPath string) (*ProcSource, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	if diskPath == "" {
		diskPath = "/"
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mountPoint, err)
	}
	s := &ProcSource{fs: fs, diskPath: diskPath}
	// Prime the CPU counters so the first sample has a baseline.
	if _, err := s.CPUPercent(); err != nil {
		return nil, err
	}
	return s, nil
}

// CPUPercent returns overall CPU utilization since the previous call.
func (s *ProcSource) CPUPercent() (float64, error) {
	stat, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read cpu stat: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := stat.CPUTotal
	if !s.primed {
		s.lastCPU = cur
		s.primed = true
		return 0, nil
	}
	pct := cpuBusyPercent(s.lastCPU, cur)
	s.lastCPU = cur
	return pct, nil
}

func cpuBusyPercent(prev, cur procfs.CPUStat) float64 {
	idle := func(c procfs.CPUStat) float64 { return c.Idle + c.Iowait }
	total := func(c procfs.CPUStat) float64 {
		return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
	}
	dTotal := total(cur) - total(prev)
	if dTotal <= 0 {
		return 0
	}
	dIdle := idle(cur) - idle(prev)
	return clampPercent((dTotal - dIdle) / dTotal * 100)
}

// MemoryPercent returns used memory as a percentage of MemTotal.
func (s *ProcSource) MemoryPercent() (float64, error) {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo has no MemTotal")
	}
	total := float64(*mi.MemTotal)
	var avail float64
	switch {
	case mi.MemAvailable != nil:
		avail = float64(*mi.MemAvailable)
	case mi.MemFree != nil:
		avail = float64(*mi.MemFree)
		if mi.Buffers != nil {
			avail += float64(*mi.Buffers)
		}
		if mi.Cached != nil {
			avail += float64(*mi.Cached)
		}
	}
	return clampPercent((total - avail) / total * 100), nil
}

// DiskUsage returns usage of the filesystem holding the configured path.
// Percent is relative to the space available to unprivileged users.
func (s *ProcSource) DiskUsage() (DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(s.diskPath, &st); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", s.diskPath, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	used := (st.Blocks - st.Bfree) * bsize
	avail := st.Bavail * bsize
	var pct float64
	if used+avail > 0 {
		pct = float64(used) / float64(used+avail) * 100
	}
	return DiskUsage{Percent: clampPercent(pct), Used: used, Total: total}, nil
}

// RxBytes returns the cumulative received bytes over all interfaces.
func (s *ProcSource) RxBytes() (uint64, error) {
	nd, err := s.fs.NetDev()
	if err != nil {
		return 0, fmt.Errorf("read net dev: %w", err)
	}
	return nd.Total().RxBytes, nil
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
