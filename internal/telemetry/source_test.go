package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/procfs"
)

func writeProcFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func statFile(user, idle string) string {
	return "cpu  " + user + " 0 0 " + idle + " 0 0 0 0 0 0\n" +
		"cpu0 " + user + " 0 0 " + idle + " 0 0 0 0 0 0\n" +
		"intr 0\nctxt 0\nbtime 1700000000\nprocesses 1\nprocs_running 1\nprocs_blocked 0\n" +
		"softirq 0 0 0 0 0 0 0 0 0 0 0\n"
}

func newFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeProcFile(t, root, "stat", statFile("100", "900"))
	writeProcFile(t, root, "meminfo",
		"MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    250 kB\nBuffers:          10 kB\nCached:           20 kB\n")
	writeProcFile(t, root, "net/dev",
		"Inter-|   Receive                                                |  Transmit\n"+
			" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"+
			"    lo:    1000      10    0    0    0     0          0         0     1000      10    0    0    0     0       0          0\n"+
			"  eth0:    4000      20    0    0    0     0          0         0     2000      20    0    0    0     0       0          0\n")
	return root
}

func TestProcSourceCPUPercent(t *testing.T) {
	root := newFixture(t)
	s, err := NewProcSource(root, root)
	if err != nil {
		t.Fatalf("NewProcSource: %v", err)
	}
	// +300 busy, +100 idle
	writeProcFile(t, root, "stat", statFile("400", "1000"))
	got, err := s.CPUPercent()
	if err != nil {
		t.Fatalf("CPUPercent: %v", err)
	}
	if math.Abs(got-75) > 1e-6 {
		t.Fatalf("cpu = %v, want 75", got)
	}
}

func TestProcSourceMemoryAndNetwork(t *testing.T) {
	root := newFixture(t)
	s, err := NewProcSource(root, root)
	if err != nil {
		t.Fatalf("NewProcSource: %v", err)
	}
	mem, err := s.MemoryPercent()
	if err != nil {
		t.Fatalf("MemoryPercent: %v", err)
	}
	if math.Abs(mem-75) > 1e-6 {
		t.Fatalf("mem = %v, want 75", mem)
	}
	rx, err := s.RxBytes()
	if err != nil {
		t.Fatalf("RxBytes: %v", err)
	}
	if rx != 5000 {
		t.Fatalf("rx = %d, want 5000", rx)
	}
	disk, err := s.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if disk.Percent < 0 || disk.Percent > 100 || disk.Total == 0 {
		t.Fatalf("implausible disk usage %+v", disk)
	}
}

func TestCPUBusyPercentNoElapsed(t *testing.T) {
	c := procfs.CPUStat{User: 1, Idle: 1}
	if got := cpuBusyPercent(c, c); got != 0 {
		t.Fatalf("cpu with no elapsed jiffies = %v, want 0", got)
	}
}
