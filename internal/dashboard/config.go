package dashboard

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Defaults for Config fields left at zero.
const (
	DefaultTick        = 33 * time.Millisecond
	DefaultLogSize     = 7
	DefaultGalleryView = 6
	DefaultWarnCPU     = 60.0
)

// Config controls the update loop.
type Config struct {
	Tick        time.Duration // loop period
	Sentry      bool          // motion detection and voice announcements
	LogSize     int           // kernel log lines kept
	GalleryView int           // snapshots listed in each status
	WarnCPU     float64       // CPU percent above which HIGH LOAD is logged
	Cooldown    time.Duration // minimum gap between lock announcements
	AutoCapture string        // cron schedule for periodic snapshots, empty to disable
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.LogSize <= 0 {
		c.LogSize = DefaultLogSize
	}
	if c.GalleryView <= 0 {
		c.GalleryView = DefaultGalleryView
	}
	if c.WarnCPU <= 0 {
		c.WarnCPU = DefaultWarnCPU
	}
	return c
}

// Validate checks fields that have no sensible default.
func (c Config) Validate() error {
	if c.AutoCapture != "" {
		if _, err := cron.ParseStandard(c.AutoCapture); err != nil {
			return fmt.Errorf("auto capture schedule %q: %w", c.AutoCapture, err)
		}
	}
	return nil
}
