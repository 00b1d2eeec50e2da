package webmonitor

import "time"

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr          string
	AssetsDir     string        // optional directory served under /assets/
	Title         string        // page header
	KeepAlive     time.Duration // SSE keepalive and MJPEG idle frame interval
	CaptureWait   time.Duration // how long POST /api/capture waits for the loop
	GalleryLimit  int           // default number of items in GET /api/gallery
	ThumbWidth    int
	ThumbHeight   int
	BrowserSpeech bool // page speaks phrases from /api/voice/stream
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		Title:         "AETHER // CORE",
		KeepAlive:     5 * time.Second,
		CaptureWait:   2 * time.Second,
		GalleryLimit:  6,
		ThumbWidth:    128,
		ThumbHeight:   80,
		BrowserSpeech: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.CaptureWait <= 0 {
		c.CaptureWait = d.CaptureWait
	}
	if c.GalleryLimit <= 0 {
		c.GalleryLimit = d.GalleryLimit
	}
	if c.ThumbWidth <= 0 || c.ThumbHeight <= 0 {
		c.ThumbWidth, c.ThumbHeight = d.ThumbWidth, d.ThumbHeight
	}
	return c
}
