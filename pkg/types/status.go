package types

import "time"

// Log levels used in the kernel log panel.
const (
	LogSys  = "SYS"
	LogWarn = "WARN"
	LogRec  = "REC"
	LogEvt  = "EVT"
)

// LogLine is one entry of the kernel log panel.
type LogLine struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// String renders the line the way the log panel shows it.
func (l LogLine) String() string {
	return "[" + l.Level + "] " + l.Text
}

// Threat levels shown by the status badge.
const (
	ThreatLow      = "LOW"
	ThreatElevated = "ELEVATED"
	ThreatHigh     = "HIGH"
)

// Detection mirrors the detection state of the session.
type Detection struct {
	Locked     bool    `json:"locked"`
	Motion     bool    `json:"motion"`
	Faces      int     `json:"faces"`
	Regions    int     `json:"regions"`
	ScanLine   int     `json:"scan_line"`
	LastSpoken float64 `json:"last_spoken,omitempty"`
}

// Telemetry is the latest metrics reading plus display labels.
type Telemetry struct {
	CPU       float64 `json:"cpu"`
	RAM       float64 `json:"ram"`
	NetMBps   float64 `json:"net_mbps"`
	Disk      float64 `json:"disk"`
	NetLabel  string  `json:"net_label"`
	DiskLabel string  `json:"disk_label"`
}

// History carries the chart series, oldest first.
type History struct {
	CPU []float64 `json:"cpu"`
	RAM []float64 `json:"ram"`
	Net []float64 `json:"net"`
}

// GalleryItem describes a captured snapshot without its image data.
type GalleryItem struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Label      string    `json:"label"`
	Size       int       `json:"size"`
	URL        string    `json:"url"`
	ThumbURL   string    `json:"thumb_url"`
}

// Status is the full dashboard state published once per tick.
type Status struct {
	Tick          uint64        `json:"tick"`
	Timestamp     float64       `json:"timestamp"`
	Sentry        bool          `json:"sentry"`
	Badge         string        `json:"badge"`
	Threat        string        `json:"threat"`
	Detection     Detection     `json:"detection"`
	Telemetry     Telemetry     `json:"telemetry"`
	History       History       `json:"history"`
	Logs          []LogLine     `json:"logs"`
	Gallery       []GalleryItem `json:"gallery"`
	GalleryTotal  int           `json:"gallery_total"`  // snapshots held
	CapturesTotal uint64        `json:"captures_total"` // snapshots taken since start
	FramesShown   uint64        `json:"frames_shown"`
	FramesMissed  uint64        `json:"frames_missed"`
}

// Event kinds published to external sinks.
const (
	EventTargetAcquired = "target_acquired"
	EventTargetLost     = "target_lost"
	EventMotion         = "motion"
	EventSnapshot       = "snapshot"
	EventHighLoad       = "high_load"
)

// Event is a discrete dashboard occurrence.
type Event struct {
	Kind      string         `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}
