package webmonitor

import "github.com/aether-core/dashboard/pkg/types"

// MonitorStats describes the HTTP side of the dashboard.
type MonitorStats struct {
	FramesPublished uint64  `json:"frames_published"`
	AverageFPS      float64 `json:"average_fps"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	StreamClients   int     `json:"stream_clients"`
	StatusClients   int     `json:"status_clients"`
	VoiceClients    int     `json:"voice_clients"`
	FramesDropped   uint64  `json:"frames_dropped"`
}

// StatusResponse is the payload of GET /api/status.
type StatusResponse struct {
	types.Status
	Monitor MonitorStats `json:"monitor"`
}

// GalleryResponse is the payload of GET /api/gallery.
type GalleryResponse struct {
	Items    []types.GalleryItem `json:"items"`
	Total    int                 `json:"total"`    // snapshots held
	Captures uint64              `json:"captures"` // snapshots taken since start
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
