package webmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aether-core/dashboard/internal/dashboard"
	"github.com/aether-core/dashboard/internal/gallery"
	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/internal/metrics"
	"github.com/aether-core/dashboard/pkg/types"
)

// Capturer stores the current frame in the gallery.
type Capturer interface {
	Capture(ctx context.Context) (gallery.Entry, error)
}

// OfferHandler answers WebRTC offers.
type OfferHandler interface {
	HandleOffer(offerJSON []byte) ([]byte, error)
}

// Deps are the collaborators of a Server. Monitor and Gallery are required.
type Deps struct {
	Monitor   *Monitor
	Gallery   *gallery.Gallery
	Capturer  Capturer
	WebRTC    OfferHandler     // nil disables /api/webrtc/offer
	Metrics   *metrics.Metrics // nil disables /metrics
	Terminate func()           // called after POST /api/terminate is answered
}

// Server serves the dashboard page and API.
type Server struct {
	cfg     Config
	monitor *Monitor
	gallery *gallery.Gallery
	capture Capturer
	webrtc  OfferHandler
	metrics *metrics.Metrics
	stop    func()
}

// NewServer returns a configured dashboard server.
func NewServer(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg.withDefaults(),
		monitor: deps.Monitor,
		gallery: deps.Gallery,
		capture: deps.Capturer,
		webrtc:  deps.WebRTC,
		metrics: deps.Metrics,
		stop:    deps.Terminate,
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", newAssetHandler(s.cfg.AssetsDir)))
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/status/stream", s.handleStatusStream)
	mux.HandleFunc("GET /api/voice/stream", s.handleVoiceStream)
	mux.HandleFunc("POST /api/capture", s.handleCapture)
	mux.HandleFunc("GET /api/gallery", s.handleGallery)
	mux.HandleFunc("GET /api/gallery/{id}", s.handleGalleryImage)
	mux.HandleFunc("GET /api/gallery/{id}/thumb", s.handleGalleryThumb)
	mux.HandleFunc("POST /api/terminate", s.handleTerminate)
	mux.HandleFunc("POST /api/webrtc/offer", s.handleWebRTCOffer)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, pageData{
		Title:         s.cfg.Title,
		BrowserSpeech: s.cfg.BrowserSpeech,
		WebRTC:        s.webrtc != nil,
	}); err != nil {
		logger.Warn("Server", "Failed to render index: %v", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	done := s.track()
	defer done()

	id, frameCh := s.monitor.Frames.Subscribe()
	defer s.monitor.Frames.Unsubscribe(id)
	streamMJPEGFromChannel(r.Context(), w, frameCh, s.cfg.KeepAlive)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.monitor.LatestStatus()
	if !ok {
		writeError(w, "no status published yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, StatusResponse{Status: st, Monitor: s.monitor.Stats()})
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	done := s.track()
	defer done()

	id, eventCh := s.monitor.Statuses.Subscribe()
	defer s.monitor.Statuses.Unsubscribe(id)

	_, latest, _ := s.monitor.LatestStatus()
	streamEventsFromChannel(r.Context(), w, eventCh, latest, wantsProtobuf(r), s.cfg.KeepAlive)
}

func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	done := s.track()
	defer done()

	id, eventCh := s.monitor.Phrases.Subscribe()
	defer s.monitor.Phrases.Unsubscribe(id)
	streamEventsFromChannel(r.Context(), w, eventCh, nil, wantsProtobuf(r), s.cfg.KeepAlive)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.capture == nil {
		writeError(w, "capture is not available", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CaptureWait)
	defer cancel()

	entry, err := s.capture.Capture(ctx)
	switch {
	case err == nil:
		writeJSONWithStatus(w, dashboard.GalleryItem(entry), http.StatusCreated)
	case errors.Is(err, dashboard.ErrNoFrame):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dashboard.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.GalleryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries := s.gallery.View(limit)
	resp := GalleryResponse{Items: make([]types.GalleryItem, 0, len(entries)), Total: s.gallery.Len(), Captures: s.gallery.Total()}
	for _, e := range entries {
		resp.Items = append(resp.Items, dashboard.GalleryItem(e))
	}
	writeJSON(w, resp)
}

func (s *Server) handleGalleryImage(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.gallery.Get(r.PathValue("id"))
	if !ok {
		writeError(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if notModified(w, r, entry.ETag) {
		return
	}
	writeImage(w, entry.JPEG)
}

func (s *Server) handleGalleryThumb(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.gallery.Get(r.PathValue("id"))
	if !ok {
		writeError(w, "snapshot not found", http.StatusNotFound)
		return
	}
	etag := strings.TrimSuffix(entry.ETag, `"`) + `-thumb"`
	if notModified(w, r, etag) {
		return
	}
	thumb, err := gallery.Thumbnail(entry.JPEG, s.cfg.ThumbWidth, s.cfg.ThumbHeight)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeImage(w, thumb)
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	if s.stop == nil {
		writeError(w, "terminate is not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"status":    "terminating",
		"timestamp": float64(time.Now().Unix()),
	})
	logger.Warn("Server", "Terminate requested by %s", r.RemoteAddr)
	go s.stop()
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if s.webrtc == nil {
		writeError(w, "webrtc is disabled", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, "Invalid offer data", http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, "Invalid offer data", http.StatusBadRequest)
		return
	}
	if payload["sdp"] == nil || payload["type"] == nil {
		writeError(w, "Invalid offer data", http.StatusBadRequest)
		return
	}

	answer, err := s.webrtc.HandleOffer(body)
	if err != nil {
		logger.Warn("Server", "WebRTC offer failed: %v", err)
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

// track counts a long-lived streaming client.
func (s *Server) track() func() {
	if s.metrics == nil {
		return func() {}
	}
	s.metrics.StreamClients.Add(1)
	return func() { s.metrics.StreamClients.Add(-1) }
}

func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")
}

func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSONWithStatus(w, ErrorResponse{Error: msg}, status)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}
