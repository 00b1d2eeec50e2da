package webmonitor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/aether-core/dashboard/internal/logger"
)

var (
	blankOnce sync.Once
	blankData []byte
	blankErr  error
)

// blankJPEG renders the "NO SIGNAL" frame sent until the camera delivers.
func blankJPEG() ([]byte, error) {
	blankOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		bg := color.RGBA{R: 0, G: 8, B: 12, A: 255}
		grid := color.RGBA{R: 0, G: 60, B: 70, A: 255}
		for y := range 480 {
			for x := range 640 {
				if x%40 == 0 || y%40 == 0 {
					img.SetRGBA(x, y, grid)
				} else {
					img.SetRGBA(x, y, bg)
				}
			}
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{R: 255, G: 0, B: 60, A: 255}),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(320-5*7, 244),
		}
		d.DrawString("NO SIGNAL")

		var buf bytes.Buffer
		if blankErr = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); blankErr == nil {
			blankData = buf.Bytes()
		}
	})
	return blankData, blankErr
}

// streamMJPEGFromChannel streams MJPEG from a channel (fanout pattern). The
// blank frame is sent first and whenever no frame arrives for idle.
func streamMJPEGFromChannel(ctx context.Context, w http.ResponseWriter, frameCh <-chan []byte, idle time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	blank, err := blankJPEG()
	if err != nil {
		http.Error(w, "Failed to render frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	jpegData := blank
	for {
		if err := writeMultipartJPEG(w, jpegData); err != nil {
			logger.Debug("MJPEG", "Client disconnected: %v", err)
			return
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return
		case data, ok := <-frameCh:
			if !ok {
				return
			}
			jpegData = data
		case <-time.After(idle):
			jpegData = blank
		}
	}
}

func writeMultipartJPEG(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// streamEventsFromChannel streams pre-serialized events to an SSE client.
// initial, when non-nil, is sent before anything from the channel.
func streamEventsFromChannel(ctx context.Context, w http.ResponseWriter, eventCh <-chan *SerializedEvent, initial *SerializedEvent, useProtobuf bool, keepAlive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if useProtobuf {
		w.Header().Set("X-Content-Format", "application/protobuf")
	} else {
		w.Header().Set("X-Content-Format", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if initial != nil {
		if err := writeSSE(w, initial, useProtobuf); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := writeSSE(w, event, useProtobuf); err != nil {
				logger.Debug("SSE", "Client disconnected during event write: %v", err)
				return
			}
			flusher.Flush()
		case <-time.After(keepAlive):
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				logger.Debug("SSE", "Client disconnected during keepalive: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event *SerializedEvent, useProtobuf bool) error {
	data := event.JSONData
	if useProtobuf {
		data = event.ProtobufData
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
