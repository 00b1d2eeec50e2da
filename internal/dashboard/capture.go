package dashboard

import (
	"context"
	"time"

	"github.com/aether-core/dashboard/internal/gallery"
	"github.com/aether-core/dashboard/internal/voice"
	"github.com/aether-core/dashboard/pkg/types"
)

// Capture asks the running loop to store the most recently displayed frame
// in the gallery. It returns ErrNoFrame when nothing has been displayed yet.
func (l *Loop) Capture(ctx context.Context) (gallery.Entry, error) {
	reply := make(chan captureResult, 1)
	select {
	case l.captures <- reply:
	case <-l.done:
		return gallery.Entry{}, ErrStopped
	case <-ctx.Done():
		return gallery.Entry{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.entry, res.err
	case <-ctx.Done():
		return gallery.Entry{}, ctx.Err()
	}
}

// CaptureNow stores the last frame synchronously. It must be called from
// the goroutine that owns the loop, or while the loop is not running.
func (l *Loop) CaptureNow(now time.Time) (gallery.Entry, error) {
	return l.capture(now)
}

func (l *Loop) capture(now time.Time) (gallery.Entry, error) {
	s := l.session
	if !s.hasFrame {
		return gallery.Entry{}, ErrNoFrame
	}
	entry := l.gallery.Add(now, s.frame.JPEG)
	s.log(now, types.LogRec, "FRAME CAPTURED: %s", entry.Label())
	if l.cfg.Sentry {
		l.announcer.Say(voice.PhraseSnapshotCaptured)
	}
	l.emit(now, types.EventSnapshot, map[string]any{"id": entry.ID, "size": len(entry.JPEG)})
	l.obs.GallerySize(l.gallery.Len())
	log.Info("snapshot %s captured (%d bytes)", entry.ID, len(entry.JPEG))
	return entry, nil
}
