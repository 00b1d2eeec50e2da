package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aether-core/dashboard/internal/config"
	"github.com/aether-core/dashboard/internal/dashboard"
	"github.com/aether-core/dashboard/internal/emitter"
	"github.com/aether-core/dashboard/internal/gallery"
	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/internal/metrics"
	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/internal/vision"
	"github.com/aether-core/dashboard/internal/voice"
	"github.com/aether-core/dashboard/internal/webmonitor"
	"github.com/aether-core/dashboard/internal/webrtc"
	"github.com/aether-core/dashboard/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// publishers fans loop output out to every frame consumer.
type publishers []dashboard.Publisher

func (p publishers) PublishFrame(f types.Frame) {
	for _, pub := range p {
		pub.PublishFrame(f)
	}
}

func (p publishers) PublishStatus(st types.Status) {
	for _, pub := range p {
		pub.PublishStatus(st)
	}
}

// speakers builds the voice outputs enabled in cfg.
func speakers(cfg config.VoiceConfig, browser voice.Speaker) voice.MultiSpeaker {
	var out voice.MultiSpeaker
	if cfg.Command != "" {
		out = append(out, voice.CommandSpeaker{Command: cfg.Command, Args: cfg.Args})
	}
	if cfg.Browser && browser != nil {
		out = append(out, browser)
	}
	return out
}

// voiceActive reports whether announcements should be spoken. Only sentry
// mode raises them.
func voiceActive(cfg *config.Config) bool {
	return cfg.Voice.Enabled && cfg.Dashboard.Sentry
}

func dashboardConfig(cfg *config.Config) dashboard.Config {
	return dashboard.Config{
		Tick:        cfg.Dashboard.Tick,
		Sentry:      cfg.Dashboard.Sentry,
		LogSize:     cfg.Dashboard.LogLines,
		GalleryView: cfg.Dashboard.GalleryView,
		WarnCPU:     cfg.Dashboard.WarnCPU,
		Cooldown:    cfg.Dashboard.Cooldown,
		AutoCapture: cfg.Dashboard.AutoCapture,
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("Main", "Dashboard starting...")
	logger.Info("Main", "Log level: %s", logger.GetLevel())

	m := metrics.New()

	src, err := telemetry.NewProcSource(cfg.Telemetry.ProcPath, cfg.Telemetry.DiskPath)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	sampler, err := telemetry.NewSampler(src, cfg.Dashboard.History)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	cam, err := vision.OpenCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return err
	}
	defer cam.Close()
	w, h := cam.Resolution()
	logger.Info("Main", "  Camera: %s (%dx%d)", cam.Device(), w, h)

	faces, err := vision.NewFaceDetector(cfg.Camera.Cascade)
	if err != nil {
		return err
	}
	defer faces.Close()

	var motion *vision.MotionDetector
	if cfg.Dashboard.Sentry {
		motion = vision.NewMotionDetector()
	}
	proc := vision.NewProcessor(cam, faces, motion, vision.ProcessorConfig{
		Caption: cfg.Camera.Caption,
		Quality: cfg.Camera.Quality,
		Mirror:  cfg.Camera.Mirror,
	})
	defer proc.Close()

	gal := gallery.New(cfg.Dashboard.GalleryCapacity)
	monitor := webmonitor.NewMonitor()
	pubs := publishers{monitor}

	deps := dashboard.Deps{
		Processor: proc,
		Sampler:   sampler,
		Gallery:   gal,
		Observer:  m,
	}

	var browser voice.Speaker
	if cfg.Voice.Browser {
		browser = monitor
	}
	if out := speakers(cfg.Voice, browser); voiceActive(cfg) && len(out) > 0 {
		notifier := voice.NewNotifier(out)
		notifier.OnResult = m.VoiceResult
		notifier.Start(ctx)
		defer notifier.Stop()
		deps.Voice = notifier
	}

	var offers webmonitor.OfferHandler
	if cfg.WebRTC.Enabled {
		rtc := webrtc.NewServer(cfg.WebRTC.STUN, cfg.WebRTC.MaxClients)
		rtc.OnClientsChanged = func(n int) { m.WebRTCPeers.Store(int64(n)) }
		m.WatchWebRTC(rtc.ClientStats)
		defer rtc.Close()
		pubs = append(pubs, rtc)
		offers = rtc
	}
	deps.Publisher = pubs

	if cfg.MQTT.Enabled {
		em := emitter.NewMQTTEmitter(emitter.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Prefix,
			QoS:      cfg.MQTT.QoS,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		// The client keeps retrying in the background; events queue meanwhile.
		if err := em.Connect(); err != nil {
			logger.Warn("Main", "%v", err)
		}
		em.Start(ctx)
		m.WatchMQTT(em.Stats)
		defer em.Close()
		deps.Events = em
	}

	loop, err := dashboard.New(dashboardConfig(cfg), deps)
	if err != nil {
		return err
	}

	webCfg := webmonitor.DefaultConfig()
	webCfg.Addr = cfg.HTTP.Addr
	webCfg.AssetsDir = cfg.HTTP.AssetsDir
	webCfg.Title = cfg.HTTP.Title
	webCfg.GalleryLimit = cfg.Dashboard.GalleryView
	webCfg.BrowserSpeech = voiceActive(cfg) && cfg.Voice.Browser
	web := webmonitor.NewServer(webCfg, webmonitor.Deps{
		Monitor:   monitor,
		Gallery:   gal,
		Capturer:  loop,
		WebRTC:    offers,
		Metrics:   m,
		Terminate: cancel,
	})

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
	}
	httpServer := &http.Server{
		Handler:           web.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if cfg.HTTP.PprofAddr != "" {
		go func() {
			logger.Info("Main", "Starting pprof server on %s", cfg.HTTP.PprofAddr)
			if err := http.ListenAndServe(cfg.HTTP.PprofAddr, nil); err != nil {
				logger.Warn("Main", "pprof server error: %v", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Main", "Starting HTTP server on %s", ln.Addr())
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Main", "Shutting down...")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
		cancel()
	}

	if err := <-loopDone; err != nil && runErr == nil {
		runErr = err
	}
	monitor.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Main", "Error during shutdown: %v", err)
	}

	logger.Info("Main", "Dashboard stopped after %d ticks (%d frames)", loop.Session().Tick, m.FramesShown.Load())
	return runErr
}
