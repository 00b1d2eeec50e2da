// Package config loads the dashboard configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/aether-core/dashboard/internal/logger"
)

// Config is the full dashboard configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogColor  bool            `yaml:"log_color"`
	Camera    CameraConfig    `yaml:"camera"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Voice     VoiceConfig     `yaml:"voice"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// CameraConfig selects the capture device and frame processing.
type CameraConfig struct {
	Device  string `yaml:"device"` // device index, file or stream URL
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Mirror  bool   `yaml:"mirror"`
	Cascade string `yaml:"cascade"` // Haar cascade XML
	Quality int    `yaml:"quality"` // JPEG quality 1-100
	Caption string `yaml:"caption"`
}

// DashboardConfig controls the update loop.
type DashboardConfig struct {
	Tick            time.Duration `yaml:"tick"`
	Sentry          bool          `yaml:"sentry"`
	History         int           `yaml:"history"`
	LogLines        int           `yaml:"log_lines"`
	GalleryView     int           `yaml:"gallery_view"`
	GalleryCapacity int           `yaml:"gallery_capacity"`
	WarnCPU         float64       `yaml:"warn_cpu"`
	Cooldown        time.Duration `yaml:"cooldown"`
	AutoCapture     string        `yaml:"auto_capture"`
}

// TelemetryConfig points the metrics sampler at the host.
type TelemetryConfig struct {
	ProcPath string `yaml:"proc_path"`
	DiskPath string `yaml:"disk_path"`
}

// VoiceConfig configures spoken announcements.
type VoiceConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"` // empty disables local speech
	Args    []string `yaml:"args"`
	Browser bool     `yaml:"browser"` // speak in the browser via /api/voice/stream
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	AssetsDir string `yaml:"assets_dir"`
	Title     string `yaml:"title"`
	PprofAddr string `yaml:"pprof_addr"` // empty disables the profiling listener
}

// WebRTCConfig configures the data channel frame link.
type WebRTCConfig struct {
	Enabled    bool     `yaml:"enabled"`
	STUN       []string `yaml:"stun"`
	MaxClients int      `yaml:"max_clients"`
}

// MQTTConfig configures event publishing.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		LogColor: true,
		Camera: CameraConfig{
			Device:  "0",
			Width:   640,
			Height:  480,
			Mirror:  true,
			Cascade: "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
			Quality: 80,
			Caption: "ID: AETHER-USR",
		},
		Dashboard: DashboardConfig{
			Tick:            33 * time.Millisecond,
			History:         50,
			LogLines:        7,
			GalleryView:     6,
			GalleryCapacity: 64,
			WarnCPU:         60,
			Cooldown:        5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ProcPath: "/proc",
			DiskPath: "/",
		},
		Voice: VoiceConfig{
			Enabled: true,
			Command: "espeak-ng",
			Browser: true,
		},
		HTTP: HTTPConfig{
			Addr:  ":8080",
			Title: "AETHER // CORE",
		},
		WebRTC: WebRTCConfig{
			MaxClients: 4,
		},
		MQTT: MQTTConfig{
			Broker:   "localhost:1883",
			ClientID: "aether-dashboard",
			Prefix:   "aether",
		},
	}
}

// Load reads filename over the defaults and validates the result. An empty
// filename returns the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Device == "" {
		errs = append(errs, errors.New("camera.device must be set"))
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		errs = append(errs, fmt.Errorf("camera.quality must be 1-100, got %d", c.Camera.Quality))
	}
	if c.Dashboard.Tick <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.tick must be positive, got %v", c.Dashboard.Tick))
	}
	if c.Dashboard.History < 1 {
		errs = append(errs, fmt.Errorf("dashboard.history must be at least 1, got %d", c.Dashboard.History))
	}
	if c.Dashboard.LogLines < 1 {
		errs = append(errs, fmt.Errorf("dashboard.log_lines must be at least 1, got %d", c.Dashboard.LogLines))
	}
	if c.Dashboard.GalleryView < 1 || c.Dashboard.GalleryCapacity < c.Dashboard.GalleryView {
		errs = append(errs, fmt.Errorf("dashboard.gallery_capacity (%d) must be at least gallery_view (%d) and gallery_view at least 1",
			c.Dashboard.GalleryCapacity, c.Dashboard.GalleryView))
	}
	if c.Dashboard.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("dashboard.cooldown must not be negative, got %v", c.Dashboard.Cooldown))
	}
	if c.Dashboard.AutoCapture != "" {
		if _, err := cron.ParseStandard(c.Dashboard.AutoCapture); err != nil {
			errs = append(errs, fmt.Errorf("dashboard.auto_capture: %w", err))
		}
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must be set"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker must be set when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0-2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}
