package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aether.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write aether.yaml: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Dashboard.History != 50 || cfg.Dashboard.LogLines != 7 || cfg.Dashboard.GalleryView != 6 {
		t.Fatalf("unexpected defaults: %+v", cfg.Dashboard)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.HTTP.Addr)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `log_level: debug
camera:
  device: rtsp://cam.local/stream
dashboard:
  sentry: true
  tick: 50ms
  cooldown: 3s
  auto_capture: "@every 10m"
mqtt:
  enabled: true
  broker: broker.local:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Dashboard.Sentry || cfg.Dashboard.Tick != 50*time.Millisecond || cfg.Dashboard.Cooldown != 3*time.Second {
		t.Fatalf("dashboard = %+v", cfg.Dashboard)
	}
	if cfg.Camera.Device != "rtsp://cam.local/stream" || cfg.Camera.Quality != 80 {
		t.Fatalf("camera = %+v", cfg.Camera)
	}
	if cfg.Dashboard.History != 50 {
		t.Fatalf("history default lost: %d", cfg.Dashboard.History)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Prefix != "aether" {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, text, want string
	}{
		{"level", "log_level: loud\n", "invalid log level"},
		{"quality", "camera:\n  quality: 0\n", "camera.quality"},
		{"tick", "dashboard:\n  tick: 0s\n", "dashboard.tick"},
		{"gallery", "dashboard:\n  gallery_capacity: 2\n", "gallery_capacity"},
		{"schedule", "dashboard:\n  auto_capture: sometimes\n", "auto_capture"},
		{"qos", "mqtt:\n  qos: 3\n", "mqtt.qos"},
	}
	for _, tt := range tests {
		_, err := Load(writeConfig(t, tt.text))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want mention of %q", tt.name, err, tt.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "camera: [unterminated\n")); err == nil {
		t.Fatalf("expected parse error")
	}
}
