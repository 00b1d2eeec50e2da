package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aether-core/dashboard/internal/config"
	"github.com/aether-core/dashboard/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "aether",
	Short:         "aether - webcam HUD and host telemetry dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the camera and serve the dashboard",
	RunE:  runServe,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print one telemetry reading and optionally check the camera",
	RunE:  runProbe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file (defaults when empty)")
	pf.String("log-level", "", "Log level (debug, info, warn, error, silent)")
	pf.Bool("log-color", true, "Enable colored log output")
	pf.String("device", "", "Camera device index, file or stream URL")
	pf.String("cascade", "", "Haar cascade XML for face detection")

	f := serveCmd.Flags()
	f.String("addr", "", "HTTP listen address")
	f.Bool("sentry", false, "Enable motion detection and voice announcements")
	f.Duration("tick", 0, "Update loop period")
	f.Bool("voice", true, "Enable spoken announcements")
	f.String("voice-command", "", "Local speech command (empty keeps the config value)")
	f.Bool("webrtc", false, "Enable the WebRTC frame link")
	f.String("mqtt-broker", "", "Publish events to this MQTT broker")
	f.String("auto-capture", "", "Cron schedule for periodic snapshots, e.g. @every 10m")
	f.String("pprof", "", "pprof listen address (disabled when empty)")

	probeCmd.Flags().Bool("camera", false, "Also open the camera and load the cascade")
	probeCmd.Flags().Duration("interval", 0, "Wait between baseline and reading")

	rootCmd.AddCommand(serveCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aether: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies flags the user set and installs
// the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, os.Stderr, cfg.LogColor)
	return cfg, nil
}

// applyFlags overrides cfg with every flag explicitly set on cmd.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Lookup(name) != nil && fs.Changed(name) {
			apply()
		}
	}
	str := func(name string) string {
		v, e := fs.GetString(name)
		if e != nil {
			err = e
		}
		return v
	}
	boolean := func(name string) bool {
		v, e := fs.GetBool(name)
		if e != nil {
			err = e
		}
		return v
	}

	set("log-level", func() { cfg.LogLevel = str("log-level") })
	set("log-color", func() { cfg.LogColor = boolean("log-color") })
	set("device", func() { cfg.Camera.Device = str("device") })
	set("cascade", func() { cfg.Camera.Cascade = str("cascade") })
	set("addr", func() { cfg.HTTP.Addr = str("addr") })
	set("sentry", func() { cfg.Dashboard.Sentry = boolean("sentry") })
	set("tick", func() {
		v, e := fs.GetDuration("tick")
		if e != nil {
			err = e
		}
		cfg.Dashboard.Tick = v
	})
	set("voice", func() { cfg.Voice.Enabled = boolean("voice") })
	set("voice-command", func() { cfg.Voice.Command = str("voice-command") })
	set("webrtc", func() { cfg.WebRTC.Enabled = boolean("webrtc") })
	set("mqtt-broker", func() {
		cfg.MQTT.Broker = str("mqtt-broker")
		cfg.MQTT.Enabled = cfg.MQTT.Broker != ""
	})
	set("auto-capture", func() { cfg.Dashboard.AutoCapture = str("auto-capture") })
	set("pprof", func() { cfg.HTTP.PprofAddr = str("pprof") })
	return err
}
