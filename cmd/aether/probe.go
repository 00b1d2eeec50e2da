package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aether-core/dashboard/internal/config"
	"github.com/aether-core/dashboard/internal/telemetry"
	"github.com/aether-core/dashboard/internal/vision"
)

const defaultProbeInterval = time.Second

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	src, err := telemetry.NewProcSource(cfg.Telemetry.ProcPath, cfg.Telemetry.DiskPath)
	if err != nil {
		return err
	}
	r, err := probeTelemetry(src, interval)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printReading(out, r)

	if withCamera, _ := cmd.Flags().GetBool("camera"); withCamera {
		return probeCamera(out, cfg.Camera)
	}
	return nil
}

// probeTelemetry takes a baseline from src, waits interval and returns the
// next reading.
func probeTelemetry(src telemetry.Source, interval time.Duration) (telemetry.Reading, error) {
	sampler, err := telemetry.NewSampler(src, 1)
	if err != nil {
		return telemetry.Reading{}, err
	}
	time.Sleep(interval)
	return sampler.Sample()
}

func printReading(w io.Writer, r telemetry.Reading) {
	fmt.Fprintf(w, "CPU   %5.1f%%\n", r.CPU)
	fmt.Fprintf(w, "RAM   %5.1f%%\n", r.RAM)
	fmt.Fprintf(w, "NET   %s/s\n", humanize.IBytes(uint64(r.NetMBps*1024*1024)))
	fmt.Fprintf(w, "DISK  %5.1f%% (%s)\n", r.Disk, r.DiskLabel())
}

func probeCamera(w io.Writer, cfg config.CameraConfig) error {
	cam, err := vision.OpenCamera(cfg.Device, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer cam.Close()
	width, height := cam.Resolution()
	fmt.Fprintf(w, "CAM   %s %dx%d\n", cam.Device(), width, height)

	faces, err := vision.NewFaceDetector(cfg.Cascade)
	if err != nil {
		return err
	}
	defer faces.Close()
	fmt.Fprintf(w, "HAAR  %s\n", cfg.Cascade)
	return nil
}
