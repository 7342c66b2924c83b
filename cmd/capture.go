package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvcctl/internal/api"
	"github.com/smazurov/uvcctl/internal/config"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/pump"
	"github.com/smazurov/uvcctl/internal/session"
	"github.com/smazurov/uvcctl/internal/sink"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var opts cameraOptions
	var dir string
	var maxWidth, quality int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture one still image",
		Long:  `Opens the camera, applies the [properties] presets and writes the first frame as a JPEG.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.initLogging("cmd")
			ctrl, cam, err := opts.open(cmd.Context(), false, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if dir == "" {
				dir = cam.Camera.OutputDir
			}
			frame, err := firstFrame(cmd.Context(), ctrl, timeout)
			if err != nil {
				return err
			}
			shot, err := sink.NewSnapshotter(dir, sink.WithMaxWidth(maxWidth), sink.WithQuality(quality)).Take(frame)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d\n", shot.Path, shot.Width, shot.Height)
			return err
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVarP(&dir, "output", "o", "", "Output directory, defaults to [camera].output_dir")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "Downscale wider images to this width (0 keeps full size)")
	cmd.Flags().IntVar(&quality, "quality", 90, "JPEG quality")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for a frame")
	return cmd
}

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	var opts cameraOptions
	var dir string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record frames to disk",
		Long: `Opens the camera in recording mode and writes frames until interrupted or --duration elapses. ` +
			`Stalled streams are restarted automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.initLogging("cmd")
			ctx, stop := signalContext(cmd.Context(), duration)
			defer stop()

			ctrl, cam, err := opts.open(ctx, true, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if dir == "" {
				dir = cam.Camera.OutputDir
			}
			recorder := sink.NewRecorder(dir)
			runErr := NewPump(ctrl, cam, true).Run(ctx, recorder)
			closeErr := recorder.Close()

			for _, f := range recorder.Files() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			if isShutdown(runErr) {
				runErr = nil
			}
			return errors.Join(runErr, closeErr)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVarP(&dir, "output", "o", "", "Output directory, defaults to [camera].output_dir")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 records until interrupted)")
	return cmd
}

// CreatePreviewCmd creates the preview command.
func CreatePreviewCmd() *cobra.Command {
	var opts cameraOptions
	var addr string
	var width, quality int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve an MJPEG preview",
		Long: `Opens the camera and serves a live preview at /preview.mjpeg along with the control API, ` +
			`without authentication. Intended for focusing and framing on a trusted network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.initLogging("cmd")
			ctx, stop := signalContext(cmd.Context(), 0)
			defer stop()

			ctrl, cam, err := opts.open(ctx, false, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if width > 0 {
				cam.Preview.Width = width
			}
			if quality > 0 {
				cam.Preview.Quality = quality
			}
			preview := NewPreview(cam.Preview)
			server := api.NewServer(api.Options{
				Controller:             ctrl,
				Preview:                preview,
				DefaultResolutionIndex: cam.Camera.ResolutionIndexOr(ctrl.Catalog().DefaultIndex()),
			})

			serveErr := make(chan error, 1)
			go func() {
				if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
					stop()
				}
				close(serveErr)
			}()
			logger.Info("Preview available", "url", "http://"+displayAddr(addr)+"/preview.mjpeg")

			runErr := NewPump(ctrl, cam, false).Run(ctx, preview)
			if err := server.Stop(); err != nil {
				logger.Warn("Error stopping preview server", "error", err)
			}
			if err := <-serveErr; err != nil {
				return err
			}
			if isShutdown(runErr) {
				return nil
			}
			return runErr
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVar(&addr, "addr", ":8091", "Listen address")
	cmd.Flags().IntVar(&width, "width", 0, "Preview width, defaults to [preview].width")
	cmd.Flags().IntVar(&quality, "quality", 0, "Preview JPEG quality, defaults to [preview].quality")
	return cmd
}

// CreateRestartCmd creates the restart command.
func CreateRestartCmd() *cobra.Command {
	var opts cameraOptions
	var hard bool
	var target int

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Exercise the restart procedure",
		Long: `Opens the camera, then restarts it and prints the resulting session status. ` +
			`--hard cycles through the safe resolutions first, which recovers most cameras that stop streaming after a mode switch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.initLogging("cmd")
			ctrl, _, err := opts.open(cmd.Context(), false, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			restart := session.RestartOptions{Hard: hard}
			if target >= 0 {
				restart.Index = &target
			}
			status, err := ctrl.Restart(cmd.Context(), restart)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().BoolVar(&hard, "hard", false, "Cycle through the safe resolutions before reopening")
	cmd.Flags().IntVar(&target, "to", -1, "Resolution index to restart into (default: the current one)")
	return cmd
}

// NewPreview builds the MJPEG preview from [preview]. Zero values keep the
// sink defaults.
func NewPreview(cfg config.PreviewSection) *sink.Preview {
	var opts []sink.PreviewOption
	if cfg.Width > 0 {
		opts = append(opts, sink.WithPreviewWidth(cfg.Width))
	}
	if cfg.Quality > 0 {
		opts = append(opts, sink.WithPreviewQuality(cfg.Quality))
	}
	return sink.NewPreview(opts...)
}

// NewPump builds a frame pump configured from the [camera] and [session]
// tables.
func NewPump(ctrl *control.Controller, cam config.Camera, recording bool) *pump.Pump {
	opts := []pump.Option{
		pump.WithRecording(recording),
		pump.WithHardRestart(cam.Camera.HardRestart),
	}
	if cam.Session.FailureThreshold > 0 {
		opts = append(opts, pump.WithFailureThreshold(cam.Session.FailureThreshold))
	}
	return pump.New(ctrl, opts...)
}

// signalContext is cancelled on SIGINT, SIGTERM or after d when d > 0.
func signalContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
