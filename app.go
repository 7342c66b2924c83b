package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/uvcctl/cmd"
	"github.com/smazurov/uvcctl/internal/api"
	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/config"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics/collectors"
	"github.com/smazurov/uvcctl/internal/metrics/exporters"
	"github.com/smazurov/uvcctl/internal/pump"
	"github.com/smazurov/uvcctl/internal/session"
	"github.com/smazurov/uvcctl/internal/sink"
	"github.com/smazurov/uvcctl/internal/updater"
)

// application is the long-running server: one camera session, the frame
// pump feeding preview, snapshots and recording, and the HTTP API.
type application struct {
	opts   *Options
	camera config.Camera
	logger *slog.Logger

	ctrl      *control.Controller
	monitor   *devices.Monitor
	pump      *pump.Pump
	sinks     sink.Multi
	recorder  *sink.Recorder
	watcher   *config.Watcher[config.Camera]
	collector *collectors.DeviceCollector
	stats     *exporters.StatsPublisher
	server    *api.Server

	ctx      context.Context
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

func newApplication(opts *Options) (*application, error) {
	logger := logging.GetLogger("main")

	// Create event bus for in-process event handling
	eventBus := events.New()
	logging.SetLogCallback(eventBus.PublishLogEntry)

	cam, err := config.LoadCamera(opts.CameraConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("No camera file, using defaults", "path", opts.CameraConfigFile)
		cam, err = config.DefaultCamera(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.CameraConfigFile, err)
	}

	detector := devices.NewDetector()
	ctrl, err := cmd.NewController(cam, capture.NewV4L2Opener(), detector, eventBus)
	if err != nil {
		return nil, err
	}

	// Sinks fed by the frame pump
	preview := cmd.NewPreview(cam.Preview)
	snapshotOpts := []sink.SnapshotOption{sink.WithPublisher(eventBus), sink.WithQuality(opts.SnapshotQuality)}
	if opts.SnapshotMaxWidth > 0 {
		snapshotOpts = append(snapshotOpts, sink.WithMaxWidth(opts.SnapshotMaxWidth))
	}
	snapshots := sink.NewSnapshotter(cam.Camera.OutputDir, snapshotOpts...)

	app := &application{
		opts:      opts,
		camera:    cam,
		logger:    logger,
		ctrl:      ctrl,
		monitor:   devices.NewMonitor(detector, eventBus),
		pump:      cmd.NewPump(ctrl, cam, cam.Camera.Recording),
		sinks:     sink.Multi{preview, snapshots},
		collector: collectors.NewDeviceCollector(detector),
		pumpDone:  make(chan struct{}),
	}
	if cam.Camera.Recording {
		app.recorder = sink.NewRecorder(cam.Camera.OutputDir)
		app.sinks = append(app.sinks, app.recorder)
	}
	if opts.MetricsSSEEnabled {
		app.stats = exporters.NewStatsPublisher(eventBus, time.Second)
	}

	// Property presets follow camera.toml edits while the session is open
	app.watcher = config.NewWatcher(opts.CameraConfigFile, config.LoadCamera, logging.GetLogger("config"))
	app.watcher.OnReload(app.applyCamera)

	apiOpts := api.Options{
		AuthUsername:           opts.AuthUsername,
		AuthPassword:           opts.AuthPassword,
		Controller:             ctrl,
		Devices:                detector,
		EventBus:               eventBus,
		Preview:                preview,
		Snapshots:              snapshots,
		DefaultResolutionIndex: app.resolutionIndex(),
	}
	if opts.MetricsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.Handler()
	}
	if opts.UpdateEnabled {
		svc, svcErr := updater.NewService(updater.Options{
			Repository:        opts.UpdateRepository,
			Prerelease:        opts.UpdatePrerelease,
			RestartAfterApply: true,
		})
		if svcErr != nil {
			logger.Warn("Self-update unavailable", "error", svcErr)
		} else {
			apiOpts.UpdateService = svc
		}
	}
	app.server = api.NewServer(apiOpts)

	app.ctx, app.cancel = context.WithCancel(context.Background())
	return app, nil
}

func (a *application) resolutionIndex() int {
	return a.camera.Camera.ResolutionIndexOr(a.ctrl.Catalog().DefaultIndex())
}

// run starts the background workers, opens the camera and serves HTTP until
// stop is called.
func (a *application) run() error {
	if err := a.monitor.Start(a.ctx); err != nil {
		a.logger.Warn("Device hotplug monitor unavailable", "error", err)
	}
	if err := a.collector.Start(a.ctx); err != nil {
		a.logger.Warn("Failed to start device collector", "error", err)
	}
	if a.stats != nil {
		go a.stats.Run(a.ctx)
	}
	if err := a.watcher.Start(); err != nil {
		a.logger.Warn("Camera config hot reload disabled", "error", err)
	}

	if a.opts.CameraAutoOpen {
		if _, err := a.ctrl.Open(a.ctx, a.resolutionIndex(), a.camera.Camera.Recording); err != nil {
			a.logger.Error("Failed to open camera, waiting for an open request", "error", err)
		} else {
			a.applyPresets(a.camera)
		}
	}

	go func() {
		defer close(a.pumpDone)
		_ = a.pump.Serve(a.ctx, a.sinks, time.Second)
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.logger.Debug("systemd notify failed", "error", err)
	}

	a.logger.Info("Starting HTTP server", "port", a.opts.Port)
	return a.server.Start(a.opts.Port)
}

func (a *application) stop() {
	a.logger.Info("Shutting down server")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err := a.server.Stop(); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}

	// Closing the session ends the current pump run; cancel stops Serve
	a.cancel()
	if err := a.ctrl.Close(); err != nil {
		a.logger.Error("Error closing camera", "error", err)
	}
	select {
	case <-a.pumpDone:
	case <-time.After(5 * time.Second):
		a.logger.Warn("Frame pump did not stop in time")
	}

	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Error("Error finishing recording", "error", err)
		}
	}
	if err := a.watcher.Stop(); err != nil {
		a.logger.Warn("Error stopping config watcher", "error", err)
	}
	a.monitor.Stop()
	if err := a.collector.Stop(); err != nil {
		a.logger.Warn("Error stopping device collector", "error", err)
	}
}

// applyCamera handles a camera.toml reload.
func (a *application) applyCamera(next config.Camera) {
	if err := next.Validate(a.ctrl.Catalog(), a.ctrl.Registry()); err != nil {
		a.logger.Warn("Ignoring invalid camera config", "error", err)
		return
	}
	if a.ctrl.Status().State != session.StateOpen {
		return
	}
	a.applyPresets(next)
}

func (a *application) applyPresets(cam config.Camera) {
	presets := cam.Presets()
	if len(presets) == 0 {
		return
	}
	if _, err := a.ctrl.ApplyPresets(presets); err != nil {
		a.logger.Warn("Some property presets failed", "error", err)
	}
}
