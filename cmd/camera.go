// Package cmd holds the uvcctl subcommands. Each one loads camera.toml,
// opens a session through a controller and does one job.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/config"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
)

// Swapped in tests.
var (
	newOpener   = func() capture.Opener { return capture.NewV4L2Opener() }
	newDetector = devices.NewDetector
)

// NewController builds a controller for cam. A pinned [camera].device opens
// that index directly; anything else resolves the device through detector
// on every open.
func NewController(cam config.Camera, opener capture.Opener, detector devices.Detector, bus control.EventPublisher) (*control.Controller, error) {
	cat := catalog.Default()
	reg := properties.Default()
	if err := cam.Validate(cat, reg); err != nil {
		return nil, fmt.Errorf("invalid camera config: %w", err)
	}

	index, pinned, strategy, err := cam.Camera.DeviceSelection()
	if err != nil {
		return nil, err
	}

	var opts []session.Option
	if pinned {
		opts = append(opts, session.WithDeviceIndex(index))
	} else {
		opts = append(opts, session.WithResolver(devices.NewResolver(detector, strategy)))
	}
	return control.New(opener, cam.SessionConfig(cat, reg), bus, opts...), nil
}

// cameraOptions are the flags shared by every command that opens the camera.
type cameraOptions struct {
	cameraFile string
	device     string
	index      int
	logLevel   levelValue
	logJSON    bool
}

func (o *cameraOptions) bind(f *pflag.FlagSet) {
	o.logLevel = "info"
	f.StringVar(&o.cameraFile, "camera", "camera.toml", "Camera configuration file")
	f.StringVarP(&o.device, "device", "d", "", "Device index or selection strategy, overrides the camera file")
	f.IntVarP(&o.index, "index", "i", -1, "Resolution index, overrides the camera file")
	f.Var(&o.logLevel, "log-level", "Logging level (debug, info, warn, error)")
	f.BoolVar(&o.logJSON, "log-json", false, "Log in JSON format")
}

// levelValue is a --log-level flag that rejects unknown levels while the
// command line is parsed.
type levelValue string

func (v *levelValue) String() string { return string(*v) }

func (v *levelValue) Set(s string) error {
	if _, err := logging.ParseLevel(s); err != nil {
		return err
	}
	*v = levelValue(strings.ToLower(s))
	return nil
}

func (v *levelValue) Type() string { return "level" }

// initLogging sets up logging for a one-shot command and returns its logger.
func (o *cameraOptions) initLogging(module string) *slog.Logger {
	cfg := logging.Config{Level: string(o.logLevel), Format: "text", Output: "stderr"}
	if o.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
	return logging.GetLogger(module)
}

// load reads the camera file, falling back to defaults when it is missing,
// and applies the flag overrides.
func (o *cameraOptions) load() (config.Camera, error) {
	cam, err := config.LoadCamera(o.cameraFile)
	if errors.Is(err, fs.ErrNotExist) {
		cam = config.DefaultCamera()
	} else if err != nil {
		return config.Camera{}, err
	}

	if o.device != "" {
		cam.Camera.Device = o.device
	}
	if o.index >= 0 {
		idx := o.index
		cam.Camera.ResolutionIndex = &idx
	}
	return cam, nil
}

// open loads the camera file, opens a session at the configured resolution
// and applies the [properties] presets. Failed presets are logged, not
// fatal.
func (o *cameraOptions) open(ctx context.Context, recording bool, logger *slog.Logger) (*control.Controller, config.Camera, error) {
	cam, err := o.load()
	if err != nil {
		return nil, config.Camera{}, err
	}

	ctrl, err := NewController(cam, newOpener(), newDetector(), nil)
	if err != nil {
		return nil, cam, err
	}

	index := cam.Camera.ResolutionIndexOr(ctrl.Catalog().DefaultIndex())
	status, err := ctrl.Open(ctx, index, recording)
	if err != nil {
		return nil, cam, err
	}
	logger.Info("Camera session open", "device", deref(status.DeviceIndex), "resolution_index", deref(status.ResolutionIndex), "format", status.Format)

	if presets := cam.Presets(); len(presets) > 0 {
		if _, presetErr := ctrl.ApplyPresets(presets); presetErr != nil {
			logger.Warn("Some property presets failed", "error", presetErr)
		}
	}
	return ctrl, cam, nil
}

// firstFrame pulls until a frame arrives or the deadline passes.
func firstFrame(ctx context.Context, ctrl *control.Controller, timeout time.Duration) (capture.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		frame, ok, err := ctrl.ReadFrame()
		if err != nil {
			return capture.Frame{}, err
		}
		if ok {
			return frame, nil
		}
		if time.Now().After(deadline) {
			return capture.Frame{}, session.ErrNoFrameAvailable
		}
		select {
		case <-ctx.Done():
			return capture.Frame{}, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
