package devices

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/uvcctl/internal/logging"
)

// ErrNoDevice is returned when no detected device satisfies the strategy.
var ErrNoDevice = errors.New("no matching capture device")

// Resolver picks a device index by running a Strategy over detected devices.
// It satisfies session.DeviceResolver.
type Resolver struct {
	detector Detector
	strategy Strategy
	logger   *slog.Logger
}

// NewResolver creates a resolver. A nil strategy means DefaultStrategy.
func NewResolver(detector Detector, strategy Strategy) *Resolver {
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	return &Resolver{
		detector: detector,
		strategy: strategy,
		logger:   logging.GetLogger("devices"),
	}
}

// Resolve returns the /dev/videoN index of the chosen device.
func (r *Resolver) Resolve() (int, error) {
	devices, err := r.detector.FindDevices()
	if err != nil {
		return -1, fmt.Errorf("detect devices: %w", err)
	}
	if len(devices) == 0 {
		return -1, ErrNoDevice
	}

	idx, ok := r.strategy(devices)
	if !ok {
		r.logger.Warn("No device matched the selection strategy", "candidates", len(devices))
		return -1, ErrNoDevice
	}

	for _, d := range devices {
		if d.Index == idx {
			r.logger.Info("Selected capture device",
				"index", idx, "name", d.DeviceName, "device_id", d.DeviceID, "high_res", d.HighRes())
			break
		}
	}
	return idx, nil
}
