//go:build linux

package devices

import (
	"log/slog"

	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/pkg/linuxav/v4l2"
)

type linuxDetector struct {
	logger *slog.Logger
}

func newDetector() Detector {
	return &linuxDetector{logger: logging.GetLogger("devices")}
}

// FindDevices lists capture nodes with the largest frame size each one
// advertises. A node whose sizes cannot be read is still listed, with zero
// maximums.
func (d *linuxDetector) FindDevices() ([]DeviceInfo, error) {
	nodes, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}
	return mapSlice(nodes, func(n v4l2.DeviceInfo) DeviceInfo {
		info := DeviceInfo{
			Index:      n.Index,
			DevicePath: n.DevicePath,
			DeviceName: n.DeviceName,
			DeviceID:   n.DeviceID,
			Caps:       n.Caps,
			VendorID:   n.VendorID,
			ProductID:  n.ProductID,
		}
		if largest, err := v4l2.MaxResolution(n.DevicePath); err != nil {
			d.logger.Debug("Cannot enumerate frame sizes", "path", n.DevicePath, "error", err)
		} else {
			info.MaxWidth, info.MaxHeight = largest.Width, largest.Height
		}
		return info
	}), nil
}

func (d *linuxDetector) GetDeviceFormats(devicePath string) ([]FormatInfo, error) {
	formats, err := v4l2.GetFormats(devicePath)
	if err != nil {
		return nil, err
	}
	return mapSlice(formats, func(f v4l2.FormatInfo) FormatInfo { return FormatInfo(f) }), nil
}

func (d *linuxDetector) GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	sizes, err := v4l2.GetResolutions(devicePath, pixelFormat)
	if err != nil {
		return nil, err
	}
	return mapSlice(sizes, func(r v4l2.Resolution) Resolution { return Resolution(r) }), nil
}

func mapSlice[S, D any](in []S, fn func(S) D) []D {
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
