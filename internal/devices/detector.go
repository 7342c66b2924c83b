package devices

import "errors"

// USB ids of the ELP 8MP camera family.
const (
	ELPVendorID  uint16 = 0x32e4
	ELPProductID uint16 = 0x0298
)

// High resolution hint threshold.
const (
	highResWidth  = 1920
	highResHeight = 1080
)

// ErrUnsupportedPlatform is returned by detectors on platforms without V4L2.
var ErrUnsupportedPlatform = errors.New("video device detection requires Linux")

// DeviceInfo represents a V4L2 capture node.
type DeviceInfo struct {
	Index      int    `json:"index" example:"2" doc:"N in /dev/videoN"`
	DevicePath string `json:"device_path" example:"/dev/video2" doc:"Path to the video device"`
	DeviceName string `json:"device_name" example:"ELP 8MP USB Camera" doc:"Card name reported by the driver"`
	DeviceID   string `json:"device_id" example:"usb-ELP_8MP-video-index0" doc:"Stable device identifier"`
	Caps       uint32 `json:"caps" doc:"V4L2 device capabilities"`
	VendorID   uint16 `json:"vendor_id" doc:"USB vendor id, 0 when not a USB device"`
	ProductID  uint16 `json:"product_id" doc:"USB product id, 0 when not a USB device"`
	MaxWidth   uint32 `json:"max_width" doc:"Widest discrete frame size across all formats"`
	MaxHeight  uint32 `json:"max_height" doc:"Height of the widest frame size"`
}

// HighRes reports whether the device advertises at least 1920x1080.
func (d DeviceInfo) HighRes() bool {
	return d.MaxWidth >= highResWidth && d.MaxHeight >= highResHeight
}

// IsELP reports whether the USB ids match the ELP 8MP family.
func (d DeviceInfo) IsELP() bool {
	return d.VendorID == ELPVendorID && d.ProductID == ELPProductID
}

func (d DeviceInfo) key() string {
	if d.DeviceID != "" {
		return d.DeviceID
	}
	return d.DevicePath
}

// FormatInfo represents a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32 `json:"pixel_format"`
	FormatName  string `json:"format_name"`
	Emulated    bool   `json:"emulated"`
}

// Resolution represents a discrete frame size.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Detector provides platform-specific device detection.
type Detector interface {
	// FindDevices returns all capture nodes ordered by index.
	FindDevices() ([]DeviceInfo, error)

	// GetDeviceFormats returns supported formats for a device.
	GetDeviceFormats(devicePath string) ([]FormatInfo, error)

	// GetDeviceResolutions returns supported frame sizes for a format.
	GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)
}

// NewDetector creates a platform-specific device detector.
func NewDetector() Detector {
	return newDetector()
}
