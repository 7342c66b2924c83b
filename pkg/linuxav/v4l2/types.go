//go:build linux

package v4l2

// DeviceInfo is one capture node found by FindDevices.
type DeviceInfo struct {
	DevicePath string
	DeviceName string // card name reported by the driver
	DeviceID   string // by-id link name, or synthesized from the bus info
	Index      int    // N in /dev/videoN, -1 when the node name is not numeric
	Caps       uint32
	VendorID   uint16 // 0 for non-USB devices
	ProductID  uint16
}

type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

type Resolution struct {
	Width  uint32
	Height uint32
}

func (r Resolution) pixels() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// ControlInfo describes a user control as reported by VIDIOC_QUERYCTRL.
type ControlInfo struct {
	ID           uint32
	Name         string
	Type         uint32
	Minimum      int32
	Maximum      int32
	Step         int32
	DefaultValue int32
	Flags        uint32
}

// Disabled reports whether the driver marks the control as permanently disabled.
func (c ControlInfo) Disabled() bool {
	return c.Flags&ctrlFlagDisabled != 0
}

// ReadOnly reports whether the control rejects writes.
func (c ControlInfo) ReadOnly() bool {
	return c.Flags&ctrlFlagReadOnly != 0
}

// Flags and enum values from videodev2.h.
const (
	capVideoCapture = 0x00000001
	capDeviceCaps   = 0x80000000

	fmtFlagEmulated = 0x0002

	frmsizeDiscrete   = 1
	frmsizeContinuous = 2
	frmsizeStepwise   = 3

	bufTypeVideoCapture = 1
)

// Control flags.
const (
	ctrlFlagDisabled = 0x0001
	ctrlFlagReadOnly = 0x0004
)

// User and camera class control IDs.
const (
	CIDBrightness            uint32 = 0x00980900
	CIDContrast              uint32 = 0x00980901
	CIDSaturation            uint32 = 0x00980902
	CIDHue                   uint32 = 0x00980903
	CIDGamma                 uint32 = 0x00980910
	CIDExposure              uint32 = 0x00980911
	CIDGain                  uint32 = 0x00980913
	CIDWhiteBalanceTemp      uint32 = 0x0098091a
	CIDSharpness             uint32 = 0x0098091b
	CIDBacklightCompensation uint32 = 0x0098091c
	CIDExposureAuto          uint32 = 0x009a0901
	CIDExposureAbsolute      uint32 = 0x009a0902
	CIDExposureAutoPriority  uint32 = 0x009a0903
	CIDFocusAbsolute         uint32 = 0x009a090a
	CIDFocusAuto             uint32 = 0x009a090c
	CIDZoomAbsolute          uint32 = 0x009a090d
	CIDAnalogueGain          uint32 = 0x009e0903
)

// Exposure auto modes for CIDExposureAuto.
const (
	ExposureManual           int32 = 1
	ExposureAperturePriority int32 = 3
)

// Raw control ids start at the user class base.
const controlClassUser uint32 = 0x00980000

// IsRawControlID reports whether id lies in the V4L2 control id space rather
// than a small generic property number.
func IsRawControlID(id uint32) bool {
	return id >= controlClassUser
}
