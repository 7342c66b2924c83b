//go:build linux

package v4l2

import "unsafe"

// Request numbers follow the _IOC encoding from asm-generic/ioctl.h. The
// structures hold no pointers or longs, so sizes match on 32 and 64 bit.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'V'<<8 | nr
}

var (
	vidiocQuerycap       = ioc(iocRead, 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocEnumFmt        = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(v4l2Fmtdesc{}))
	vidiocGCtrl          = ioc(iocRead|iocWrite, 27, unsafe.Sizeof(v4l2Control{}))
	vidiocSCtrl          = ioc(iocRead|iocWrite, 28, unsafe.Sizeof(v4l2Control{}))
	vidiocQueryctrl      = ioc(iocRead|iocWrite, 36, unsafe.Sizeof(v4l2Queryctrl{}))
	vidiocEnumFramesizes = ioc(iocRead|iocWrite, 74, unsafe.Sizeof(v4l2Frmsizeenum{}))
)

// struct v4l2_capability, 104 bytes.
type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// effectiveCaps prefers the per-node capabilities when the driver reports
// them.
func (c *v4l2Capability) effectiveCaps() uint32 {
	if c.capabilities&capDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

// struct v4l2_fmtdesc, 64 bytes.
type v4l2Fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

// struct v4l2_frmsize_stepwise, 24 bytes.
type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

func (s v4l2FrmsizeStepwise) fits(w, h uint32) bool {
	return w >= s.minWidth && w <= s.maxWidth && h >= s.minHeight && h <= s.maxHeight
}

// struct v4l2_frmsizeenum, 44 bytes. The union holds either a discrete
// width and height or a stepwise range.
type v4l2Frmsizeenum struct {
	index       uint32
	pixelFormat uint32
	typ         uint32
	union       [24]byte
	reserved    [2]uint32
}

func (f *v4l2Frmsizeenum) discrete() Resolution {
	d := (*[2]uint32)(unsafe.Pointer(&f.union))
	return Resolution{Width: d[0], Height: d[1]}
}

func (f *v4l2Frmsizeenum) stepwise() v4l2FrmsizeStepwise {
	return *(*v4l2FrmsizeStepwise)(unsafe.Pointer(&f.union))
}

// struct v4l2_control, 8 bytes.
type v4l2Control struct {
	id    uint32
	value int32
}

// struct v4l2_queryctrl, 68 bytes.
type v4l2Queryctrl struct {
	id           uint32
	typ          uint32
	name         [32]byte
	minimum      int32
	maximum      int32
	step         int32
	defaultValue int32
	flags        uint32
	reserved     [2]uint32
}
