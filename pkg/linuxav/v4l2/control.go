//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"
)

// GetControl reads a control on a descriptor the caller already holds,
// typically the one a streaming library opened.
func GetControl(fd uintptr, id uint32) (int32, error) {
	c := v4l2Control{id: id}
	if err := node(fd).ioctl(vidiocGCtrl, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("get control 0x%08x: %w", id, err)
	}
	return c.value, nil
}

// SetControl writes a control. Drivers may clamp or ignore the value, so
// callers that care read it back.
func SetControl(fd uintptr, id uint32, value int32) error {
	c := v4l2Control{id: id, value: value}
	if err := node(fd).ioctl(vidiocSCtrl, unsafe.Pointer(&c)); err != nil {
		return fmt.Errorf("set control 0x%08x to %d: %w", id, value, err)
	}
	return nil
}

func QueryControl(fd uintptr, id uint32) (ControlInfo, error) {
	q := v4l2Queryctrl{id: id}
	if err := node(fd).ioctl(vidiocQueryctrl, unsafe.Pointer(&q)); err != nil {
		return ControlInfo{}, fmt.Errorf("query control 0x%08x: %w", id, err)
	}
	return ControlInfo{
		ID:           q.id,
		Name:         cstr(q.name[:]),
		Type:         q.typ,
		Minimum:      q.minimum,
		Maximum:      q.maximum,
		Step:         q.step,
		DefaultValue: q.defaultValue,
		Flags:        q.flags,
	}, nil
}
