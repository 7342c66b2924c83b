//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GetFormats lists the pixel formats a capture node offers, including the
// ones libv4l emulates.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	var formats []FormatInfo
	err := withNode(devicePath, func(n node) error {
		desc := v4l2Fmtdesc{typ: bufTypeVideoCapture}
		return n.walk(vidiocEnumFmt, unsafe.Pointer(&desc), &desc.index, func() bool {
			formats = append(formats, FormatInfo{
				PixelFormat: desc.pixelformat,
				FormatName:  cstr(desc.description[:]),
				Emulated:    desc.flags&fmtFlagEmulated != 0,
			})
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate formats of %s: %w", devicePath, err)
	}
	return formats, nil
}

// GetResolutions lists the frame sizes for one pixel format. Drivers that
// report a stepwise or continuous range get the standard sizes inside it.
// A driver without frame size enumeration yields an empty list.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	resolutions := []Resolution{}
	err := withNode(devicePath, func(n node) error {
		size := v4l2Frmsizeenum{pixelFormat: pixelFormat}
		return n.walk(vidiocEnumFramesizes, unsafe.Pointer(&size), &size.index, func() bool {
			switch size.typ {
			case frmsizeDiscrete:
				resolutions = append(resolutions, size.discrete())
				return true
			case frmsizeContinuous, frmsizeStepwise:
				resolutions = append(resolutions, stepwiseResolutions(size.stepwise())...)
			}
			return false
		})
	})
	if errors.Is(err, unix.ENOTTY) {
		return []Resolution{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate frame sizes of %s: %w", devicePath, err)
	}
	return resolutions, nil
}

// MaxResolution returns the largest frame size by pixel count over every
// native format. Formats whose sizes cannot be listed are skipped.
func MaxResolution(devicePath string) (Resolution, error) {
	formats, err := GetFormats(devicePath)
	if err != nil {
		return Resolution{}, err
	}

	var best Resolution
	for _, f := range formats {
		if f.Emulated {
			continue
		}
		sizes, err := GetResolutions(devicePath, f.PixelFormat)
		if err != nil {
			continue
		}
		for _, r := range sizes {
			if r.pixels() > best.pixels() {
				best = r
			}
		}
	}
	return best, nil
}

// standardSizes are offered for drivers that only report a range.
var standardSizes = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1600, 1200},
	{1920, 1080},
	{2048, 1536},
	{2592, 1944},
	{3264, 2448},
	{3840, 2160},
}

func stepwiseResolutions(s v4l2FrmsizeStepwise) []Resolution {
	var out []Resolution
	for _, r := range standardSizes {
		if s.fits(r.Width, r.Height) {
			out = append(out, r)
		}
	}
	return out
}
