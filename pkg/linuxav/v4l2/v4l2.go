//go:build linux

// Package v4l2 provides pure Go bindings to the parts of the Video4Linux2
// (V4L2) API that streaming libraries tend to leave out: device enumeration,
// format queries and user controls.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%d %s: %s\n", dev.Index, dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	}
//
// # Controls
//
// Controls operate on an already open file descriptor so they can share the
// descriptor with a streaming library:
//
//	value, err := v4l2.GetControl(fd, v4l2.CIDBrightness)
//	err = v4l2.SetControl(fd, v4l2.CIDBrightness, value+5)
//	info, err := v4l2.QueryControl(fd, v4l2.CIDExposureAbsolute)
package v4l2
