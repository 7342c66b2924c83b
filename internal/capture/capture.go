// Package capture defines the handle a device session drives and the
// implementations behind it.
//
// A Handle is deliberately narrow and lossy: Set reports only whether the
// driver accepted the call, Get returns 0 for anything it cannot read, and
// ReadFrame reports a failed pull as ok=false rather than an error. Callers
// must read values back to learn what the device actually did.
package capture

import (
	"time"

	"github.com/smazurov/uvcctl/internal/catalog"
)

// PropertyID names a device property. Small values are generic property
// numbers (see the Prop constants); values in the V4L2 control id space are
// passed to the driver untouched.
type PropertyID uint32

// Generic property ids.
const (
	PropFrameWidth   PropertyID = 3
	PropFrameHeight  PropertyID = 4
	PropFPS          PropertyID = 5
	PropFourCC       PropertyID = 6
	PropBrightness   PropertyID = 10
	PropContrast     PropertyID = 11
	PropSaturation   PropertyID = 12
	PropHue          PropertyID = 13
	PropGain         PropertyID = 14
	PropExposure     PropertyID = 15
	PropSharpness    PropertyID = 20
	PropAutoExposure PropertyID = 21
	PropGamma        PropertyID = 22
	PropTemperature  PropertyID = 23
	PropZoom         PropertyID = 27
	PropFocus        PropertyID = 28
	PropBacklight    PropertyID = 32
	PropAutoFocus    PropertyID = 39
)

// Frame is one pulled image in its wire format.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    catalog.Format
	Sequence  uint64
	Timestamp time.Time
}

// Handle is an open capture device.
type Handle interface {
	Get(id PropertyID) float64
	Set(id PropertyID, value float64) bool
	ReadFrame() (Frame, bool)
	Close() error
}

// Opener acquires handles by device index.
type Opener interface {
	Open(deviceIndex int) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(deviceIndex int) (Handle, error)

// Open calls f.
func (f OpenerFunc) Open(deviceIndex int) (Handle, error) {
	return f(deviceIndex)
}
