// Package capturetest provides a scriptable in-memory capture device for
// tests. It emulates the misbehaviour real UVC drivers show: writes that are
// accepted but ignored, writes that are rejected, frames whose size differs
// from what the driver reports, and opens or reads that fail on demand.
package capturetest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
)

// SetFunc decides the outcome of a write. apply controls whether the stored
// value changes, ok is what Set reports to the caller.
type SetFunc func(d *Device, id capture.PropertyID, value float64) (apply, ok bool)

// Device is a fake capture device shared by every handle it opens.
type Device struct {
	mu     sync.Mutex
	values map[capture.PropertyID]float64

	// Ignore makes Set report success without changing the value.
	Ignore map[capture.PropertyID]bool
	// Reject makes Set report failure.
	Reject map[capture.PropertyID]bool
	// OnSet overrides Ignore and Reject when non-nil.
	OnSet SetFunc
	// OpenErr is consulted on every open; n counts opens from zero.
	OpenErr func(deviceIndex, n int) error
	// ReadOK is consulted on every pull; n counts pulls from zero.
	ReadOK func(n int) bool
	// FrameWidth and FrameHeight override the size of produced frames.
	FrameWidth  int
	FrameHeight int

	calls   []string
	opens   int
	closes  int
	reads   int
	live    int
	indices []int
}

// NewDevice returns a device with the given initial property values.
func NewDevice(values map[capture.PropertyID]float64) *Device {
	d := &Device{
		values: make(map[capture.PropertyID]float64),
		Ignore: make(map[capture.PropertyID]bool),
		Reject: make(map[capture.PropertyID]bool),
	}
	for id, v := range values {
		d.values[id] = v
	}
	return d
}

// Open implements capture.Opener.
func (d *Device) Open(deviceIndex int) (capture.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.opens
	d.opens++
	d.indices = append(d.indices, deviceIndex)
	d.calls = append(d.calls, fmt.Sprintf("open %d", deviceIndex))

	if d.OpenErr != nil {
		if err := d.OpenErr(deviceIndex, n); err != nil {
			return nil, err
		}
	}
	d.live++
	return &Handle{dev: d}, nil
}

// Value returns the stored value of a property.
func (d *Device) Value(id capture.PropertyID) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values[id]
}

// SetValue stores a property value directly, bypassing write rules.
func (d *Device) SetValue(id capture.PropertyID, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[id] = value
}

// Store writes a value from inside an OnSet callback, where the lock is held.
func (d *Device) Store(id capture.PropertyID, value float64) {
	d.values[id] = value
}

// Load reads a value from inside an OnSet callback, where the lock is held.
func (d *Device) Load(id capture.PropertyID) float64 {
	return d.values[id]
}

// Calls returns the recorded call log, optionally filtered by prefix.
func (d *Device) Calls(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Opens returns the number of open attempts, failed ones included.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// OpenIndices returns the device index passed to each open attempt.
func (d *Device) OpenIndices() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.indices...)
}

// Closes returns the number of handle closes that released a live handle.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Live returns the number of handles currently open.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Reads returns the number of frame pulls.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Handle is one open handle on a Device.
type Handle struct {
	dev    *Device
	closed bool
	seq    uint64
}

// Get implements capture.Handle.
func (h *Handle) Get(id capture.PropertyID) float64 {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, fmt.Sprintf("get %d", id))
	if h.closed {
		return 0
	}
	return d.values[id]
}

// Set implements capture.Handle.
func (h *Handle) Set(id capture.PropertyID, value float64) bool {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, fmt.Sprintf("set %d=%g", id, value))
	if h.closed {
		return false
	}

	apply, ok := !d.Ignore[id] && !d.Reject[id], !d.Reject[id]
	if d.OnSet != nil {
		apply, ok = d.OnSet(d, id, value)
	}
	if apply {
		d.values[id] = value
	}
	return ok
}

// ReadFrame implements capture.Handle.
func (h *Handle) ReadFrame() (capture.Frame, bool) {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, "read")
	if h.closed {
		return capture.Frame{}, false
	}

	n := d.reads
	d.reads++
	if d.ReadOK != nil && !d.ReadOK(n) {
		return capture.Frame{}, false
	}

	width, height := int(d.values[capture.PropFrameWidth]), int(d.values[capture.PropFrameHeight])
	if d.FrameWidth > 0 {
		width = d.FrameWidth
	}
	if d.FrameHeight > 0 {
		height = d.FrameHeight
	}
	format, ok := catalog.FormatFromFourCC(uint32(d.values[capture.PropFourCC]))
	if !ok {
		format = catalog.FormatMJPEG
	}

	h.seq++
	return capture.Frame{
		Data:      []byte{0xff, 0xd8, 0xff, 0xd9},
		Width:     width,
		Height:    height,
		Format:    format,
		Sequence:  h.seq,
		Timestamp: time.Unix(0, 0),
	}, true
}

// Close implements capture.Handle.
func (h *Handle) Close() error {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, "close")
	if h.closed {
		return nil
	}
	h.closed = true
	d.closes++
	d.live--
	return nil
}
