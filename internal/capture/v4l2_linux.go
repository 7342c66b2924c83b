//go:build linux

package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	vl "github.com/vladimirvivien/go4vl/v4l2"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/pkg/linuxav/v4l2"
)

const (
	defaultReadTimeout = 5 * time.Second
	defaultBufferSize  = 2
)

// controlIDs maps generic property ids onto V4L2 controls. Geometry, frame
// rate and fourcc are not controls and go through the pixel format instead.
var controlIDs = map[PropertyID]uint32{
	PropBrightness:   v4l2.CIDBrightness,
	PropContrast:     v4l2.CIDContrast,
	PropSaturation:   v4l2.CIDSaturation,
	PropHue:          v4l2.CIDHue,
	PropGain:         v4l2.CIDGain,
	PropExposure:     v4l2.CIDExposureAbsolute,
	PropSharpness:    v4l2.CIDSharpness,
	PropAutoExposure: v4l2.CIDExposureAuto,
	PropGamma:        v4l2.CIDGamma,
	PropTemperature:  v4l2.CIDWhiteBalanceTemp,
	PropZoom:         v4l2.CIDZoomAbsolute,
	PropFocus:        v4l2.CIDFocusAbsolute,
	PropBacklight:    v4l2.CIDBacklightCompensation,
	PropAutoFocus:    v4l2.CIDFocusAuto,
}

// ControlID resolves a property id to the V4L2 control it addresses.
func ControlID(id PropertyID) (uint32, bool) {
	if v4l2.IsRawControlID(uint32(id)) {
		return uint32(id), true
	}
	cid, ok := controlIDs[id]
	return cid, ok
}

// V4L2Opener opens /dev/videoN through go4vl.
type V4L2Opener struct {
	// ReadTimeout bounds a single frame pull. Zero means 5s.
	ReadTimeout time.Duration
	// BufferSize is the number of driver buffers. Zero means 2.
	BufferSize uint32
	Logger     *slog.Logger
}

// NewV4L2Opener creates an opener with default settings.
func NewV4L2Opener() *V4L2Opener {
	return &V4L2Opener{}
}

// Open opens the device node for deviceIndex without starting the stream.
func (o *V4L2Opener) Open(deviceIndex int) (Handle, error) {
	logger := o.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}

	bufSize := o.BufferSize
	if bufSize == 0 {
		bufSize = defaultBufferSize
	}
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}

	path := v4l2.DevicePath(deviceIndex)
	dev, err := device.Open(path, device.WithBufferSize(bufSize))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	logger.Debug("Opened capture device", "path", path, "name", dev.Name())

	return &v4l2Handle{
		dev:     dev,
		path:    path,
		timeout: timeout,
		logger:  logger,
	}, nil
}

type v4l2Handle struct {
	dev     *device.Device
	path    string
	timeout time.Duration
	logger  *slog.Logger

	stream    stream
	pixFormat vl.PixFormat
	sequence  uint64
	closed    bool
}

func (h *v4l2Handle) Get(id PropertyID) float64 {
	if h.closed {
		return 0
	}

	switch id {
	case PropFrameWidth, PropFrameHeight, PropFourCC:
		pf, err := h.dev.GetPixFormat()
		if err != nil {
			h.logger.Debug("Failed to read pixel format", "path", h.path, "error", err)
			return 0
		}
		switch id {
		case PropFrameWidth:
			return float64(pf.Width)
		case PropFrameHeight:
			return float64(pf.Height)
		default:
			return float64(uint32(pf.PixelFormat))
		}
	case PropFPS:
		fps, err := h.dev.GetFrameRate()
		if err != nil {
			h.logger.Debug("Failed to read frame rate", "path", h.path, "error", err)
			return 0
		}
		return float64(fps)
	}

	cid, ok := ControlID(id)
	if !ok {
		return 0
	}
	value, err := v4l2.GetControl(h.dev.Fd(), cid)
	if err != nil {
		h.logger.Debug("Failed to read control", "path", h.path, "id", id, "error", err)
		return 0
	}
	return float64(value)
}

func (h *v4l2Handle) Set(id PropertyID, value float64) bool {
	if h.closed {
		return false
	}

	switch id {
	case PropFrameWidth, PropFrameHeight, PropFourCC:
		return h.setPixFormat(id, value)
	case PropFPS:
		h.stopStream()
		if err := h.dev.SetFrameRate(uint32(math.Round(value))); err != nil {
			h.logger.Debug("Failed to set frame rate", "path", h.path, "fps", value, "error", err)
			return false
		}
		return true
	}

	cid, ok := ControlID(id)
	if !ok {
		return false
	}
	if err := v4l2.SetControl(h.dev.Fd(), cid, int32(math.Round(value))); err != nil {
		h.logger.Debug("Failed to set control", "path", h.path, "id", id, "value", value, "error", err)
		return false
	}
	return true
}

// setPixFormat changes one field of the pixel format. The format cannot
// change while buffers are mapped, so the stream is stopped first and
// restarted lazily by the next ReadFrame.
func (h *v4l2Handle) setPixFormat(id PropertyID, value float64) bool {
	h.stopStream()

	pf, err := h.dev.GetPixFormat()
	if err != nil {
		h.logger.Debug("Failed to read pixel format", "path", h.path, "error", err)
		return false
	}

	switch id {
	case PropFrameWidth:
		pf.Width = uint32(math.Round(value))
	case PropFrameHeight:
		pf.Height = uint32(math.Round(value))
	case PropFourCC:
		code := uint32(value)
		switch code {
		case catalog.FourCCYUY2, catalog.FourCCYUYV:
			pf.PixelFormat = vl.PixelFmtYUYV
		case catalog.FourCCMJPG:
			pf.PixelFormat = vl.PixelFmtMJPEG
		default:
			pf.PixelFormat = vl.FourCCType(code)
		}
	}

	if err := h.dev.SetPixFormat(pf); err != nil {
		h.logger.Debug("Failed to set pixel format", "path", h.path, "id", id, "value", value, "error", err)
		return false
	}
	return true
}

func (h *v4l2Handle) ReadFrame() (Frame, bool) {
	if h.closed {
		return Frame{}, false
	}
	if h.stream == nil {
		if err := h.startStream(); err != nil {
			h.logger.Debug("Failed to start stream", "path", h.path, "error", err)
			return Frame{}, false
		}
	}

	data, err := h.stream.next(h.timeout)
	switch {
	case errors.Is(err, errReadTimeout):
		h.logger.Debug("Frame read timed out", "path", h.path, "timeout", h.timeout)
		return Frame{}, false
	case err != nil:
		// The next pull starts a fresh stream, or fails to if the device is gone.
		h.logger.Warn("Capture stream failed", "path", h.path, "error", err)
		h.stopStream()
		return Frame{}, false
	}
	return h.frame(data)
}

// frame wraps a dequeued payload. Errored buffers arrive empty and raw
// frames shorter than the negotiated size are truncated; both count as a
// failed pull.
func (h *v4l2Handle) frame(data []byte) (Frame, bool) {
	if len(data) == 0 {
		h.logger.Debug("Dropped errored buffer", "path", h.path)
		return Frame{}, false
	}

	format, ok := catalog.FormatFromFourCC(uint32(h.pixFormat.PixelFormat))
	if !ok {
		format = catalog.FormatMJPEG
	}

	f := Frame{
		Data:      data,
		Width:     int(h.pixFormat.Width),
		Height:    int(h.pixFormat.Height),
		Format:    format,
		Timestamp: time.Now(),
	}
	if w, hh, ok := FrameDimensions(data, format); ok {
		f.Width, f.Height = w, hh
	} else if format == catalog.FormatYUY2 && len(data) < YUY2FrameSize(f.Width, f.Height) {
		h.logger.Debug("Dropped short raw frame", "path", h.path, "bytes", len(data), "width", f.Width, "height", f.Height)
		return Frame{}, false
	}

	h.sequence++
	f.Sequence = h.sequence
	return f, true
}

func (h *v4l2Handle) startStream() error {
	pf, err := h.dev.GetPixFormat()
	if err != nil {
		return fmt.Errorf("read pixel format: %w", err)
	}
	s, err := startMMAP(h.dev)
	if err != nil {
		return err
	}
	h.pixFormat = pf
	h.stream = s
	return nil
}

func (h *v4l2Handle) stopStream() {
	if h.stream == nil {
		return
	}
	if err := h.stream.stop(); err != nil {
		h.logger.Debug("Failed to stop stream", "path", h.path, "error", err)
	}
	h.stream = nil
}

func (h *v4l2Handle) Close() error {
	if h.closed {
		return nil
	}
	h.stopStream()
	h.closed = true
	if err := h.dev.Close(); err != nil {
		return fmt.Errorf("close %s: %w", h.path, err)
	}
	h.logger.Debug("Closed capture device", "path", h.path)
	return nil
}
