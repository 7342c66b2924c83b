package capture

import (
	"bytes"
	"image/jpeg"

	"github.com/smazurov/uvcctl/internal/catalog"
)

// FrameDimensions returns the real dimensions encoded in a frame payload.
// Only MJPEG carries its own size; for raw formats ok is false and the caller
// must fall back to the negotiated format.
func FrameDimensions(data []byte, format catalog.Format) (width, height int, ok bool) {
	if format != catalog.FormatMJPEG || len(data) == 0 {
		return 0, 0, false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// YUY2FrameSize returns the byte size of a packed YUY2 frame.
func YUY2FrameSize(width, height int) int {
	return width * height * 2
}
