//go:build !linux

package capture

import (
	"errors"
	"log/slog"
	"time"
)

// ErrUnsupportedPlatform is returned by V4L2Opener outside Linux.
var ErrUnsupportedPlatform = errors.New("V4L2 capture requires linux")

// V4L2Opener is unavailable on this platform.
type V4L2Opener struct {
	ReadTimeout time.Duration
	BufferSize  uint32
	Logger      *slog.Logger
}

// NewV4L2Opener creates an opener that always fails.
func NewV4L2Opener() *V4L2Opener {
	return &V4L2Opener{}
}

// Open always returns ErrUnsupportedPlatform.
func (o *V4L2Opener) Open(int) (Handle, error) {
	return nil, ErrUnsupportedPlatform
}

// ControlID reports no control mapping on this platform.
func ControlID(PropertyID) (uint32, bool) {
	return 0, false
}
