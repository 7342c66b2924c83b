//go:build linux

package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
	"time"

	vl "github.com/vladimirvivien/go4vl/v4l2"
	"golang.org/x/sys/unix"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/pkg/linuxav/v4l2"
)

func TestControlID(t *testing.T) {
	tests := []struct {
		name   string
		id     PropertyID
		want   uint32
		wantOK bool
	}{
		{"brightness", PropBrightness, v4l2.CIDBrightness, true},
		{"exposure maps to absolute", PropExposure, v4l2.CIDExposureAbsolute, true},
		{"auto exposure menu", PropAutoExposure, v4l2.CIDExposureAuto, true},
		{"raw id passes through", PropertyID(v4l2.CIDAnalogueGain), v4l2.CIDAnalogueGain, true},
		{"width is not a control", PropFrameWidth, 0, false},
		{"fps is not a control", PropFPS, 0, false},
		{"unknown generic id", PropertyID(99), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ControlID(tt.id)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ControlID(%d) = 0x%08x, %v; want 0x%08x, %v", tt.id, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestV4L2OpenerMissingDevice(t *testing.T) {
	o := NewV4L2Opener()
	if _, err := o.Open(9999); err == nil {
		t.Fatal("expected error opening a nonexistent device node")
	}
}

// scriptedStream replays payloads and errors in order.
type scriptedStream struct {
	steps   []any
	stopped int
}

func (s *scriptedStream) next(time.Duration) ([]byte, error) {
	if len(s.steps) == 0 {
		return nil, errReadTimeout
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if err, ok := step.(error); ok {
		return nil, err
	}
	return step.([]byte), nil
}

func (s *scriptedStream) stop() error {
	s.stopped++
	return nil
}

func scriptedHandle(format vl.FourCCType, width, height uint32, steps ...any) (*v4l2Handle, *scriptedStream) {
	st := &scriptedStream{steps: steps}
	return &v4l2Handle{
		path:      "/dev/video0",
		timeout:   time.Second,
		logger:    logging.NewDiscardLogger(),
		stream:    st,
		pixFormat: vl.PixFormat{PixelFormat: format, Width: width, Height: height},
	}, st
}

func TestReadFrameRejectsErroredBuffers(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 32, 24)), nil); err != nil {
		t.Fatal(err)
	}
	h, st := scriptedHandle(vl.PixelFmtMJPEG, 1920, 1080, []byte{}, jpg.Bytes())

	if f, ok := h.ReadFrame(); ok {
		t.Fatalf("empty buffer reported as a frame: %dx%d", f.Width, f.Height)
	}
	f, ok := h.ReadFrame()
	if !ok {
		t.Fatal("valid frame rejected")
	}
	if f.Width != 32 || f.Height != 24 || f.Sequence != 1 {
		t.Errorf("frame = %dx%d seq %d, want 32x24 seq 1", f.Width, f.Height, f.Sequence)
	}
	if st.stopped != 0 {
		t.Error("an errored buffer should not tear the stream down")
	}
}

func TestReadFrameShortRawFrame(t *testing.T) {
	full := make([]byte, YUY2FrameSize(4, 2))
	h, _ := scriptedHandle(vl.PixelFmtYUYV, 4, 2, full[:10], full)

	if _, ok := h.ReadFrame(); ok {
		t.Error("truncated YUY2 frame accepted")
	}
	f, ok := h.ReadFrame()
	if !ok {
		t.Fatal("full YUY2 frame rejected")
	}
	if f.Format != catalog.FormatYUY2 || f.Width != 4 || f.Height != 2 {
		t.Errorf("frame = %s %dx%d", f.Format, f.Width, f.Height)
	}
}

func TestReadFrameStreamFailure(t *testing.T) {
	h, st := scriptedHandle(vl.PixelFmtMJPEG, 640, 480, errReadTimeout, unix.ENODEV)

	if _, ok := h.ReadFrame(); ok {
		t.Fatal("timeout reported as a frame")
	}
	if h.stream == nil {
		t.Fatal("stream dropped after a timeout")
	}

	if _, ok := h.ReadFrame(); ok {
		t.Fatal("dequeue error reported as a frame")
	}
	if st.stopped != 1 || h.stream != nil {
		t.Errorf("stopped = %d, stream = %v; a failed stream is released", st.stopped, h.stream)
	}
}
