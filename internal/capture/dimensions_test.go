package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/smazurov/uvcctl/internal/catalog"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, width, height))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFrameDimensionsMJPEG(t *testing.T) {
	data := encodeJPEG(t, 64, 48)

	w, h, ok := FrameDimensions(data, catalog.FormatMJPEG)
	if !ok {
		t.Fatal("expected dimensions from JPEG payload")
	}
	if w != 64 || h != 48 {
		t.Errorf("got %dx%d, want 64x48", w, h)
	}
}

func TestFrameDimensionsUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format catalog.Format
	}{
		{"raw format", make([]byte, YUY2FrameSize(4, 2)), catalog.FormatYUY2},
		{"empty payload", nil, catalog.FormatMJPEG},
		{"garbage", []byte{1, 2, 3, 4}, catalog.FormatMJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := FrameDimensions(tt.data, tt.format); ok {
				t.Error("expected ok=false")
			}
		})
	}
}

func TestOpenerFunc(t *testing.T) {
	called := -1
	var o Opener = OpenerFunc(func(i int) (Handle, error) {
		called = i
		return nil, nil
	})
	if _, err := o.Open(3); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if called != 3 {
		t.Errorf("OpenerFunc called with %d, want 3", called)
	}
}
