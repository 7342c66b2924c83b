package sink

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
)

// ErrShortFrame is returned when a raw frame holds fewer bytes than its
// geometry requires.
var ErrShortFrame = errors.New("frame shorter than its dimensions")

// DecodeFrame turns a pulled frame into an image.
func DecodeFrame(frame capture.Frame) (image.Image, error) {
	switch frame.Format {
	case catalog.FormatYUY2:
		return decodeYUY2(frame.Data, frame.Width, frame.Height)
	default:
		img, err := imaging.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return img, nil
	}
}

// decodeYUY2 maps packed Y0 U Y1 V macropixels onto a 4:2:2 YCbCr image
// without copying through RGB.
func decodeYUY2(data []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 || len(data) < capture.YUY2FrameSize(width, height) {
		return nil, ErrShortFrame
	}
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := data[y*width*2:]
		for x := 0; x < width/2; x++ {
			m := row[x*4:]
			img.Y[y*img.YStride+2*x] = m[0]
			img.Y[y*img.YStride+2*x+1] = m[2]
			img.Cb[y*img.CStride+x] = m[1]
			img.Cr[y*img.CStride+x] = m[3]
		}
	}
	return img, nil
}
