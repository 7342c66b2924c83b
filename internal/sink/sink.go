// Package sink consumes frames pulled from a device session: file
// recording, still snapshots and the MJPEG preview fan-out.
package sink

import (
	"errors"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/metrics"
)

// Params describe the stream a frame belongs to.
type Params struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	FPS    float64        `json:"fps"`
	Format catalog.Format `json:"format"`
}

// Sink receives frames from the pump.
type Sink interface {
	WriteFrame(frame capture.Frame, p Params) error
}

// Func adapts a function to Sink.
type Func func(frame capture.Frame, p Params) error

// WriteFrame calls f.
func (f Func) WriteFrame(frame capture.Frame, p Params) error {
	return f(frame, p)
}

// Multi writes every frame to all sinks. One failing sink does not stop the
// others; the errors are joined.
type Multi []Sink

// WriteFrame implements Sink.
func (m Multi) WriteFrame(frame capture.Frame, p Params) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFrame(frame, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Discard drops every frame.
var Discard Sink = Func(func(capture.Frame, Params) error { return nil })

func recordWrite(name string, n int, err error) {
	if err != nil {
		metrics.IncSinkErrors(name)
		return
	}
	metrics.AddSinkBytes(name, n)
}
