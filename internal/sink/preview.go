package sink

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
)

// Preview fans JPEG frames out to any number of viewers. Each viewer holds
// at most one pending frame; a slow viewer skips frames instead of stalling
// the pump. Frames are only encoded while someone is watching.
type Preview struct {
	maxWidth int
	quality  int
	logger   logging.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
}

// PreviewOption configures a Preview.
type PreviewOption func(*Preview)

// WithPreviewWidth downscales frames wider than w.
func WithPreviewWidth(w int) PreviewOption {
	return func(p *Preview) { p.maxWidth = w }
}

// WithPreviewQuality sets the JPEG quality used when re-encoding.
func WithPreviewQuality(q int) PreviewOption {
	return func(p *Preview) { p.quality = q }
}

// NewPreview creates a broadcaster. The default downscales to 1280 wide.
func NewPreview(opts ...PreviewOption) *Preview {
	p := &Preview{
		maxWidth: 1280,
		quality:  75,
		logger:   logging.GetLogger("sink"),
		clients:  make(map[chan []byte]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a viewer. The channel is closed when the viewer
// unsubscribes or the preview is closed.
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	p.clients[ch] = struct{}{}
	p.logger.Debug("Preview viewer connected", "viewers", len(p.clients))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.clients[ch]; ok {
				delete(p.clients, ch)
				close(ch)
			}
		})
	}
}

// Viewers returns the number of connected viewers.
func (p *Preview) Viewers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// WriteFrame implements Sink.
func (p *Preview) WriteFrame(frame capture.Frame, _ Params) error {
	if p.Viewers() == 0 {
		return nil
	}

	data, err := p.encode(frame)
	if err != nil {
		recordWrite("preview", 0, err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.clients {
		select {
		case ch <- data:
		default:
			// Replace the stale frame.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
	recordWrite("preview", len(data)*len(p.clients), nil)
	return nil
}

// Close disconnects every viewer.
func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for ch := range p.clients {
		delete(p.clients, ch)
		close(ch)
	}
	return nil
}

func (p *Preview) encode(frame capture.Frame) ([]byte, error) {
	fits := p.maxWidth <= 0 || (frame.Width > 0 && frame.Width <= p.maxWidth)
	if frame.Format != catalog.FormatYUY2 && fits {
		return bytes.Clone(frame.Data), nil
	}

	img, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	if p.maxWidth > 0 && img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Box)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
