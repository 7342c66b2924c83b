package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics"
)

// EventPublisher publishes sink events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Snapshot describes a written still image.
type Snapshot struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SnapshotResult is delivered to callers of Request.
type SnapshotResult struct {
	Snapshot
	Err error
}

// Snapshotter writes JPEG stills, optionally downscaled.
type Snapshotter struct {
	dir       string
	maxWidth  int
	quality   int
	now       func() time.Time
	publisher EventPublisher
	logger    logging.Logger

	mu      sync.Mutex
	pending []chan SnapshotResult
}

// SnapshotOption configures a Snapshotter.
type SnapshotOption func(*Snapshotter)

// WithMaxWidth downscales stills wider than w, keeping the aspect ratio.
func WithMaxWidth(w int) SnapshotOption {
	return func(s *Snapshotter) { s.maxWidth = w }
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) SnapshotOption {
	return func(s *Snapshotter) { s.quality = q }
}

// WithPublisher publishes a SnapshotCapturedEvent for every still.
func WithPublisher(p EventPublisher) SnapshotOption {
	return func(s *Snapshotter) { s.publisher = p }
}

// NewSnapshotter creates a snapshotter writing into dir.
func NewSnapshotter(dir string, opts ...SnapshotOption) *Snapshotter {
	s := &Snapshotter{
		dir:     dir,
		quality: 90,
		now:     time.Now,
		logger:  logging.GetLogger("sink"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take decodes frame and writes it as <dir>/<unix-ts>.jpg.
func (s *Snapshotter) Take(frame capture.Frame) (Snapshot, error) {
	img, err := DecodeFrame(frame)
	if err != nil {
		metrics.IncSinkErrors("snapshot")
		return Snapshot{}, err
	}
	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	ts := s.now()
	path := filepath.Join(s.dir, strconv.FormatInt(ts.Unix(), 10)+".jpg")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%d-%d.jpg", ts.Unix(), i))
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(s.quality)); err != nil {
		metrics.IncSinkErrors("snapshot")
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	if fi, err := os.Stat(path); err == nil {
		metrics.AddSinkBytes("snapshot", int(fi.Size()))
	}

	b := img.Bounds()
	snap := Snapshot{Path: path, Width: b.Dx(), Height: b.Dy()}
	s.logger.Info("Snapshot written", "file", path, "width", snap.Width, "height", snap.Height)
	if s.publisher != nil {
		s.publisher.Publish(events.SnapshotCapturedEvent{
			Path:      snap.Path,
			Width:     snap.Width,
			Height:    snap.Height,
			Timestamp: ts.Format(time.RFC3339),
		})
	}
	return snap, nil
}

// Request arms the snapshotter: the next frame passed to WriteFrame is
// written and its result delivered on the returned channel.
func (s *Snapshotter) Request() <-chan SnapshotResult {
	ch := make(chan SnapshotResult, 1)
	s.mu.Lock()
	s.pending = append(s.pending, ch)
	s.mu.Unlock()
	return ch
}

// WriteFrame implements Sink. It does nothing unless a snapshot was requested.
func (s *Snapshotter) WriteFrame(frame capture.Frame, _ Params) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	snap, err := s.Take(frame)
	for _, ch := range pending {
		ch <- SnapshotResult{Snapshot: snap, Err: err}
	}
	return err
}
