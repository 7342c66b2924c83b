package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/logging"
)

// Sidecar is written next to each recording so a muxer can wrap the raw
// stream later.
type Sidecar struct {
	File     string    `json:"file"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	FPS      float64   `json:"fps"`
	Format   string    `json:"format"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Frames   uint64    `json:"frames"`
	Bytes    int64     `json:"bytes"`
}

// Recorder appends frames to <dir>/<unix-ts>.<ext>. MJPEG frames are
// concatenated JPEGs, YUY2 frames are raw planes. A change of stream
// parameters, typically after a restart fell back to another resolution,
// starts a new file.
type Recorder struct {
	dir    string
	now    func() time.Time
	logger logging.Logger

	mu      sync.Mutex
	file    *os.File
	params  Params
	sidecar Sidecar
	files   []string
}

// NewRecorder creates a recorder writing into dir. The directory must exist.
func NewRecorder(dir string) *Recorder {
	return &Recorder{
		dir:    dir,
		now:    time.Now,
		logger: logging.GetLogger("sink"),
	}
}

// WriteFrame implements Sink.
func (r *Recorder) WriteFrame(frame capture.Frame, p Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil && p != r.params {
		r.logger.Info("Stream parameters changed, rotating recording",
			"from", fmt.Sprintf("%dx%d %s", r.params.Width, r.params.Height, r.params.Format),
			"to", fmt.Sprintf("%dx%d %s", p.Width, p.Height, p.Format))
		if err := r.finish(); err != nil {
			return err
		}
	}
	if r.file == nil {
		if err := r.start(p); err != nil {
			recordWrite("recorder", 0, err)
			return err
		}
	}

	n, err := r.file.Write(frame.Data)
	r.sidecar.Bytes += int64(n)
	recordWrite("recorder", n, err)
	if err != nil {
		return fmt.Errorf("write %s: %w", r.sidecar.File, err)
	}
	r.sidecar.Frames++
	return nil
}

// Close finishes the current file and its sidecar.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.finish()
}

// Files returns every recording started so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func (r *Recorder) start(p Params) error {
	started := r.now()
	ext := "." + p.Format.Extension()
	path := filepath.Join(r.dir, strconv.FormatInt(started.Unix(), 10)+ext)
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(r.dir, fmt.Sprintf("%d-%d%s", started.Unix(), i, ext))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}

	r.file = f
	r.params = p
	r.sidecar = Sidecar{
		File:    filepath.Base(path),
		Width:   p.Width,
		Height:  p.Height,
		FPS:     p.FPS,
		Format:  string(p.Format),
		Started: started,
	}
	r.files = append(r.files, path)

	if err := r.writeSidecar(); err != nil {
		r.logger.Warn("Failed to write sidecar", "file", path, "error", err)
	}
	r.logger.Info("Recording started", "file", path, "width", p.Width, "height", p.Height, "fps", p.FPS, "format", p.Format)
	return nil
}

func (r *Recorder) finish() error {
	path := r.file.Name()
	err := r.file.Close()
	r.file = nil
	r.sidecar.Finished = r.now()
	if serr := r.writeSidecar(); serr != nil && err == nil {
		err = serr
	}
	r.logger.Info("Recording finished", "file", path, "frames", r.sidecar.Frames, "bytes", r.sidecar.Bytes)
	return err
}

func (r *Recorder) writeSidecar() error {
	data, err := json.MarshalIndent(r.sidecar, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, r.sidecar.File+".json"), data, 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
