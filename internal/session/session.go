// Package session implements the device session state machine: resolution
// negotiation, property writes through the fallback chain, and the bounded
// restart protocol.
//
// A Session is not safe for concurrent use. Callers that share one across
// goroutines must serialize access (see internal/control).
package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/properties"
)

// OpenOptions modify Open.
type OpenOptions struct {
	// Recording requires StabilityFrames further frames after the
	// validation frame.
	Recording bool
}

// Session drives one capture device.
type Session struct {
	id       string
	cfg      Config
	opener   capture.Opener
	resolver DeviceResolver
	sleep    Sleeper
	logger   logging.Logger
	hooks    Hooks

	state       State
	deviceIndex int
	resolved    bool
	handle      capture.Handle

	current       *Resolution
	format        catalog.Format
	currentIndex  int
	lastRequested *int
	recording     bool

	changeable map[string]properties.Changeable
}

// New creates a closed session. No device is touched until Open.
func New(opener capture.Opener, cfg Config, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		cfg:          cfg.withDefaults(),
		opener:       opener,
		sleep:        time.Sleep,
		state:        StateClosed,
		deviceIndex:  -1,
		currentIndex: -1,
		changeable:   make(map[string]properties.Changeable),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.GetLogger("session")
	}
	return s
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// IsOpen reports whether a validated handle is held.
func (s *Session) IsOpen() bool {
	return s.handle != nil && s.state == StateOpen
}

// Catalog returns the session's resolution catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.cfg.Catalog
}

// Registry returns the session's property registry.
func (s *Session) Registry() *properties.Registry {
	return s.cfg.Registry
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	st := Status{
		ID:        s.id,
		State:     s.state,
		Recording: s.recording,
	}
	if s.resolved {
		idx := s.deviceIndex
		st.DeviceIndex = &idx
	}
	if s.lastRequested != nil {
		idx := *s.lastRequested
		st.LastRequestedIndex = &idx
	}
	if s.current != nil {
		res := *s.current
		st.Resolution = &res
		st.Format = string(s.format)
		idx := s.currentIndex
		st.ResolutionIndex = &idx
	}
	return st
}

// Open negotiates the resolution at index. On success the session holds a
// handle that produced at least one frame; on failure it holds none.
func (s *Session) Open(ctx context.Context, index int, opts OpenOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.open(index, opts.Recording)
}

func (s *Session) open(index int, recording bool) error {
	entry, ok := s.cfg.Catalog.Get(index)
	if !ok {
		return newError(CodeInvalidIndex, "validate", index,
			fmt.Sprintf("resolution index must be in [0, %d)", s.cfg.Catalog.Len()), nil)
	}

	requested := index
	s.lastRequested = &requested

	if recording && index != s.cfg.Catalog.DefaultIndex() {
		s.logger.Warn("Recording at a non-default resolution may be unstable",
			"session_id", s.id, "resolution_index", index, "default_index", s.cfg.Catalog.DefaultIndex())
	}

	device, err := s.resolveDevice()
	if err != nil {
		s.release()
		s.setState(StateClosed, err)
		return newError(CodeDeviceUnavailable, "resolve", index, "no capture device found", err)
	}

	s.setState(StateOpening, nil)
	s.release()

	log := []any{"session_id", s.id, "device_index", device, "resolution_index", index}
	s.logger.Info("Opening device", append(log, "requested", entry.String())...)

	h, err := s.opener.Open(device)
	if err != nil {
		s.setState(StateClosed, err)
		return newError(CodeDeviceUnavailable, "acquire", index, fmt.Sprintf("cannot open device %d", device), err)
	}
	s.handle = h

	applied := []struct {
		id    capture.PropertyID
		value float64
	}{
		{capture.PropFourCC, float64(entry.Format.FourCC())},
		{capture.PropFPS, float64(entry.FPS)},
		{capture.PropFrameWidth, float64(entry.Width)},
		{capture.PropFrameHeight, float64(entry.Height)},
	}
	for _, a := range applied {
		if !h.Set(a.id, a.value) {
			s.logger.Debug("Driver rejected format setting", append(log, "id", a.id, "value", a.value)...)
		}
	}

	width := int(math.Round(h.Get(capture.PropFrameWidth)))
	height := int(math.Round(h.Get(capture.PropFrameHeight)))
	fps := h.Get(capture.PropFPS)

	frame, ok := s.pull()
	if !ok {
		s.release()
		s.setState(StateClosed, ErrNoFrameAvailable)
		return newError(CodeNoFrameAvailable, "validate", index, "device opened but produced no frame", nil)
	}

	if frame.Width > 0 && frame.Height > 0 {
		if frame.Width != width || frame.Height != height {
			s.logger.Warn("Driver misreports resolution, trusting frame",
				append(log, "reported", fmt.Sprintf("%dx%d", width, height), "actual", fmt.Sprintf("%dx%d", frame.Width, frame.Height))...)
		}
		width, height = frame.Width, frame.Height
	}

	if recording {
		for i := 0; i < s.cfg.StabilityFrames; i++ {
			if _, ok := s.pull(); !ok {
				s.release()
				s.setState(StateClosed, ErrUnstableStream)
				return newError(CodeUnstableStream, "stabilize", index,
					fmt.Sprintf("stream dropped after %d of %d stability frames", i, s.cfg.StabilityFrames), nil)
			}
		}
	}

	format := entry.Format
	if f, ok := catalog.FormatFromFourCC(uint32(h.Get(capture.PropFourCC))); ok {
		format = f
	}
	if fps <= 0 {
		fps = float64(entry.FPS)
	}

	s.current = &Resolution{Width: width, Height: height, FPS: fps}
	s.format = format
	s.currentIndex = index
	s.recording = recording
	clear(s.changeable)
	s.setState(StateOpen, nil)

	if width != entry.Width || height != entry.Height {
		s.logger.Warn("Device delivers a different resolution than requested",
			append(log, "requested", fmt.Sprintf("%dx%d", entry.Width, entry.Height), "actual", fmt.Sprintf("%dx%d", width, height))...)
	}
	s.logger.Info("Device open",
		append(log, "width", width, "height", height, "fps", fps, "format", format, "recording", recording)...)
	return nil
}

// Close releases the handle. It is idempotent and safe from any state.
func (s *Session) Close() error {
	err := s.release()
	if s.state != StateClosed {
		s.setState(StateClosed, nil)
	}
	return err
}

// ReadFrame pulls one frame. A failed pull is reported as ok=false, not as
// an error; only a closed session is an error.
func (s *Session) ReadFrame() (capture.Frame, bool, error) {
	if s.handle == nil {
		return capture.Frame{}, false, ErrSessionClosed
	}
	frame, ok := s.pull()
	return frame, ok, nil
}

// SetProperty writes value to the named property through the fallback
// chain. The returned result carries the attempt trail even on failure.
func (s *Session) SetProperty(name string, value float64) (properties.Result, error) {
	if s.handle == nil {
		return properties.Result{}, ErrSessionClosed
	}
	spec, ok := s.cfg.Registry.Lookup(name)
	if !ok {
		return properties.Result{}, propertyError(CodeUnknownProperty, name, "not in registry")
	}

	res := s.writer().Apply(s.handle, spec, value)
	if !res.Applied {
		s.logger.Warn("Property not settable",
			"session_id", s.id, "property", spec.Name, "requested", value, "value", res.Value, "attempts", len(res.Attempts))
		return res, propertyError(CodePropertyNotSettable, spec.Name,
			fmt.Sprintf("no identifier accepted %g", value))
	}

	s.logger.Info("Property set",
		"session_id", s.id, "property", spec.Name, "requested", value, "value", res.Value, "id", res.AppliedID)
	return res, nil
}

// ProbeChangeable tests whether the named property responds to writes and
// records the verdict for the lifetime of the session.
func (s *Session) ProbeChangeable(name string) (properties.ProbeResult, error) {
	if s.handle == nil {
		return properties.ProbeResult{}, ErrSessionClosed
	}
	spec, ok := s.cfg.Registry.Lookup(name)
	if !ok {
		return properties.ProbeResult{}, propertyError(CodeUnknownProperty, name, "not in registry")
	}

	res := properties.Probe(s.handle, spec, s.cfg.Thresholds.Delta)
	s.changeable[spec.Name] = res.Changeable
	s.logger.Debug("Probed property",
		"session_id", s.id, "property", spec.Name, "changeable", res.Changeable, "before", res.Before, "after", res.After)
	return res, nil
}

// ProbeAll probes every registered property except frame rate, which would
// disturb the stream.
func (s *Session) ProbeAll() ([]properties.ProbeResult, error) {
	if s.handle == nil {
		return nil, ErrSessionClosed
	}
	var results []properties.ProbeResult
	for _, spec := range s.cfg.Registry.Specs() {
		if spec.Name == properties.NameFPS {
			continue
		}
		res, err := s.ProbeChangeable(spec.Name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Changeable returns the recorded probe verdict for name.
func (s *Session) Changeable(name string) properties.Changeable {
	return s.changeable[properties.Normalize(name)]
}

// Snapshot reads every registered property.
func (s *Session) Snapshot() ([]properties.Reading, error) {
	if s.handle == nil {
		return nil, ErrSessionClosed
	}
	specs := s.cfg.Registry.Specs()
	readings := make([]properties.Reading, 0, len(specs))
	for _, spec := range specs {
		readings = append(readings, properties.Read(s.handle, spec))
	}
	return readings, nil
}

func (s *Session) writer() properties.Writer {
	return properties.Writer{
		Thresholds:      s.cfg.Thresholds,
		AutoExposureIDs: s.cfg.Registry.AutoExposureIDs(),
		ManualExposure:  s.cfg.ManualExposure,
	}
}

func (s *Session) pull() (capture.Frame, bool) {
	frame, ok := s.handle.ReadFrame()
	if s.hooks.OnFrame != nil {
		s.hooks.OnFrame(ok)
	}
	return frame, ok
}

// resolveDevice returns the pinned or previously resolved device index,
// consulting the resolver only once per session.
func (s *Session) resolveDevice() (int, error) {
	if s.resolved {
		return s.deviceIndex, nil
	}
	if s.resolver == nil {
		s.deviceIndex, s.resolved = 0, true
		return 0, nil
	}
	idx, err := s.resolver.Resolve()
	if err != nil {
		return -1, err
	}
	s.deviceIndex, s.resolved = idx, true
	s.logger.Info("Resolved capture device", "session_id", s.id, "device_index", idx)
	return idx, nil
}

// release drops the handle and clears negotiated state.
func (s *Session) release() error {
	s.current = nil
	s.format = ""
	s.currentIndex = -1
	s.recording = false
	if s.handle == nil {
		return nil
	}
	h := s.handle
	s.handle = nil
	if err := h.Close(); err != nil {
		s.logger.Warn("Failed to close handle", "session_id", s.id, "error", err)
		return err
	}
	return nil
}

func (s *Session) setState(to State, err error) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.logger.Debug("State change", "session_id", s.id, "from", from, "to", to)
	if s.hooks.OnStateChange != nil {
		st := s.Status()
		s.hooks.OnStateChange(StateChange{
			SessionID:       s.id,
			From:            from,
			To:              to,
			DeviceIndex:     st.DeviceIndex,
			ResolutionIndex: st.ResolutionIndex,
			Err:             err,
		})
	}
}
