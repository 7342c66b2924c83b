// Package pump drives the pull loop between a device session and a frame
// sink, and triggers the restart protocol when the stream stalls.
package pump

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics"
	"github.com/smazurov/uvcctl/internal/session"
	"github.com/smazurov/uvcctl/internal/sink"
)

// Source is what the pump pulls from. control.Controller implements it.
type Source interface {
	ReadFrame() (capture.Frame, bool, error)
	Restart(ctx context.Context, opts session.RestartOptions) (session.Status, error)
	Status() session.Status
}

// Stats are the pump counters.
type Stats struct {
	Frames   uint64  `json:"frames"`
	Failed   uint64  `json:"failed"`
	Restarts int     `json:"restarts"`
	FPS      float64 `json:"fps"`
}

// Pump pulls frames until cancelled or the device cannot be recovered.
type Pump struct {
	src    Source
	logger logging.Logger
	now    func() time.Time

	failureThreshold int
	backoff          time.Duration
	statsEvery       int
	recording        bool
	hardRestart      bool
	onStats          func(Stats)

	mu    sync.Mutex
	stats Stats
}

// Option configures a Pump.
type Option func(*Pump)

// WithFailureThreshold sets how many consecutive failed pulls trigger a
// restart. Default 30.
func WithFailureThreshold(n int) Option {
	return func(p *Pump) { p.failureThreshold = n }
}

// WithBackoff sets the wait after a failed pull. Default 100ms.
func WithBackoff(d time.Duration) Option {
	return func(p *Pump) { p.backoff = d }
}

// WithStatsEvery sets the frame window for FPS measurement. Default 30.
func WithStatsEvery(n int) Option {
	return func(p *Pump) { p.statsEvery = n }
}

// WithRecording applies the recording stability gate when restarting.
func WithRecording(recording bool) Option {
	return func(p *Pump) { p.recording = recording }
}

// WithHardRestart uses the hard reset sequence when restarting.
func WithHardRestart(hard bool) Option {
	return func(p *Pump) { p.hardRestart = hard }
}

// WithStatsHandler is called after every stats window.
func WithStatsHandler(fn func(Stats)) Option {
	return func(p *Pump) { p.onStats = fn }
}

// WithLogger overrides the "pump" module logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pump) { p.logger = l }
}

// New creates a pump reading from src.
func New(src Source, opts ...Option) *Pump {
	p := &Pump{
		src:              src,
		logger:           logging.GetLogger("pump"),
		now:              time.Now,
		failureThreshold: 30,
		backoff:          100 * time.Millisecond,
		statsEvery:       30,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns a copy of the counters.
func (p *Pump) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run pulls frames into s until ctx is done, the session is closed under
// it, or a restart is exhausted. Cancellation is checked between pulls.
func (p *Pump) Run(ctx context.Context, s sink.Sink) error {
	failures := 0
	windowFrames := 0
	windowStart := p.now()
	metrics.SetConsecutiveFailures(0)

	p.logger.Info("Frame pump started", "failure_threshold", p.failureThreshold, "recording", p.recording)
	defer func() {
		p.logger.Info("Frame pump stopped", "frames", p.Stats().Frames)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, ok, err := p.src.ReadFrame()
		if err != nil {
			return err
		}

		if !ok {
			failures++
			p.update(func(st *Stats) { st.Failed++ })
			metrics.SetConsecutiveFailures(failures)

			if failures >= p.failureThreshold {
				p.logger.Warn("Stream stalled, restarting device", "consecutive_failures", failures)
				if err := p.restart(ctx); err != nil {
					return err
				}
				failures = 0
				windowFrames = 0
				windowStart = p.now()
				metrics.SetConsecutiveFailures(0)
				continue
			}
			if err := sleep(ctx, p.backoff); err != nil {
				return err
			}
			continue
		}

		if failures > 0 {
			failures = 0
			metrics.SetConsecutiveFailures(0)
		}

		params := p.params(frame)
		if err := s.WriteFrame(frame, params); err != nil {
			p.logger.Warn("Sink write failed", "error", err)
		}

		p.update(func(st *Stats) { st.Frames++ })
		windowFrames++
		if windowFrames >= p.statsEvery {
			p.report(windowFrames, p.now().Sub(windowStart), params)
			windowFrames = 0
			windowStart = p.now()
		}
	}
}

// Serve keeps the pump running for the life of ctx. Whenever a run ends
// because the session was closed or could not be recovered, Serve polls the
// source every poll and resumes once it reports open again.
func (p *Pump) Serve(ctx context.Context, s sink.Sink, poll time.Duration) error {
	if poll <= 0 {
		poll = time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.src.Status().State == session.StateOpen {
			err := p.Run(ctx, s)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Frame pump paused until the session reopens", "error", err)
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func (p *Pump) restart(ctx context.Context) error {
	_, err := p.src.Restart(ctx, session.RestartOptions{Recording: p.recording, Hard: p.hardRestart})
	if err != nil {
		if errors.Is(err, session.ErrRestartExhausted) {
			p.logger.Error("Device did not recover, stopping pump", "error", err)
		}
		return err
	}
	p.update(func(st *Stats) { st.Restarts++ })
	return nil
}

func (p *Pump) params(frame capture.Frame) sink.Params {
	st := p.src.Status()
	params := sink.Params{Format: catalog.Format(st.Format)}
	if st.Resolution != nil {
		params.Width = st.Resolution.Width
		params.Height = st.Resolution.Height
		params.FPS = st.Resolution.FPS
	}
	if frame.Width > 0 && frame.Height > 0 {
		params.Width, params.Height = frame.Width, frame.Height
	}
	if frame.Format != "" {
		params.Format = frame.Format
	}
	return params
}

func (p *Pump) report(frames int, elapsed time.Duration, params sink.Params) {
	fps := 0.0
	if elapsed > 0 {
		fps = float64(frames) / elapsed.Seconds()
	}
	p.update(func(st *Stats) { st.FPS = fps })
	metrics.SetCaptureFPS(fps)
	metrics.SetCaptureGeometry(params.Width, params.Height, string(params.Format))

	st := p.Stats()
	p.logger.Info("Capture stats", "frames", st.Frames, "failed", st.Failed, "fps", fps,
		"width", params.Width, "height", params.Height)
	if p.onStats != nil {
		p.onStats(st)
	}
}

func (p *Pump) update(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
