package pump

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/capture/capturetest"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/session"
	"github.com/smazurov/uvcctl/internal/sink"
)

// fakeSource replays a script of pull outcomes. Once the script runs out
// it cancels the run and reports the cancellation.
type fakeSource struct {
	script   []bool
	pos      int
	cancel   context.CancelFunc
	restarts int
	restart  func(n int) error
	readErr  error
}

func (f *fakeSource) ReadFrame() (capture.Frame, bool, error) {
	if f.readErr != nil {
		return capture.Frame{}, false, f.readErr
	}
	if f.pos >= len(f.script) {
		f.cancel()
		return capture.Frame{}, false, context.Canceled
	}
	ok := f.script[f.pos]
	f.pos++
	if !ok {
		return capture.Frame{}, false, nil
	}
	return capture.Frame{Data: []byte{byte(f.pos)}, Width: 1920, Height: 1080, Format: catalog.FormatMJPEG}, true, nil
}

func (f *fakeSource) Restart(context.Context, session.RestartOptions) (session.Status, error) {
	f.restarts++
	if f.restart != nil {
		return session.Status{}, f.restart(f.restarts)
	}
	return session.Status{State: session.StateOpen}, nil
}

func (f *fakeSource) Status() session.Status {
	return session.Status{
		State:      session.StateOpen,
		Resolution: &session.Resolution{Width: 1280, Height: 720, FPS: 30},
		Format:     "MJPEG",
	}
}

type collectSink struct {
	mu     sync.Mutex
	frames []capture.Frame
	params []sink.Params
}

func (c *collectSink) WriteFrame(frame capture.Frame, p sink.Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	c.params = append(c.params, p)
	return nil
}

func script(pattern ...any) []bool {
	var out []bool
	for i := 0; i < len(pattern); i += 2 {
		for range pattern[i+1].(int) {
			out = append(out, pattern[i].(bool))
		}
	}
	return out
}

func newTestPump(src Source, opts ...Option) *Pump {
	base := []Option{WithLogger(slog.New(slog.DiscardHandler)), WithBackoff(0)}
	return New(src, append(base, opts...)...)
}

func TestPumpDeliversFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{script: script(true, 5), cancel: cancel}
	out := &collectSink{}

	err := newTestPump(src).Run(ctx, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(out.frames) != 5 {
		t.Errorf("frames = %d, want 5", len(out.frames))
	}
	// Frame geometry wins over the session status, FPS comes from status.
	p := out.params[0]
	if p.Width != 1920 || p.Height != 1080 || p.FPS != 30 || p.Format != catalog.FormatMJPEG {
		t.Errorf("params = %+v", p)
	}
}

func TestPumpRestartsAfterThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{script: script(true, 2, false, 3, true, 1), cancel: cancel}
	out := &collectSink{}

	pm := newTestPump(src, WithFailureThreshold(3))
	_ = pm.Run(ctx, out)

	if src.restarts != 1 {
		t.Errorf("restarts = %d, want 1", src.restarts)
	}
	st := pm.Stats()
	if st.Frames != 3 || st.Failed != 3 || st.Restarts != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPumpFailuresResetOnFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{script: script(false, 2, true, 1, false, 2, true, 1), cancel: cancel}

	_ = newTestPump(src, WithFailureThreshold(3)).Run(ctx, &collectSink{})
	if src.restarts != 0 {
		t.Errorf("restarts = %d, want 0", src.restarts)
	}
}

func TestPumpStopsOnRestartExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{
		script:  script(false, 10),
		cancel:  cancel,
		restart: func(int) error { return session.ErrRestartExhausted },
	}

	err := newTestPump(src, WithFailureThreshold(2)).Run(ctx, &collectSink{})
	if !errors.Is(err, session.ErrRestartExhausted) {
		t.Fatalf("err = %v", err)
	}
	if src.pos != 2 {
		t.Errorf("pulls = %d, want 2", src.pos)
	}
}

func TestPumpStopsOnClosedSession(t *testing.T) {
	src := &fakeSource{readErr: session.ErrSessionClosed}
	err := newTestPump(src).Run(context.Background(), &collectSink{})
	if !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestPumpStatsWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{script: script(true, 6), cancel: cancel}

	var reports []Stats
	pm := newTestPump(src, WithStatsEvery(3), WithStatsHandler(func(s Stats) { reports = append(reports, s) }))
	clock := time.Unix(0, 0)
	pm.now = func() time.Time {
		clock = clock.Add(50 * time.Millisecond)
		return clock
	}

	_ = pm.Run(ctx, &collectSink{})
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[1].Frames != 6 || reports[1].FPS <= 0 {
		t.Errorf("report = %+v", reports[1])
	}
}

func TestPumpBackoffHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{script: script(false, 100), cancel: func() {}}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := New(src, WithLogger(slog.New(slog.DiscardHandler)), WithBackoff(time.Hour)).Run(ctx, &collectSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("backoff did not honour cancellation")
	}
}

func TestPumpWithControllerRecovers(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	// Pulls 0 (validation) and 1-2 succeed, 3-5 fail, then the device is back.
	dev.ReadOK = func(n int) bool { return n < 3 || n > 5 }

	ctrl := control.New(dev, session.Config{}, nil,
		session.WithDeviceIndex(0),
		session.WithSleeper(func(time.Duration) {}),
		session.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if _, err := ctrl.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := sink.Func(func(capture.Frame, sink.Params) error {
		if dev.Opens() > 1 {
			cancel()
		}
		return nil
	})

	pm := newTestPump(ctrl, WithFailureThreshold(3))
	if err := pm.Run(ctx, out); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if dev.Opens() != 2 {
		t.Errorf("opens = %d, want 2", dev.Opens())
	}
	if st := ctrl.Status(); st.State != session.StateOpen {
		t.Errorf("state = %s", st.State)
	}
}

func TestServeResumesAfterReopen(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	ctrl := control.New(dev, session.Config{}, nil,
		session.WithDeviceIndex(0),
		session.WithSleeper(func(time.Duration) {}),
		session.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer ctrl.Close()

	frames := make(chan struct{}, 1)
	out := sink.Func(func(capture.Frame, sink.Params) error {
		select {
		case frames <- struct{}{}:
		default:
		}
		return nil
	})
	waitFrame := func() {
		t.Helper()
		select {
		case <-frames:
		case <-time.After(2 * time.Second):
			t.Fatal("no frame delivered")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestPump(ctrl).Serve(ctx, out, 5*time.Millisecond) }()

	if _, err := ctrl.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}
	waitFrame()

	if err := ctrl.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Open(context.Background(), 13, false); err != nil {
		t.Fatal(err)
	}
	// Drain anything buffered from the first session.
	select {
	case <-frames:
	default:
	}
	waitFrame()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
