package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/capture/capturetest"
	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) all() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func states(evts []events.Event) []string {
	var out []string
	for _, ev := range evts {
		if s, ok := ev.(events.SessionStateEvent); ok {
			out = append(out, s.To)
		}
	}
	return out
}

func newTestController(dev *capturetest.Device) (*Controller, *recordingBus) {
	bus := &recordingBus{}
	c := New(dev, session.Config{}, bus,
		session.WithDeviceIndex(0),
		session.WithSleeper(func(time.Duration) {}),
		session.WithLogger(slog.New(slog.DiscardHandler)),
	)
	c.logger = slog.New(slog.DiscardHandler)
	return c, bus
}

func TestControllerOpenPublishesStates(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, bus := newTestController(dev)

	st, err := c.Open(context.Background(), 11, false)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != session.StateOpen || st.ResolutionIndex == nil || *st.ResolutionIndex != 11 {
		t.Errorf("status = %+v", st)
	}

	got := states(bus.all())
	want := []string{"opening", "open"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("states = %v, want %v", got, want)
	}

	last := bus.all()[len(bus.all())-1].(events.SessionStateEvent)
	if last.DeviceIndex == nil || *last.DeviceIndex != 0 || last.ResolutionIndex == nil || *last.ResolutionIndex != 11 {
		t.Errorf("open event = %+v", last)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Status().State != session.StateClosed {
		t.Errorf("state after close = %s", c.Status().State)
	}
}

func TestControllerOpenFailureKeepsStatusClosed(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	dev.ReadOK = func(int) bool { return false }
	c, _ := newTestController(dev)

	st, err := c.Open(context.Background(), 11, false)
	if !errors.Is(err, session.ErrNoFrameAvailable) {
		t.Fatalf("err = %v", err)
	}
	if st.Resolution != nil || st.State != session.StateClosed {
		t.Errorf("status = %+v", st)
	}
}

func TestControllerSetProperty(t *testing.T) {
	dev := capturetest.NewDevice(map[capture.PropertyID]float64{capture.PropGain: 10})
	c, bus := newTestController(dev)
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SetProperty("gain", 50)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied || res.Value != 50 {
		t.Errorf("result = %+v", res)
	}

	var changed []events.PropertyChangedEvent
	for _, ev := range bus.all() {
		if pc, ok := ev.(events.PropertyChangedEvent); ok {
			changed = append(changed, pc)
		}
	}
	if len(changed) != 1 || !changed[0].Applied || changed[0].Name != "gain" || changed[0].Attempts != 1 {
		t.Errorf("events = %+v", changed)
	}
}

func TestControllerSetPropertyNotSettablePublishes(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, bus := newTestController(dev)
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	spec, _ := c.Registry().Lookup("gain")
	for _, id := range spec.IDs() {
		dev.Ignore[id] = true
	}

	res, err := c.SetProperty("gain", 50)
	if !errors.Is(err, session.ErrPropertyNotSettable) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Attempts) != len(spec.IDs()) {
		t.Errorf("attempts = %d, want %d", len(res.Attempts), len(spec.IDs()))
	}

	evts := bus.all()
	pc, ok := evts[len(evts)-1].(events.PropertyChangedEvent)
	if !ok || pc.Applied {
		t.Errorf("last event = %+v", evts[len(evts)-1])
	}
	if c.Status().State != session.StateOpen {
		t.Error("not settable must leave the device open")
	}
}

func TestControllerSetPropertyErrorsSkipEvents(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, bus := newTestController(dev)

	if _, err := c.SetProperty("gain", 1); !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("closed err = %v", err)
	}
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetProperty("warp", 1); !errors.Is(err, session.ErrUnknownProperty) {
		t.Errorf("unknown err = %v", err)
	}

	for _, ev := range bus.all() {
		if _, ok := ev.(events.PropertyChangedEvent); ok {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestControllerApplyPresets(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, _ := newTestController(dev)

	if _, err := c.ApplyPresets(map[string]float64{"gain": 1}); !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("closed err = %v", err)
	}
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	results, err := c.ApplyPresets(map[string]float64{
		"gain":       40,
		"Brightness": 10,
		"bogus":      1,
	})
	if !errors.Is(err, session.ErrUnknownProperty) {
		t.Errorf("err = %v, want unknown property", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Name != "brightness" || results[1].Name != "gain" {
		t.Errorf("order = %s, %s", results[0].Name, results[1].Name)
	}
	if dev.Value(capture.PropBrightness) != 10 || dev.Value(capture.PropGain) != 40 {
		t.Error("presets not written")
	}
}

func TestControllerProbeAndProperties(t *testing.T) {
	dev := capturetest.NewDevice(map[capture.PropertyID]float64{capture.PropGain: 20})
	dev.Ignore[capture.PropFocus] = true
	c, bus := newTestController(dev)
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Probe("gain"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Probe("focus"); err != nil {
		t.Fatal(err)
	}

	views, err := c.Properties()
	if err != nil {
		t.Fatal(err)
	}
	verdicts := make(map[string]properties.Changeable)
	for _, v := range views {
		verdicts[v.Name] = v.Changeable
	}
	if verdicts["gain"] != properties.ChangeableYes {
		t.Errorf("gain = %s", verdicts["gain"])
	}
	if verdicts["focus"] != properties.ChangeableNo {
		t.Errorf("focus = %s", verdicts["focus"])
	}
	if verdicts["hue"] != properties.ChangeableUnknown {
		t.Errorf("hue = %s", verdicts["hue"])
	}

	probed := 0
	for _, ev := range bus.all() {
		if _, ok := ev.(events.PropertyProbedEvent); ok {
			probed++
		}
	}
	if probed != 2 {
		t.Errorf("probe events = %d, want 2", probed)
	}

	all, err := c.ProbeAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(c.Registry().Specs())-1 {
		t.Errorf("ProbeAll = %d results", len(all))
	}
}

func TestControllerRestartExhausted(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, bus := newTestController(dev)
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	dev.OpenErr = func(int, int) error { return errors.New("usb reset") }
	st, err := c.Restart(context.Background(), session.RestartOptions{})
	if !errors.Is(err, session.ErrRestartExhausted) {
		t.Fatalf("err = %v", err)
	}
	if st.State != session.StateFailed {
		t.Errorf("state = %s", st.State)
	}

	var attempts []events.RestartAttemptEvent
	for _, ev := range bus.all() {
		if a, ok := ev.(events.RestartAttemptEvent); ok {
			attempts = append(attempts, a)
		}
	}
	if len(attempts) != 3 {
		t.Fatalf("attempt events = %d, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.Success || a.Error == "" || a.Attempt != i+1 || a.ResolutionIndex != 11 {
			t.Errorf("attempt %d = %+v", i, a)
		}
	}

	got := states(bus.all())
	if got[len(got)-1] != "failed" {
		t.Errorf("final state event = %s", got[len(got)-1])
	}
}

func TestControllerSerializesAccess(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	c, _ := newTestController(dev)
	if _, err := c.Open(context.Background(), 11, false); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				if i%2 == 0 {
					_, _ = c.SetProperty("brightness", float64(j))
				} else {
					_, _, _ = c.ReadFrame()
				}
				_ = c.Status()
			}
		}()
	}
	wg.Wait()

	if dev.Live() != 1 {
		t.Errorf("live handles = %d", dev.Live())
	}
}
