package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDetector struct {
	mu      sync.Mutex
	devices []DeviceInfo
	err     error
}

func (f *fakeDetector) set(devices ...DeviceInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

func (f *fakeDetector) FindDevices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), f.err
}

func (f *fakeDetector) GetDeviceFormats(string) ([]FormatInfo, error) {
	return nil, nil
}

func (f *fakeDetector) GetDeviceResolutions(string, uint32) ([]Resolution, error) {
	return nil, nil
}

type recordedEvent struct {
	action string
	device DeviceInfo
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastDeviceDiscovery(action string, device DeviceInfo, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{action, device})
}

func (b *fakeBroadcaster) snapshot() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

var (
	builtin = DeviceInfo{Index: 0, DevicePath: "/dev/video0", DeviceName: "FaceTime HD Camera", DeviceID: "builtin"}
	phone   = DeviceInfo{Index: 1, DevicePath: "/dev/video1", DeviceName: "Continuity Camera", DeviceID: "phone"}
	elp     = DeviceInfo{
		Index: 2, DevicePath: "/dev/video2", DeviceName: "ELP 8MP USB Camera", DeviceID: "usb-elp",
		VendorID: ELPVendorID, ProductID: ELPProductID, MaxWidth: 4656, MaxHeight: 3496,
	}
	elpOdd = DeviceInfo{
		Index: 4, DevicePath: "/dev/video4", DeviceName: "USB Camera", DeviceID: "usb-elp-2",
		VendorID: ELPVendorID, ProductID: ELPProductID,
	}
)

func TestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		devices  []DeviceInfo
		want     int
		wantOK   bool
	}{
		{"prefer index present", PreferIndex(2), []DeviceInfo{builtin, phone, elp}, 2, true},
		{"prefer index absent", PreferIndex(2), []DeviceInfo{builtin, phone}, -1, false},
		{"name is case insensitive", MatchName("elp"), []DeviceInfo{builtin, elp}, 2, true},
		{"name miss", MatchName("logitech"), []DeviceInfo{builtin, elp}, -1, false},
		{"usb ids", MatchUSB(ELPVendorID, ELPProductID), []DeviceInfo{builtin, elpOdd}, 4, true},
		{"first picks lowest", First(), []DeviceInfo{elp, phone}, 1, true},
		{"first empty", First(), nil, -1, false},
		{"chain falls through", Chain(MatchName("nope"), PreferIndex(1)), []DeviceInfo{builtin, phone}, 1, true},
		{"default prefers usb ids over index 2", DefaultStrategy(), []DeviceInfo{builtin, phone, {Index: 2}, elpOdd}, 4, true},
		{"default uses index 2", DefaultStrategy(), []DeviceInfo{builtin, phone, {Index: 2}}, 2, true},
		{"default falls back to first", DefaultStrategy(), []DeviceInfo{phone}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.strategy(tt.devices)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	all := []DeviceInfo{builtin, phone, elp, elpOdd}

	tests := []struct {
		spec    string
		want    int
		wantErr bool
	}{
		{"auto", 2, false},
		{"", 2, false},
		{"first", 0, false},
		{"index:4", 4, false},
		{"name:continuity", 1, false},
		{"usb:32e4:0298", 2, false},
		{"index:x", 0, true},
		{"index:-1", 0, true},
		{"name:", 0, true},
		{"usb:32e4", 0, true},
		{"usb:zz:0298", 0, true},
		{"random", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ParseStrategy(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrategy: %v", err)
			}
			if got, _ := s(all); got != tt.want {
				t.Errorf("picked %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	det := &fakeDetector{}
	det.set(builtin, elp)

	idx, err := NewResolver(det, nil).Resolve()
	if err != nil || idx != 2 {
		t.Fatalf("Resolve() = %d, %v; want 2", idx, err)
	}

	if _, err := NewResolver(det, MatchName("missing")).Resolve(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("unmatched error = %v, want ErrNoDevice", err)
	}

	det.set()
	if _, err := NewResolver(det, nil).Resolve(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("empty error = %v, want ErrNoDevice", err)
	}

	det.err = errors.New("permission denied")
	if _, err := NewResolver(det, nil).Resolve(); err == nil || errors.Is(err, ErrNoDevice) {
		t.Errorf("detector error = %v", err)
	}
}

func TestHighRes(t *testing.T) {
	if !elp.HighRes() {
		t.Error("4656x3496 should be high resolution")
	}
	if (DeviceInfo{MaxWidth: 1280, MaxHeight: 720}).HighRes() {
		t.Error("1280x720 should not be high resolution")
	}
	if !elp.IsELP() || builtin.IsELP() {
		t.Error("IsELP mismatch")
	}
}

func TestMonitorScanDiff(t *testing.T) {
	det := &fakeDetector{}
	bc := &fakeBroadcaster{}
	m := NewMonitor(det, bc)

	det.set(builtin, elp)
	m.Scan()

	changed := elp
	changed.MaxWidth = 3840
	det.set(changed, phone)
	m.Scan()
	m.Scan()

	got := bc.snapshot()
	counts := map[string]int{}
	for _, e := range got {
		counts[e.action+":"+e.device.DeviceID]++
	}

	want := map[string]int{
		"added:builtin":   1,
		"added:usb-elp":   1,
		"removed:builtin": 1,
		"changed:usb-elp": 1,
		"added:phone":     1,
	}
	if len(got) != 5 {
		t.Errorf("events = %+v", got)
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s: got %d events, want %d", k, counts[k], v)
		}
	}
	if len(m.Devices()) != 2 {
		t.Errorf("Devices() = %+v", m.Devices())
	}
}

func TestDiffOrder(t *testing.T) {
	changed := elp
	changed.MaxWidth = 3840
	prev := map[string]DeviceInfo{phone.key(): phone, elp.key(): elp, builtin.key(): builtin}
	next := map[string]DeviceInfo{elp.key(): changed, builtin.key(): builtin, elpOdd.key(): elpOdd}

	var got []string
	for _, c := range diff(prev, next) {
		got = append(got, c.action+":"+c.device.key())
	}
	want := []string{"removed:phone", "changed:usb-elp", "added:usb-elp-2"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("diff = %v, want %v", got, want)
	}
	if diff(next, next) != nil {
		t.Error("identical scans should produce no changes")
	}
}

func TestMonitorCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	det := &countingDetector{}
	m := NewMonitor(det, nil)
	m.Dir = dir
	m.Settle = 100 * time.Millisecond

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	for _, name := range []string{"video0", "video1", "video2", "video3"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(400 * time.Millisecond)
	// One scan at Start, one for the burst.
	if n := det.calls.Load(); n != 2 {
		t.Errorf("scans = %d, want 2", n)
	}
}

type countingDetector struct {
	fakeDetector
	calls atomic.Int32
}

func (c *countingDetector) FindDevices() ([]DeviceInfo, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestMonitorWatchesNodes(t *testing.T) {
	dir := t.TempDir()
	det := &fakeDetector{}
	bc := &fakeBroadcaster{}
	m := NewMonitor(det, bc)
	m.Dir = dir
	m.Settle = 0

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	det.set(elp)
	// Non-video nodes are ignored.
	if err := os.WriteFile(filepath.Join(dir, "ttyUSB0"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "video2"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := bc.snapshot(); len(events) > 0 {
			if events[0].action != ActionAdded || events[0].device.Index != 2 {
				t.Fatalf("event = %+v", events[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no hotplug event observed")
}

func TestMonitorStartMissingDir(t *testing.T) {
	m := NewMonitor(&fakeDetector{}, nil)
	m.Dir = filepath.Join(t.TempDir(), "missing")
	if err := m.Start(context.Background()); err == nil {
		m.Stop()
		t.Fatal("expected error for missing directory")
	}
}
