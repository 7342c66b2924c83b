package devices

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/uvcctl/internal/logging"
)

// Hotplug actions.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionChanged = "changed"
)

// EventBroadcaster receives device hotplug notifications.
type EventBroadcaster interface {
	BroadcastDeviceDiscovery(action string, device DeviceInfo, timestamp string)
}

// Monitor rescans devices whenever a videoN node appears in or leaves Dir
// and broadcasts what changed since the previous scan.
type Monitor struct {
	detector    Detector
	broadcaster EventBroadcaster
	logger      *slog.Logger

	// Dir holds the device nodes.
	Dir string
	// Settle delays the rescan after the last node event so a USB camera
	// has finished enumerating. Bursts of events collapse into one scan.
	Settle time.Duration

	mu    sync.Mutex
	known map[string]DeviceInfo
	stop  context.CancelFunc
	done  chan struct{}
}

func NewMonitor(detector Detector, broadcaster EventBroadcaster) *Monitor {
	return &Monitor{
		detector:    detector,
		broadcaster: broadcaster,
		logger:      logging.GetLogger("devices"),
		Dir:         "/dev",
		Settle:      time.Second,
		known:       make(map[string]DeviceInfo),
	}
}

// Start scans once, announcing every present device as added, then watches
// Dir until ctx ends or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create device watcher: %w", err)
	}
	if err := w.Add(m.Dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", m.Dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.stop, m.done = cancel, done
	m.mu.Unlock()

	m.Scan()
	m.logger.Info("Watching for video devices", "dir", m.Dir)
	go func() {
		defer close(done)
		defer w.Close()
		m.watch(ctx, w)
	}()
	return nil
}

func (m *Monitor) watch(ctx context.Context, w *fsnotify.Watcher) {
	settle := time.NewTimer(0)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Device monitor stopped")
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !isVideoNode(ev.Name) || !ev.Has(fsnotify.Create|fsnotify.Remove) {
				continue
			}
			m.logger.Debug("Video node event", "path", ev.Name, "op", ev.Op.String())
			settle.Reset(m.Settle)
		case <-settle.C:
			m.Scan()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Error("Device watcher error", "error", err)
		}
	}
}

// Stop ends monitoring and waits for the watch loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// Devices returns the devices seen by the last scan ordered by node index.
func (m *Monitor) Devices() []DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Values(m.known), func(a, b DeviceInfo) int {
		return cmp.Compare(a.Index, b.Index)
	})
}

// Scan re-detects devices and broadcasts the differences from the last scan.
func (m *Monitor) Scan() {
	found, err := m.detector.FindDevices()
	if err != nil {
		m.logger.Error("Device scan failed", "error", err)
		return
	}
	next := make(map[string]DeviceInfo, len(found))
	for _, d := range found {
		next[d.key()] = d
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	for _, c := range diff(m.known, next) {
		m.logger.Info("Device "+c.action, "device", c.device.DevicePath, "name", c.device.DeviceName,
			"id", c.device.key(), "high_res", c.device.HighRes())
		if m.broadcaster != nil {
			m.broadcaster.BroadcastDeviceDiscovery(c.action, c.device, now)
		}
	}
	m.known = next
}

type change struct {
	action string
	device DeviceInfo
}

// diff lists removals first, then additions and changes, each in key order.
func diff(prev, next map[string]DeviceInfo) []change {
	var out []change
	for _, key := range slices.Sorted(maps.Keys(prev)) {
		if _, ok := next[key]; !ok {
			out = append(out, change{ActionRemoved, prev[key]})
		}
	}
	for _, key := range slices.Sorted(maps.Keys(next)) {
		old, ok := prev[key]
		switch {
		case !ok:
			out = append(out, change{ActionAdded, next[key]})
		case old != next[key]:
			out = append(out, change{ActionChanged, next[key]})
		}
	}
	return out
}

func isVideoNode(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "video")
}
