package collectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics"
)

type fakeLister struct {
	devices []devices.DeviceInfo
	err     error
}

func (f fakeLister) FindDevices() ([]devices.DeviceInfo, error) {
	return f.devices, f.err
}

func newTestCollector(l DeviceLister) *DeviceCollector {
	c := NewDeviceCollector(l)
	c.logger = logging.NewDiscardLogger()
	return c
}

func assertDeviceGauges(t *testing.T, total, highRes int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP uvcctl_devices_detected Video capture devices currently present
# TYPE uvcctl_devices_detected gauge
uvcctl_devices_detected %d
# HELP uvcctl_devices_high_res Detected devices advertising at least 1920x1080
# TYPE uvcctl_devices_high_res gauge
uvcctl_devices_high_res %d
`, total, highRes)
	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected),
		"uvcctl_devices_detected", "uvcctl_devices_high_res")
	if err != nil {
		t.Error(err)
	}
}

func TestDeviceCollectorCounts(t *testing.T) {
	c := newTestCollector(fakeLister{devices: []devices.DeviceInfo{
		{Index: 0, MaxWidth: 1280, MaxHeight: 720},
		{Index: 2, MaxWidth: 4656, MaxHeight: 3496},
	}})
	c.collect()

	assertDeviceGauges(t, 2, 1)
}

func TestDeviceCollectorKeepsLastValueOnError(t *testing.T) {
	metrics.SetDevicesDetected(3, 0)
	c := newTestCollector(fakeLister{err: errors.New("no sysfs")})
	c.collect()

	assertDeviceGauges(t, 3, 0)
}

func TestDeviceCollectorStartStop(t *testing.T) {
	c := newTestCollector(fakeLister{})
	c.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}

	// Stop without Start is a no-op.
	if err := newTestCollector(fakeLister{}).Stop(); err != nil {
		t.Fatal(err)
	}
}
