// Package collectors polls system state into Prometheus gauges.
package collectors

import (
	"context"
	"time"

	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics"
)

// DeviceLister is the part of devices.Detector the collector needs.
type DeviceLister interface {
	FindDevices() ([]devices.DeviceInfo, error)
}

// DeviceCollector periodically counts capture devices.
type DeviceCollector struct {
	logger   logging.Logger
	lister   DeviceLister
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDeviceCollector creates a collector polling lister every 10 seconds.
func NewDeviceCollector(lister DeviceLister) *DeviceCollector {
	return &DeviceCollector{
		logger:   logging.GetLogger("devices"),
		lister:   lister,
		interval: 10 * time.Second,
	}
}

// Start begins collecting device metrics.
func (c *DeviceCollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run()
	return nil
}

// Stop stops the collector and waits for the loop to exit.
func (c *DeviceCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *DeviceCollector) run() {
	defer close(c.done)
	c.logger.Debug("Starting device metrics collection", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *DeviceCollector) collect() {
	found, err := c.lister.FindDevices()
	if err != nil {
		c.logger.Warn("Failed to enumerate devices", "error", err)
		return
	}

	highRes := 0
	for _, d := range found {
		if d.HighRes() {
			highRes++
		}
	}
	metrics.SetDevicesDetected(len(found), highRes)
}
