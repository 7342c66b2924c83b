package exporters

import (
	"context"
	"math"
	"time"

	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/metrics"
)

// Publisher is the part of the event bus the stats publisher needs.
type Publisher interface {
	Publish(ev events.Event)
}

// StatsPublisher turns the capture counters into FrameStatsEvent on a fixed
// interval. A tick where no frame was pulled publishes nothing.
type StatsPublisher struct {
	bus      Publisher
	interval time.Duration
	last     metrics.CaptureStats
}

// NewStatsPublisher returns a publisher ticking every interval, one second
// when interval is not positive.
func NewStatsPublisher(bus Publisher, interval time.Duration) *StatsPublisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatsPublisher{bus: bus, interval: interval}
}

// Run publishes until ctx is done.
func (p *StatsPublisher) Run(ctx context.Context) {
	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.publish()
		}
	}
}

func (p *StatsPublisher) publish() {
	cur := metrics.GetCaptureStats()
	if cur.Frames == p.last.Frames && cur.Failed == p.last.Failed {
		return
	}
	p.last = cur
	p.bus.Publish(events.FrameStatsEvent{
		Frames:    cur.Frames,
		Failed:    cur.Failed,
		FPS:       math.Round(cur.FPS*100) / 100,
		Width:     cur.Width,
		Height:    cur.Height,
		Format:    cur.Format,
		Timestamp: events.Now(),
	})
}

// EventTypes lists the SSE event names this package publishes.
func EventTypes() map[string]any {
	return map[string]any{"frame-stats": events.FrameStatsEvent{}}
}
