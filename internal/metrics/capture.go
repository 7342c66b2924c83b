// Package metrics provides Prometheus metrics for the capture session, the
// frame pump and the sinks.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uvcctl"

var (
	captureFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frame pulls by result",
	}, []string{"result"})

	captureFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "fps",
		Help:      "Effective frame rate measured by the frame pump",
	})

	captureConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "consecutive_failures",
		Help:      "Failed pulls since the last delivered frame",
	})

	sinkBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "bytes_written_total",
		Help:      "Bytes written by each frame sink",
	}, []string{"sink"})

	sinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "errors_total",
		Help:      "Frame sink write failures",
	}, []string{"sink"})

	// Local cache for SSE exporter access.
	stats   CaptureStats
	statsMu sync.RWMutex
)

// CaptureStats holds current capture values.
type CaptureStats struct {
	Frames uint64
	Failed uint64
	FPS    float64
	Width  int
	Height int
	Format string
}

// RecordFrame counts one frame pull.
func RecordFrame(ok bool) {
	statsMu.Lock()
	defer statsMu.Unlock()

	if ok {
		captureFrames.WithLabelValues("ok").Inc()
		stats.Frames++
		return
	}
	captureFrames.WithLabelValues("failed").Inc()
	stats.Failed++
}

// SetCaptureFPS sets the measured frame rate.
func SetCaptureFPS(fps float64) {
	captureFPS.Set(fps)
	statsMu.Lock()
	stats.FPS = fps
	statsMu.Unlock()
}

// SetConsecutiveFailures sets the current failure streak.
func SetConsecutiveFailures(n int) {
	captureConsecutiveFailures.Set(float64(n))
}

// SetCaptureGeometry records the size and format frames are delivered at.
func SetCaptureGeometry(width, height int, format string) {
	statsMu.Lock()
	defer statsMu.Unlock()
	stats.Width, stats.Height, stats.Format = width, height, format
}

// GetCaptureStats returns a copy of the current values.
func GetCaptureStats() CaptureStats {
	statsMu.RLock()
	defer statsMu.RUnlock()
	return stats
}

// ResetCaptureStats clears the cache. Prometheus counters are not reset.
func ResetCaptureStats() {
	statsMu.Lock()
	stats = CaptureStats{}
	statsMu.Unlock()
	captureFPS.Set(0)
	captureConsecutiveFailures.Set(0)
}

// AddSinkBytes counts bytes written by a sink.
func AddSinkBytes(sink string, n int) {
	sinkBytes.WithLabelValues(sink).Add(float64(n))
}

// IncSinkErrors counts a failed sink write.
func IncSinkErrors(sink string) {
	sinkErrors.WithLabelValues(sink).Inc()
}
