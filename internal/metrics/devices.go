package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	devicesDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "detected",
		Help:      "Video capture devices currently present",
	})

	devicesHighRes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "high_res",
		Help:      "Detected devices advertising at least 1920x1080",
	})
)

// SetDevicesDetected records the current device counts.
func SetDevicesDetected(total, highRes int) {
	devicesDetected.Set(float64(total))
	devicesHighRes.Set(float64(highRes))
}
