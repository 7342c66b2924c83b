package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionStates lists every state label exported by the state gauge.
var SessionStates = []string{"closed", "opening", "open", "restarting", "failed"}

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "state",
		Help:      "1 for the current session state, 0 otherwise",
	}, []string{"state"})

	sessionOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "opens_total",
		Help:      "Open calls by result code",
	}, []string{"result"})

	sessionOpenDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "open_duration_seconds",
		Help:      "Time to open and validate the device",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	restartAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "restart_attempts_total",
		Help:      "Reopen attempts made by the restart protocol",
	}, []string{"outcome"})

	restartsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "restarts_exhausted_total",
		Help:      "Restarts that ran out of attempts",
	})

	propertyWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "property",
		Name:      "writes_total",
		Help:      "Property writes by property and result",
	}, []string{"name", "result"})
)

// SetSessionState marks state as current.
func SetSessionState(state string) {
	for _, s := range SessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

// ObserveOpen records an Open call. result is "ok" or an error code.
func ObserveOpen(result string, d time.Duration) {
	sessionOpens.WithLabelValues(result).Inc()
	sessionOpenDuration.Observe(d.Seconds())
}

// RecordRestartAttempt counts one reopen attempt.
func RecordRestartAttempt(success, final bool) {
	outcome := "failed"
	if success {
		outcome = "success"
	}
	if final {
		outcome = "fallback_" + outcome
	}
	restartAttempts.WithLabelValues(outcome).Inc()
}

// IncRestartsExhausted counts a restart that gave up.
func IncRestartsExhausted() {
	restartsExhausted.Inc()
}

// RecordPropertyWrite counts a property write.
func RecordPropertyWrite(name string, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	propertyWrites.WithLabelValues(name, result).Inc()
}
