package properties

import (
	"math"

	"github.com/smazurov/uvcctl/internal/capture"
)

// Thresholds control when a write counts as applied.
type Thresholds struct {
	// Epsilon is the tolerance for the primary id: the readback must land
	// within Epsilon of the requested value.
	Epsilon float64 `json:"epsilon" toml:"epsilon"`
	// Delta is the minimum movement a fallback write must cause.
	Delta float64 `json:"delta" toml:"delta"`
}

// DefaultThresholds returns ε=0.1 and δ=0.01.
func DefaultThresholds() Thresholds {
	return Thresholds{Epsilon: 0.1, Delta: 0.01}
}

// DefaultManualExposure is the V4L2 exposure_auto menu value for manual mode.
const DefaultManualExposure = 1

// Stage identifies which step of the write strategy an attempt belongs to.
type Stage string

// Write strategy stages, in execution order.
const (
	StagePrimary       Stage = "primary"
	StageFallback      Stage = "fallback"
	StageAutoExposure  Stage = "auto_exposure"
	StageExposureRetry Stage = "exposure_retry"
)

// Attempt records one write against one identifier.
type Attempt struct {
	Stage    Stage              `json:"stage"`
	ID       capture.PropertyID `json:"id"`
	Before   float64            `json:"before"`
	After    float64            `json:"after"`
	SetOK    bool               `json:"set_ok"`
	Accepted bool               `json:"accepted"`
}

// Result is the outcome of a property write with its full attempt trail.
type Result struct {
	Name      string             `json:"name"`
	Requested float64            `json:"requested"`
	Applied   bool               `json:"applied"`
	AppliedID capture.PropertyID `json:"applied_id,omitempty"`
	Value     float64            `json:"value"`
	Attempts  []Attempt          `json:"attempts"`
}

// Writer applies property values through the fallback chain.
type Writer struct {
	Thresholds Thresholds
	// AutoExposureIDs are driven to ManualExposure before the exposure retry.
	AutoExposureIDs []capture.PropertyID
	ManualExposure  float64
}

// Apply writes value to the property described by spec. The primary id is
// accepted only if the readback matches the request; a fallback id is
// accepted if the write moved its value at all, since fallbacks often use a
// different scale. Failing that, exposure gets one more try after auto
// exposure is switched off.
func (w Writer) Apply(h capture.Handle, spec Spec, value float64) Result {
	res := Result{Name: spec.Name, Requested: value}

	initial := h.Get(spec.Primary)
	ok := h.Set(spec.Primary, value)
	after := h.Get(spec.Primary)
	accepted := ok && math.Abs(after-value) < w.Thresholds.Epsilon
	res.record(Attempt{Stage: StagePrimary, ID: spec.Primary, Before: initial, After: after, SetOK: ok, Accepted: accepted})
	if accepted {
		return res
	}

	for _, id := range spec.Fallbacks {
		pre := h.Get(id)
		ok := h.Set(id, value)
		post := h.Get(id)
		accepted := ok && math.Abs(post-pre) > w.Thresholds.Delta
		res.record(Attempt{Stage: StageFallback, ID: id, Before: pre, After: post, SetOK: ok, Accepted: accepted})
		if accepted {
			return res
		}
	}

	if spec.Name != NameExposure || len(w.AutoExposureIDs) == 0 {
		return res
	}

	for _, id := range w.AutoExposureIDs {
		pre := h.Get(id)
		ok := h.Set(id, w.ManualExposure)
		post := h.Get(id)
		res.Attempts = append(res.Attempts, Attempt{Stage: StageAutoExposure, ID: id, Before: pre, After: post, SetOK: ok, Accepted: ok})
	}

	ok = h.Set(spec.Primary, value)
	after = h.Get(spec.Primary)
	moved := math.Abs(after-initial) > w.Thresholds.Delta
	matches := math.Abs(after-value) < w.Thresholds.Epsilon
	res.record(Attempt{Stage: StageExposureRetry, ID: spec.Primary, Before: initial, After: after, SetOK: ok, Accepted: ok && (moved || matches)})

	return res
}

func (r *Result) record(a Attempt) {
	r.Attempts = append(r.Attempts, a)
	r.Value = a.After
	if a.Accepted {
		r.Applied = true
		r.AppliedID = a.ID
	}
}
