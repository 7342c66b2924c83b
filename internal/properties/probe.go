package properties

import (
	"fmt"
	"math"

	"github.com/smazurov/uvcctl/internal/capture"
)

// Changeable is the tri-state result of a probe.
type Changeable int

// Changeable states.
const (
	ChangeableUnknown Changeable = iota
	ChangeableYes
	ChangeableNo
)

func (c Changeable) String() string {
	switch c {
	case ChangeableYes:
		return "yes"
	case ChangeableNo:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its string form.
func (c Changeable) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses "yes", "no" or "unknown".
func (c *Changeable) UnmarshalText(b []byte) error {
	switch string(b) {
	case "yes":
		*c = ChangeableYes
	case "no":
		*c = ChangeableNo
	case "unknown", "":
		*c = ChangeableUnknown
	default:
		return fmt.Errorf("invalid changeable state %q", b)
	}
	return nil
}

// ProbeResult describes one changeable probe.
type ProbeResult struct {
	Name       string             `json:"name"`
	ID         capture.PropertyID `json:"id"`
	Before     float64            `json:"before"`
	Perturbed  float64            `json:"perturbed"`
	After      float64            `json:"after"`
	SetOK      bool               `json:"set_ok"`
	Changeable Changeable         `json:"changeable"`
	Restored   bool               `json:"restored"`
}

// Perturbation returns the test value written by a probe: 10 when the
// current value is near zero, otherwise the current value plus 5.
func Perturbation(current float64) float64 {
	if math.Abs(current) < 1 {
		return 10
	}
	return current + 5
}

// Probe checks whether the primary id of spec responds to writes. One frame
// is pulled between write and readback because some drivers only latch
// controls on the next frame. The original value is always written back.
func Probe(h capture.Handle, spec Spec, delta float64) ProbeResult {
	res := ProbeResult{Name: spec.Name, ID: spec.Primary}

	res.Before = h.Get(spec.Primary)
	res.Perturbed = Perturbation(res.Before)
	res.SetOK = h.Set(spec.Primary, res.Perturbed)
	h.ReadFrame()
	res.After = h.Get(spec.Primary)

	if math.Abs(res.After-res.Before) > delta {
		res.Changeable = ChangeableYes
	} else {
		res.Changeable = ChangeableNo
	}

	res.Restored = h.Set(spec.Primary, res.Before)
	return res
}

// Reading is a property value plus any non-zero values found under its
// fallback ids.
type Reading struct {
	Name     string                         `json:"name"`
	ID       capture.PropertyID             `json:"id"`
	Value    float64                        `json:"value"`
	Extended map[capture.PropertyID]float64 `json:"extended,omitempty"`
}

// Read reads spec's primary value and its non-zero fallback values.
func Read(h capture.Handle, spec Spec) Reading {
	r := Reading{Name: spec.Name, ID: spec.Primary, Value: h.Get(spec.Primary)}
	for _, id := range spec.Fallbacks {
		if v := h.Get(id); v != 0 {
			if r.Extended == nil {
				r.Extended = make(map[capture.PropertyID]float64)
			}
			r.Extended[id] = v
		}
	}
	return r
}
