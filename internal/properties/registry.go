// Package properties maps human property names onto device identifiers and
// implements the layered write strategy used against drivers that accept
// writes without applying them.
package properties

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smazurov/uvcctl/internal/capture"
)

// Well-known property names with special handling.
const (
	NameExposure     = "exposure"
	NameAutoExposure = "auto_exposure"
	NameFPS          = "fps"
)

// Spec names a property and the identifiers that may control it. The primary
// id is tried first, then each fallback in order.
type Spec struct {
	Name      string               `json:"name"`
	Primary   capture.PropertyID   `json:"primary"`
	Fallbacks []capture.PropertyID `json:"fallbacks,omitempty"`
}

// IDs returns the primary followed by the fallbacks.
func (s Spec) IDs() []capture.PropertyID {
	ids := make([]capture.PropertyID, 0, 1+len(s.Fallbacks))
	ids = append(ids, s.Primary)
	return append(ids, s.Fallbacks...)
}

// Registry is an immutable set of property specs.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

// NewRegistry validates and indexes specs. Names are normalized to lower
// snake case and must be unique.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs:  make([]Spec, 0, len(specs)),
		byName: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		name := Normalize(s.Name)
		if name == "" {
			return nil, fmt.Errorf("property spec with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate property name %q", name)
		}
		s.Name = name
		s.Fallbacks = append([]capture.PropertyID(nil), s.Fallbacks...)
		r.byName[name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

// Normalize lowercases a property name and folds '-' and ' ' to '_'.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byName[Normalize(name)]
	if !ok {
		return Spec{}, false
	}
	return r.copySpec(i), true
}

// Specs returns all specs in registration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	for i := range r.specs {
		out[i] = r.copySpec(i)
	}
	return out
}

// Names returns all property names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// AutoExposureIDs returns the identifiers driven to manual mode before the
// exposure retry, or nil if the registry has no auto exposure entry.
func (r *Registry) AutoExposureIDs() []capture.PropertyID {
	s, ok := r.Lookup(NameAutoExposure)
	if !ok {
		return nil
	}
	return s.IDs()
}

func (r *Registry) copySpec(i int) Spec {
	s := r.specs[i]
	s.Fallbacks = append([]capture.PropertyID(nil), s.Fallbacks...)
	return s
}
