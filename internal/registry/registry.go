// Package registry holds the reference table of markers and their
// threshold timings. A Registry is built once and is read-only afterwards.
package registry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/imishinist/markercheck/internal/models"
)

var (
	ErrEmptyMarker     = errors.New("empty marker name")
	ErrDuplicateMarker = errors.New("duplicate marker")
	ErrBadThreshold    = errors.New("invalid threshold")
	ErrMissingColumn   = errors.New("missing required column")
)

type Registry struct {
	markers []models.Marker
}

// New builds a registry from markers in table order. Names are trimmed;
// empty or repeated names and non-finite thresholds are rejected.
func New(markers []models.Marker) (*Registry, error) {
	r := &Registry{markers: make([]models.Marker, 0, len(markers))}
	seen := make(map[string]bool, len(markers))

	for i, m := range markers {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("marker %d: %w", i+1, ErrEmptyMarker)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMarker, name)
		}
		if math.IsNaN(m.Threshold) || math.IsInf(m.Threshold, 0) {
			return nil, fmt.Errorf("marker %q: %w: %v", name, ErrBadThreshold, m.Threshold)
		}

		seen[name] = true
		r.markers = append(r.markers, models.Marker{Name: name, Threshold: m.Threshold})
	}

	return r, nil
}

// Markers returns a copy of the markers in registry order.
func (r *Registry) Markers() []models.Marker {
	out := make([]models.Marker, len(r.markers))
	copy(out, r.markers)
	return out
}

func (r *Registry) Len() int {
	return len(r.markers)
}
