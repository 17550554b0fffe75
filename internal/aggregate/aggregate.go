// Package aggregate buckets observed timestamps by registry marker and
// reduces every bucket to a rounded millisecond average.
package aggregate

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/imishinist/markercheck/internal/models"
	"github.com/imishinist/markercheck/internal/registry"
	timeutils "github.com/imishinist/markercheck/internal/time"
)

var ErrUnknownMarker = errors.New("marker not found in registry")

type bucket struct {
	sum   big.Int
	count int64
}

// Aggregator is not safe for concurrent use. Scan sources into separate
// aggregators and Merge them instead.
type Aggregator struct {
	reg     *registry.Registry
	buckets map[string]*bucket
}

func New(reg *registry.Registry) *Aggregator {
	a := &Aggregator{
		reg:     reg,
		buckets: make(map[string]*bucket, reg.Len()),
	}
	for _, m := range reg.Markers() {
		a.buckets[m.Name] = &bucket{}
	}
	return a
}

// Add records obs in its marker's bucket. Observations for markers that are
// not in the registry return ErrUnknownMarker and are dropped.
func (a *Aggregator) Add(obs models.Observation) error {
	b, ok := a.buckets[obs.Marker]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMarker, obs.Marker)
	}
	b.sum.Add(&b.sum, new(big.Int).SetUint64(obs.Micros))
	b.count++
	return nil
}

// Merge folds other into a. Both must have been created from the same
// registry.
func (a *Aggregator) Merge(other *Aggregator) error {
	if other.reg != a.reg {
		return fmt.Errorf("cannot merge aggregators of different registries")
	}
	for name, ob := range other.buckets {
		b := a.buckets[name]
		b.sum.Add(&b.sum, &ob.sum)
		b.count += ob.count
	}
	return nil
}

// Averages reduces every bucket in registry order. Markers without
// observations get a nil Average.
func (a *Aggregator) Averages(rounding timeutils.Rounding) ([]models.MarkerAverage, error) {
	markers := a.reg.Markers()
	out := make([]models.MarkerAverage, 0, len(markers))

	for _, m := range markers {
		b := a.buckets[m.Name]
		avg := models.MarkerAverage{Marker: m, Count: b.count}
		if b.count > 0 {
			ms, err := timeutils.MeanMillis(&b.sum, b.count, rounding)
			if err != nil {
				return nil, fmt.Errorf("marker %q: %w", m.Name, err)
			}
			avg.Average = &ms
		}
		out = append(out, avg)
	}

	return out, nil
}
