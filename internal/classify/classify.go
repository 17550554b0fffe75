// Package classify turns averaged markers into Pass, Fail or No Data rows.
package classify

import (
	"math"

	"github.com/imishinist/markercheck/internal/models"
)

// DefaultTolerance is the allowed deviation in milliseconds between an
// average and its threshold.
const DefaultTolerance = 10.0

type Engine struct {
	Tolerance float64
}

func New(tolerance float64) *Engine {
	return &Engine{Tolerance: tolerance}
}

// Status is inclusive at the tolerance: |average - threshold| <= Tolerance
// passes.
func (e *Engine) Status(average *int64, threshold float64) models.Status {
	if average == nil {
		return models.StatusNoData
	}
	if math.Abs(float64(*average)-threshold) <= e.Tolerance {
		return models.StatusPass
	}
	return models.StatusFail
}

// Classify builds one row per average, keeping the input order.
func (e *Engine) Classify(averages []models.MarkerAverage) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(averages))
	for _, a := range averages {
		row := models.ResultRow{
			Marker:    a.Marker.Name,
			Threshold: a.Marker.Threshold,
			Status:    e.Status(a.Average, a.Marker.Threshold),
		}
		if a.Average != nil {
			v := *a.Average
			row.Average = &v
		}
		rows = append(rows, row)
	}
	return rows
}
