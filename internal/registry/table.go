package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imishinist/markercheck/internal/models"
)

const (
	MarkerColumn    = "Marker"
	ThresholdColumn = "Threshold"
)

// FromTable converts a header row plus data rows into markers. Column names
// are trimmed before matching; other columns are ignored. Rows with no
// non-blank cells are skipped.
func FromTable(rows [][]string) ([]models.Marker, []string, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: table is empty", ErrMissingColumn)
	}

	columns := make([]string, len(rows[0]))
	markerCol, thresholdCol := -1, -1
	for i, name := range rows[0] {
		columns[i] = strings.TrimSpace(name)
		switch columns[i] {
		case MarkerColumn:
			markerCol = i
		case ThresholdColumn:
			thresholdCol = i
		}
	}
	if markerCol < 0 {
		return nil, columns, fmt.Errorf("%w: %s (found %v)", ErrMissingColumn, MarkerColumn, columns)
	}
	if thresholdCol < 0 {
		return nil, columns, fmt.Errorf("%w: %s (found %v)", ErrMissingColumn, ThresholdColumn, columns)
	}

	var markers []models.Marker
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rowNum := i + 2

		raw := strings.TrimSpace(cell(row, thresholdCol))
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, columns, fmt.Errorf("row %d: %w %q", rowNum, ErrBadThreshold, raw)
		}

		name := cell(row, markerCol)
		if strings.TrimSpace(name) == "" {
			return nil, columns, fmt.Errorf("row %d: %w", rowNum, ErrEmptyMarker)
		}

		markers = append(markers, models.Marker{Name: name, Threshold: threshold})
	}

	return markers, columns, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
