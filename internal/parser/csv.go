package parser

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSVTable reads every record of a CSV document, header included.
// Records may have differing field counts.
func ParseCSVTable(reader io.Reader) ([][]string, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV table: %w", err)
	}

	return rows, nil
}
