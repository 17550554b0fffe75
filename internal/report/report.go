// Package report renders classified rows for people: a styled workbook,
// or json, yaml, csv and plain-text tables.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/markercheck/internal/models"
)

type Format string

const (
	FormatXLSX  Format = "xlsx"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

var validFormats = map[string]Format{
	"xlsx":  FormatXLSX,
	"json":  FormatJSON,
	"yaml":  FormatYAML,
	"csv":   FormatCSV,
	"table": FormatTable,
}

// Columns are the report headings, in order.
var Columns = []string{"Marker", "Threshold", "Average Timestamp(ms)", "Status"}

func ParseFormat(s string) (Format, error) {
	f, ok := validFormats[strings.ToLower(s)]
	if !ok {
		return "", fmt.Errorf("unsupported report format: %s (valid: xlsx, json, yaml, csv, table)", s)
	}
	return f, nil
}

// FormatFromPath guesses the format from the file extension, falling back
// to xlsx.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	case ".txt":
		return FormatTable
	default:
		return FormatXLSX
	}
}

func Render(w io.Writer, format Format, rows []models.ResultRow) error {
	switch format {
	case FormatXLSX:
		return renderXLSX(w, rows)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(rows); err != nil {
			return err
		}
		return encoder.Close()
	case FormatCSV:
		return renderCSV(w, rows)
	case FormatTable:
		return renderTable(w, rows)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteFile renders rows to path, creating its directory if needed.
func WriteFile(path string, format Format, rows []models.ResultRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := Render(file, format, rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to render %s report: %w", format, err)
	}

	return file.Close()
}

func record(row models.ResultRow) []string {
	return []string{row.Marker, FormatThreshold(row.Threshold), FormatAverage(row.Average), string(row.Status)}
}

func FormatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatAverage renders an absent average as an empty string.
func FormatAverage(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func renderCSV(w io.Writer, rows []models.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderTable(w io.Writer, rows []models.ResultRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Columns, "\t"))
	for _, row := range rows {
		rec := record(row)
		if row.Average == nil {
			rec[2] = "-"
		}
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}
