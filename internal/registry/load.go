package registry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/imishinist/markercheck/internal/models"
	"github.com/imishinist/markercheck/internal/parser"
)

// Load reads a registry file, choosing the decoder from the extension:
// .xlsx/.xlsm, .csv, .json, .yaml/.yml. For workbooks, sheet selects the
// worksheet; an empty sheet means the first one.
func Load(path, sheet string, log logrus.FieldLogger) (*Registry, error) {
	var (
		markers []models.Marker
		columns []string
		err     error
	)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx", ".xlsm":
		markers, columns, err = loadWorkbook(path, sheet)
	case ".csv":
		markers, columns, err = loadFile(path, func(r io.Reader) ([]models.Marker, []string, error) {
			rows, err := parser.ParseCSVTable(r)
			if err != nil {
				return nil, nil, err
			}
			return FromTable(rows)
		})
	case ".json":
		markers, columns, err = loadFile(path, documentLoader(parser.ParseJSONRegistry))
	case ".yaml", ".yml":
		markers, columns, err = loadFile(path, documentLoader(parser.ParseYAMLRegistry))
	default:
		return nil, fmt.Errorf("unsupported registry format: %s (supported: .xlsx, .xlsm, .csv, .json, .yaml, .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", path, err)
	}

	if log != nil && columns != nil {
		log.WithField("columns", columns).Debug("Registry columns")
	}

	reg, err := New(markers)
	if err != nil {
		return nil, fmt.Errorf("invalid registry %s: %w", path, err)
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"path":    path,
			"markers": reg.Len(),
		}).Info("Loaded marker registry")
	}

	return reg, nil
}

func loadWorkbook(path, sheet string) ([]models.Marker, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f, sheet)
}

func readWorkbook(f *excelize.File, sheet string) ([]models.Marker, []string, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return FromTable(rows)
}

func loadFile(path string, decode func(io.Reader) ([]models.Marker, []string, error)) ([]models.Marker, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return decode(file)
}

func documentLoader(parse func(io.Reader) ([]models.Marker, error)) func(io.Reader) ([]models.Marker, []string, error) {
	return func(r io.Reader) ([]models.Marker, []string, error) {
		markers, err := parse(r)
		return markers, nil, err
	}
}
