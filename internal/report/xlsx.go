package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/imishinist/markercheck/internal/models"
)

const SheetName = "Sheet1"

// StatusFill is the fill color of a status cell; unknown statuses get none.
func StatusFill(s models.Status) string {
	switch s {
	case models.StatusPass:
		return "C6EFCE"
	case models.StatusFail:
		return "FFC7CE"
	case models.StatusNoData:
		return "FFFF00"
	}
	return ""
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// Workbook builds the report sheet: one header row, one row per result, a
// thin border on every table cell and the status cell filled by status.
// The caller closes the returned file.
func Workbook(rows []models.ResultRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillWorkbook(f, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fillWorkbook(f *excelize.File, rows []models.ResultRow) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}
	statusStyles := make(map[models.Status]int, 3)
	for _, status := range []models.Status{models.StatusPass, models.StatusFail, models.StatusNoData} {
		id, err := f.NewStyle(&excelize.Style{
			Border: thinBorder,
			Fill:   excelize.Fill{Type: "pattern", Color: []string{StatusFill(status)}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s style: %w", status, err)
		}
		statusStyles[status] = id
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		r := i + 2
		if err := f.SetCellValue(SheetName, cellName(1, r), row.Marker); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cellName(2, r), row.Threshold); err != nil {
			return err
		}
		if row.Average != nil {
			if err := f.SetCellValue(SheetName, cellName(3, r), *row.Average); err != nil {
				return err
			}
		}
		if err := f.SetCellValue(SheetName, cellName(4, r), string(row.Status)); err != nil {
			return err
		}

		if err := f.SetCellStyle(SheetName, cellName(1, r), cellName(3, r), cellStyle); err != nil {
			return err
		}
		style, ok := statusStyles[row.Status]
		if !ok {
			style = cellStyle
		}
		if err := f.SetCellStyle(SheetName, cellName(4, r), cellName(4, r), style); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 32); err != nil {
		return err
	}
	return f.SetColWidth(SheetName, "B", lastCol, 22)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func renderXLSX(w io.Writer, rows []models.ResultRow) error {
	f, err := Workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
