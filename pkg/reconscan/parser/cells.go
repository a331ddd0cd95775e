package parser

import (
	"bytes"
	"strconv"

	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads every sheet of an .xlsx workbook in storage order.
func ReadXLSX(data []byte) ([]models.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []models.Sheet
	for _, sheetName := range f.GetSheetList() {
		rows, err := ExtractCells(f, sheetName)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, models.Sheet{Name: sheetName, Rows: rows})
	}
	return sheets, nil
}

// ExtractCells extracts the cell grid of a sheet.
// Cached values are read for formula cells; formulas are not evaluated.
func ExtractCells(f *excelize.File, sheetName string) ([][]models.Cell, error) {
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	result := make([][]models.Cell, len(rows))
	for rowIdx, row := range rows {
		rowNum := rowIdx + 1 // 1-based row index
		cells := make([]models.Cell, len(row))

		for colIdx, cellValue := range row {
			cell := models.Cell{Row: rowNum, Col: colIdx + 1}
			if cellValue == "" {
				cells[colIdx] = cell
				continue
			}

			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowNum)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheetName, cellName)
			if err != nil {
				return nil, err
			}
			cell.Value = typedValue(cellType, cellValue)
			cells[colIdx] = cell
		}
		result[rowIdx] = cells
	}

	return result, nil
}

// typedValue converts a raw cell value according to its stored type.
// Cells without an explicit type attribute hold numbers.
func typedValue(cellType excelize.CellType, raw string) interface{} {
	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return parseValue(raw)
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true"
	default:
		return raw
	}
}

// parseValue attempts to parse a string value as a number.
// Returns int64 for integers, float64 for decimals, or the original string.
func parseValue(s string) interface{} {
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	// Return as string
	return s
}
