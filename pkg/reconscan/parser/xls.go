package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
)

// ReadXLS reads every sheet of a legacy .xls workbook in storage order. Formula cells
// carry their cached result; password protected workbooks are rejected.
func ReadXLS(data []byte) (sheets []models.Sheet, err error) {
	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}

	// The BIFF reader panics on some truncated records.
	defer func() {
		if r := recover(); r != nil {
			sheets = nil
			err = fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	decoded, err := readBIFFCells(stream)
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp("", "reconscan-*.xls")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return nil, err
	}
	tmpFile.Close()

	book, err := xls.OpenFile(tmpFile.Name())
	if err != nil {
		return nil, err
	}

	for i := 0; i < book.GetNumberSheets(); i++ {
		sheet, err := book.GetSheet(i)
		if err != nil {
			return nil, err
		}
		if sheet == nil {
			continue
		}
		out := readXLSSheet(sheet)
		if i < len(decoded) {
			applyBIFFCells(&out, decoded[i])
		}
		sheets = append(sheets, out)
	}
	return sheets, nil
}

func readXLSSheet(sheet *xls.Sheet) models.Sheet {
	out := models.Sheet{Name: sheet.GetName()}
	for rowIdx, row := range sheet.GetRows() {
		cols := row.GetCols()
		cells := make([]models.Cell, len(cols))
		for colIdx, col := range cols {
			cells[colIdx] = models.Cell{
				Row:   rowIdx + 1,
				Col:   colIdx + 1,
				Value: xlsCellValue(col.GetType(), col),
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

type xlsCell interface {
	GetString() string
}

// xlsCellValue maps a record read by the xls reader to a cell value. Numeric records
// are left empty here and filled from readBIFFCells, which keeps RK signs and ignores
// embedded chart data.
func xlsCellValue(recordType string, c xlsCell) interface{} {
	switch {
	case strings.Contains(recordType, "Blank"),
		strings.Contains(recordType, "Rk"),
		strings.Contains(recordType, "Number"):
		return nil
	}
	s := c.GetString()
	if s == "" {
		return nil
	}
	return s
}
