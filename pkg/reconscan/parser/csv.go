package parser

import (
	"bytes"
	"encoding/csv"
	"unicode/utf8"

	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads comma-separated content as a single sheet named name.
// Content that is not valid UTF-8 is decoded as Latin-1.
func ReadCSV(data []byte, name string) (models.Sheet, error) {
	text, err := DecodeText(data)
	if err != nil {
		return models.Sheet{}, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return models.Sheet{}, err
	}

	sheet := models.Sheet{Name: name, Rows: make([][]models.Cell, len(records))}
	for rowIdx, record := range records {
		cells := make([]models.Cell, len(record))
		for colIdx, field := range record {
			cell := models.Cell{Row: rowIdx + 1, Col: colIdx + 1}
			if field != "" {
				cell.Value = field
			}
			cells[colIdx] = cell
		}
		sheet.Rows[rowIdx] = cells
	}
	return sheet, nil
}

// DecodeText returns data as UTF-8, falling back to Latin-1 when data is not valid UTF-8.
func DecodeText(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), nil
	}
	log.WithField("bytes", len(data)).Debug("content is not UTF-8, decoding as Latin-1")
	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}
