package reconscan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/parser"
)

// DetectFormat selects the input format from the file name suffix, ignoring case.
func DetectFormat(filename string) (models.Format, bool) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		return models.FormatXLSX, true
	case strings.HasSuffix(name, ".xls"):
		return models.FormatXLS, true
	case strings.HasSuffix(name, ".csv"):
		return models.FormatCSV, true
	}
	return "", false
}

// ReadWorkbook reads data into a cell grid according to the suffix of filename.
// Errors are *FormatError values.
func ReadWorkbook(data []byte, filename string) (*models.Workbook, error) {
	format, ok := DetectFormat(filename)
	if !ok {
		return nil, NewFormatError(filename, "", ErrUnsupportedFormat)
	}

	wb := &models.Workbook{
		BookName: filepath.Base(filename),
		Format:   format,
	}

	var err error
	switch format {
	case models.FormatXLSX:
		wb.Sheets, err = parser.ReadXLSX(data)
	case models.FormatXLS:
		wb.Sheets, err = parser.ReadXLS(data)
	case models.FormatCSV:
		var sheet models.Sheet
		sheet, err = parser.ReadCSV(data, wb.BookName)
		wb.Sheets = []models.Sheet{sheet}
	}
	if err != nil {
		return nil, NewFormatError(filename, format, err)
	}
	return wb, nil
}

// Extract scans data for reconciliation tags and returns the amounts found with
// diagnostics. It never fails: a file that cannot be read yields an empty mapping and a
// single diagnostic.
func Extract(data []byte, filename string, opts Options) *models.ParseResult {
	res := models.NewParseResult()

	wb, err := ReadWorkbook(data, filename)
	if err != nil {
		log.WithFields(logrus.Fields{"file": filename}).WithError(err).Warn("could not read input")
		res.AddError(err.Error())
		return res
	}

	for _, sheet := range wb.Sheets {
		parser.ScanSheet(sheet, res)
	}

	if opts.PeriodID != nil {
		res = FilterByPeriod(res, *opts.PeriodID)
	}
	return res
}

// ExtractFile reads the file at path and scans it with Extract.
// Only I/O failures are returned as errors.
func ExtractFile(path string, opts Options) (*models.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return Extract(data, filepath.Base(path), opts), nil
}

// FilterByPeriod returns a copy of res holding only tags that belong to periodID.
// Diagnostics are passed through unfiltered.
func FilterByPeriod(res *models.ParseResult, periodID int) *models.ParseResult {
	out := models.NewParseResult()
	prefix := parser.PeriodPrefix(periodID)
	for tag, amount := range res.Tags {
		if strings.HasPrefix(tag, prefix) {
			out.Tags[tag] = amount
		}
	}
	out.Errors = append(out.Errors, res.Errors...)
	return out
}
