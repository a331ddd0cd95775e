package reconscan

import (
	"errors"
	"fmt"

	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrUnsupportedFormat indicates the file name does not end in .xlsx, .xls or .csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// FormatError represents a failure to read a whole input file.
type FormatError struct {
	Filename string
	Format   models.Format // empty when the format could not be determined
	Err      error
}

func (e *FormatError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedFormat) {
		return fmt.Sprintf("Unsupported file format: %s", e.Filename)
	}
	if e.Format == models.FormatCSV {
		return fmt.Sprintf("Error parsing CSV file: %v", e.Err)
	}
	return fmt.Sprintf("Error parsing %s file: %v", formatLabel(e.Format), e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError creates a new FormatError.
func NewFormatError(filename string, format models.Format, err error) *FormatError {
	return &FormatError{
		Filename: filename,
		Format:   format,
		Err:      err,
	}
}

func formatLabel(f models.Format) string {
	switch f {
	case models.FormatXLSX:
		return "XLSX"
	case models.FormatXLS:
		return "XLS"
	case models.FormatCSV:
		return "CSV"
	}
	return "input"
}
