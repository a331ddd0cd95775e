package models

// Format identifies the input format of a workbook.
type Format string

const (
	// FormatXLSX is the Office Open XML workbook format (.xlsx).
	FormatXLSX Format = "xlsx"
	// FormatXLS is the legacy BIFF workbook format (.xls).
	FormatXLS Format = "xls"
	// FormatCSV is comma-separated text (.csv).
	FormatCSV Format = "csv"
)

// Workbook represents workbook-level container with sheets in storage order.
type Workbook struct {
	// BookName is the workbook file name (no path).
	BookName string `json:"book_name"`
	// Format is the format the workbook was read as.
	Format Format `json:"format"`
	// Sheets lists the sheets in storage order.
	Sheets []Sheet `json:"sheets"`
}
