// Package reconscan extracts reconciliation amounts from spreadsheet and CSV files.
//
// Cells containing a tag of the form TB-<period>-<account> are located on every sheet,
// and the value in the cell immediately to the left is read as the tag's amount.
package reconscan

// Options configures extraction behavior.
type Options struct {
	// PeriodID, when set, keeps only tags belonging to that period.
	// Diagnostics are not filtered.
	PeriodID *int
}

// DefaultOptions returns default extraction options.
func DefaultOptions() Options {
	return Options{}
}

// ForPeriod returns options restricting results to periodID.
func ForPeriod(periodID int) Options {
	return Options{PeriodID: &periodID}
}
