// Package output serializes extraction results and validation reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

// ToJSON serializes a parse result. Amounts are written as exact decimal strings
// and tags in lexical order.
func ToJSON(res *models.ParseResult, pretty bool) ([]byte, error) {
	return Marshal(res, pretty)
}

// ReportToJSON serializes a validation report.
func ReportToJSON(report *reconcile.Report, pretty bool) ([]byte, error) {
	return Marshal(report, pretty)
}

// ResultToJSON serializes a single-account validation.
func ResultToJSON(result *reconcile.Result, pretty bool) ([]byte, error) {
	return Marshal(result, pretty)
}

// Marshal serializes v as JSON, indented when pretty is set.
func Marshal(v interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// WriteText writes a plain-text listing of res: one tab-separated tag and amount per line,
// then the diagnostics, then a summary line.
func WriteText(w io.Writer, res *models.ParseResult) error {
	for _, tag := range res.SortedTags() {
		amount := res.Tags[tag]
		if _, err := fmt.Fprintf(w, "%s\t%s\n", tag, models.FormatAmount(amount)); err != nil {
			return err
		}
	}
	for _, msg := range res.Errors {
		if _, err := fmt.Fprintf(w, "! %s\n", msg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d tags extracted, %d diagnostics\n", len(res.Tags), len(res.Errors))
	return err
}
