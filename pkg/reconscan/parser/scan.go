package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
)

// ScanSheet scans every cell of sheet in row-major order and records the amount to the
// left of each reconciliation tag into res. Problems with individual tags are recorded as
// diagnostics and never stop the scan.
func ScanSheet(sheet models.Sheet, res *models.ParseResult) {
	found := 0
	for _, row := range sheet.Rows {
		for _, cell := range row {
			if cell.IsEmpty() {
				continue
			}

			tag, ok := FindTag(strings.TrimSpace(CellText(cell.Value)))
			if !ok {
				continue
			}
			found++

			left, ok := sheet.CellLeftOf(cell)
			if !ok {
				res.AddError(fmt.Sprintf("Tag %s found in first column with no value to the left", tag))
				continue
			}

			amount, ok := NormalizeAmount(left.Value)
			if !ok {
				res.AddError(unresolvedMessage(tag, left))
				continue
			}
			if !res.Add(tag, amount) {
				res.AddError(fmt.Sprintf("Duplicate tag found: %s", tag))
			}
		}
	}

	log.WithFields(logrus.Fields{
		"sheet": sheet.Name,
		"rows":  len(sheet.Rows),
		"tags":  found,
	}).Debug("scanned sheet")
}

func unresolvedMessage(tag string, value models.Cell) string {
	if value.IsEmpty() || strings.TrimSpace(CellText(value.Value)) == "" {
		return fmt.Sprintf("Could not extract numeric value for tag %s: value cell is empty", tag)
	}
	return fmt.Sprintf("Could not extract numeric value for tag %s from cell value: %s", tag, CellText(value.Value))
}

// CellText renders a cell value as text.
func CellText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}
