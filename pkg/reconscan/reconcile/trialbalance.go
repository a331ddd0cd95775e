package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/parser"
)

// ErrMissingColumn is returned when a trial balance lacks a required column.
var ErrMissingColumn = errors.New("required column not found")

// Header names accepted for each trial-balance field, compared lower-cased.
var trialBalanceColumns = map[string][]string{
	"account_number":     {"account_number", "account number", "account no", "account"},
	"account_name":       {"account_name", "account name", "name", "description"},
	"ending_balance":     {"ending_balance", "ending balance", "balance", "amount"},
	"reconciliation_tag": {"reconciliation_tag", "reconciliation tag", "tag"},
}

// ReadTrialBalance reads the accounts of periodID from sheet. The first non-empty row
// is the header; account number and ending balance columns are required. A blank
// balance is zero. Tags given in the sheet must belong to periodID.
func ReadTrialBalance(sheet models.Sheet, periodID int) ([]Account, error) {
	header := -1
	for i, row := range sheet.Rows {
		if !blankRow(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrMissingColumn, sheet.Name)
	}

	columns := columnMap(sheet.Rows[header])
	for _, required := range []string{"account_number", "ending_balance"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	accounts := []Account{}
	seen := make(map[string]int)
	prefix := parser.PeriodPrefix(periodID)
	for i, row := range sheet.Rows[header+1:] {
		line := header + i + 2
		number := cellText(row, columns, "account_number")
		if number == "" {
			continue
		}
		if prev, ok := seen[number]; ok {
			return nil, fmt.Errorf("row %d: account %s already listed on row %d", line, number, prev)
		}
		seen[number] = line

		balance := decimal.Zero
		if raw := cellValue(row, columns, "ending_balance"); !blankValue(raw) {
			var ok bool
			if balance, ok = parser.NormalizeAmount(raw); !ok {
				return nil, fmt.Errorf("row %d: invalid ending balance %q", line, parser.CellText(raw))
			}
		}

		tag := cellText(row, columns, "reconciliation_tag")
		if tag != "" {
			if _, _, ok := parser.ParseTag(tag); !ok || !strings.HasPrefix(tag, prefix) {
				return nil, fmt.Errorf("row %d: tag %s is not a tag of period %d", line, tag, periodID)
			}
		}

		accounts = append(accounts, Account{
			PeriodID:          periodID,
			AccountNumber:     number,
			AccountName:       cellText(row, columns, "account_name"),
			ReconciliationTag: tag,
			EndingBalance:     balance,
		})
	}
	return accounts, nil
}

func columnMap(header []models.Cell) map[string]int {
	names := make(map[string]int)
	for i, cell := range header {
		names[strings.ToLower(strings.TrimSpace(parser.CellText(cell.Value)))] = i
	}

	columns := make(map[string]int)
	for field, aliases := range trialBalanceColumns {
		for _, alias := range aliases {
			if i, ok := names[alias]; ok {
				columns[field] = i
				break
			}
		}
	}
	return columns
}

func cellValue(row []models.Cell, columns map[string]int, field string) interface{} {
	i, ok := columns[field]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i].Value
}

func cellText(row []models.Cell, columns map[string]int, field string) string {
	return strings.TrimSpace(parser.CellText(cellValue(row, columns, field)))
}

func blankValue(v interface{}) bool {
	return strings.TrimSpace(parser.CellText(v)) == ""
}

func blankRow(row []models.Cell) bool {
	for _, cell := range row {
		if !blankValue(cell.Value) {
			return false
		}
	}
	return true
}
