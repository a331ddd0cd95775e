// Package reconcile matches extracted tag amounts against trial-balance accounts.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/parser"
)

var (
	// ErrAmountRequired is returned when a single-account validation has neither a
	// manual amount nor a supporting file to extract one from.
	ErrAmountRequired = errors.New("supporting amount or supporting file is required")

	// ErrNoTag is returned when an account without a reconciliation tag is validated
	// against a supporting file.
	ErrNoTag = errors.New("account has no reconciliation tag")

	// ErrTagNotExtracted is returned when the supporting file holds no amount for the
	// account's tag.
	ErrTagNotExtracted = errors.New("reconciliation tag not found in supporting file")
)

// DefaultTolerance is the largest difference at which a supporting amount still matches
// the ending balance.
var DefaultTolerance = decimal.New(1, -2)

// Account is a trial-balance account that can be reconciled by tag.
type Account struct {
	ID                int64           `json:"id"`
	PeriodID          int             `json:"period_id"`
	AccountNumber     string          `json:"account_number"`
	AccountName       string          `json:"account_name"`
	ReconciliationTag string          `json:"reconciliation_tag"`
	EndingBalance     decimal.Decimal `json:"ending_balance"`
}

// Validation is the outcome of checking one account against its extracted amount.
type Validation struct {
	Tag              string
	AccountID        int64
	AccountNumber    string
	SupportingAmount decimal.Decimal
	EndingBalance    decimal.Decimal
	Difference       decimal.Decimal
	Matches          bool
}

// MarshalJSON writes amounts as exact decimal strings.
func (v Validation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tag              string `json:"tag"`
		AccountID        int64  `json:"account_id"`
		AccountNumber    string `json:"account_number"`
		SupportingAmount string `json:"supporting_amount"`
		EndingBalance    string `json:"ending_balance"`
		Difference       string `json:"difference"`
		Matches          bool   `json:"matches"`
	}{
		Tag:              v.Tag,
		AccountID:        v.AccountID,
		AccountNumber:    v.AccountNumber,
		SupportingAmount: models.FormatAmount(v.SupportingAmount),
		EndingBalance:    models.FormatAmount(v.EndingBalance),
		Difference:       models.FormatAmount(v.Difference),
		Matches:          v.Matches,
	})
}

// Report summarizes a bulk validation run.
type Report struct {
	CreatedCount   int          `json:"created_count"`
	TotalTagsFound int          `json:"total_tags_found"`
	Validations    []Validation `json:"validations"`
	TagsNotFound   []string     `json:"tags_not_found"`
	Errors         []string     `json:"errors"`
}

// Options configures Validate.
type Options struct {
	// PeriodID, when set, ignores tags of other periods.
	PeriodID *int
	// Tolerance overrides DefaultTolerance when non-nil.
	Tolerance *decimal.Decimal
}

// Validate pairs every extracted tag with the account carrying that tag.
// Tags with no account are listed in TagsNotFound.
func Validate(res *models.ParseResult, accounts []Account, opts Options) *Report {
	tolerance := DefaultTolerance
	if opts.Tolerance != nil {
		tolerance = opts.Tolerance.Abs()
	}

	byTag := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		if a.ReconciliationTag != "" {
			byTag[a.ReconciliationTag] = a
		}
	}

	report := &Report{
		Validations:  []Validation{},
		TagsNotFound: []string{},
		Errors:       append([]string{}, res.Errors...),
	}

	var prefix string
	if opts.PeriodID != nil {
		prefix = parser.PeriodPrefix(*opts.PeriodID)
	}

	tags := res.SortedTags()
	for _, tag := range tags {
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		report.TotalTagsFound++

		account, ok := byTag[tag]
		if !ok {
			report.TagsNotFound = append(report.TagsNotFound, tag)
			continue
		}
		report.Validations = append(report.Validations, Check(account, tag, res.Tags[tag], tolerance))
	}
	report.CreatedCount = len(report.Validations)
	return report
}

// Check compares a supporting amount with the account's ending balance.
func Check(account Account, tag string, supporting, tolerance decimal.Decimal) Validation {
	diff := supporting.Sub(account.EndingBalance)
	return Validation{
		Tag:              tag,
		AccountID:        account.ID,
		AccountNumber:    account.AccountNumber,
		SupportingAmount: supporting,
		EndingBalance:    account.EndingBalance,
		Difference:       diff,
		Matches:          diff.Abs().LessThanOrEqual(tolerance),
	}
}

// Result is the outcome of validating a single account.
type Result struct {
	Validation        Validation `json:"validation"`
	AutoExtracted     bool       `json:"auto_extracted"`
	ReconciliationTag string     `json:"reconciliation_tag"`
}

// ValidateAccount checks one account. A manual amount takes precedence; otherwise the
// amount extracted for the account's tag from res is used. res may be nil when no
// supporting file was given.
func ValidateAccount(account Account, res *models.ParseResult, manual *decimal.Decimal, tolerance decimal.Decimal) (*Result, error) {
	tolerance = tolerance.Abs()
	tag := account.ReconciliationTag

	if manual != nil {
		return &Result{
			Validation:        Check(account, tag, *manual, tolerance),
			ReconciliationTag: tag,
		}, nil
	}
	if res == nil {
		return nil, ErrAmountRequired
	}
	if tag == "" {
		return nil, fmt.Errorf("%w: account %d", ErrNoTag, account.ID)
	}
	amount, ok := res.Tags[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTagNotExtracted, tag)
	}
	return &Result{
		Validation:        Check(account, tag, amount, tolerance),
		AutoExtracted:     true,
		ReconciliationTag: tag,
	}, nil
}

// AssignTags fills in missing reconciliation tags from each account's period and number.
// Accounts are modified in place.
func AssignTags(accounts []Account) {
	for i := range accounts {
		if accounts[i].ReconciliationTag == "" && accounts[i].AccountNumber != "" {
			accounts[i].ReconciliationTag = parser.FormatTag(accounts[i].PeriodID, accounts[i].AccountNumber)
		}
	}
}

// Unresolved returns the tags whose amounts did not match, in tag order.
func (r *Report) Unresolved() []string {
	var out []string
	for _, v := range r.Validations {
		if !v.Matches {
			out = append(out, v.Tag)
		}
	}
	sort.Strings(out)
	return out
}
