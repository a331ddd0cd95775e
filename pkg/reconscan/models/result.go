package models

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// ParseResult is the outcome of scanning one input for reconciliation tags.
type ParseResult struct {
	// Tags maps each tag to the amount found next to its first occurrence.
	Tags map[string]decimal.Decimal `json:"tags"`
	// Errors lists non-fatal diagnostics in the order they were found.
	Errors []string `json:"errors"`
}

// NewParseResult returns an empty result.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Tags:   make(map[string]decimal.Decimal),
		Errors: []string{},
	}
}

// Add records amount for tag. It returns false, leaving the existing amount
// untouched, when tag was already recorded.
func (r *ParseResult) Add(tag string, amount decimal.Decimal) bool {
	if _, ok := r.Tags[tag]; ok {
		return false
	}
	r.Tags[tag] = amount
	return true
}

// AddError appends a diagnostic.
func (r *ParseResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// SortedTags returns the tag keys in lexical order.
func (r *ParseResult) SortedTags() []string {
	tags := make([]string, 0, len(r.Tags))
	for tag := range r.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MarshalJSON writes amounts as decimal strings that keep their entered precision.
func (r *ParseResult) MarshalJSON() ([]byte, error) {
	tags := make(map[string]string, len(r.Tags))
	for tag, amount := range r.Tags {
		tags[tag] = FormatAmount(amount)
	}
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return json.Marshal(struct {
		Tags   map[string]string `json:"tags"`
		Errors []string          `json:"errors"`
	}{tags, errs})
}

// FormatAmount renders d keeping trailing zeros, so 5000.00 stays "5000.00".
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
