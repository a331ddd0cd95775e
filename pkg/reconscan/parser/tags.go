package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TagPrefix starts every reconciliation tag.
const TagPrefix = "TB-"

// TagPattern matches a reconciliation tag TB-<period>-<account> anywhere in a string.
// The period is numeric; the account may contain letters, digits, hyphens and periods.
var TagPattern = regexp.MustCompile(`TB-(\d+)-([A-Za-z0-9\-.]+)`)

// FindTag returns the first reconciliation tag embedded in s.
func FindTag(s string) (string, bool) {
	tag := TagPattern.FindString(s)
	return tag, tag != ""
}

// ParseTag splits a tag into its period id and account identifier.
// The whole string must be a tag.
func ParseTag(tag string) (periodID int, account string, ok bool) {
	m := TagPattern.FindStringSubmatchIndex(tag)
	if m == nil || m[0] != 0 || m[1] != len(tag) {
		return 0, "", false
	}
	periodID, err := strconv.Atoi(tag[m[2]:m[3]])
	if err != nil {
		return 0, "", false
	}
	return periodID, tag[m[4]:m[5]], true
}

// FormatTag builds the tag for an account in a period.
func FormatTag(periodID int, account string) string {
	return fmt.Sprintf("%s%d-%s", TagPrefix, periodID, strings.TrimSpace(account))
}

// PeriodPrefix returns the prefix shared by every tag of a period, e.g. "TB-1-".
func PeriodPrefix(periodID int) string {
	return fmt.Sprintf("%s%d-", TagPrefix, periodID)
}
