// Package parser reads spreadsheet and CSV content into cell grids and scans them
// for reconciliation tags.
package parser

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger()
