// Package models defines data structures for reconciliation tag extraction.
package models

// Cell represents a single non-empty cell in a normalized sheet grid.
type Cell struct {
	// Row is the row index (1-based).
	Row int `json:"r"`
	// Col is the column index (1-based).
	Col int `json:"c"`
	// Value is the cell value: nil, string, int64, float64 or bool.
	Value interface{} `json:"v"`
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	switch v := c.Value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
