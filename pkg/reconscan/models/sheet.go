package models

// Sheet represents one sheet of a workbook (or the single implicit sheet of a CSV file)
// as a grid of cells.
type Sheet struct {
	// Name is the sheet name. CSV sheets are named after the file.
	Name string `json:"name"`
	// Rows holds every row in storage order. Each row is dense: Rows[i][j] is the cell at
	// row i+1, column j+1, with empty cells carrying a nil Value.
	Rows [][]Cell `json:"rows,omitempty"`
}

// CellLeftOf returns the cell immediately to the left of c in the same row.
// The boolean is false when c is in the first column or lies outside the grid.
func (s Sheet) CellLeftOf(c Cell) (Cell, bool) {
	if c.Col <= 1 || c.Row < 1 || c.Row > len(s.Rows) {
		return Cell{}, false
	}
	row := s.Rows[c.Row-1]
	if c.Col-2 >= len(row) {
		return Cell{Row: c.Row, Col: c.Col - 1}, true
	}
	return row[c.Col-2], true
}
