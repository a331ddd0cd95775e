package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"golang.org/x/text/encoding/charmap"
)

// BIFF8 record identifiers decoded from the workbook stream.
const (
	biffFormula    = 0x0006
	biffEOF        = 0x000A
	biffFilePass   = 0x002F
	biffBoundSheet = 0x0085
	biffMulRK      = 0x00BD
	biffRString    = 0x00D6
	biffNumber     = 0x0203
	biffLabel      = 0x0204
	biffString     = 0x0207
	biffRK         = 0x027E
	biffBOF        = 0x0809
)

var (
	// ErrNoWorkbookStream indicates a compound file without a BIFF workbook stream.
	ErrNoWorkbookStream = errors.New("no Workbook stream in compound file")

	// ErrEncryptedWorkbook indicates a workbook protected with a password.
	ErrEncryptedWorkbook = errors.New("workbook is password protected")

	errTruncatedRecord = errors.New("truncated BIFF record")
)

var biffErrorCodes = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
}

type biffCell struct {
	row, col int
	value    interface{}
}

// workbookStream returns the BIFF workbook stream of an OLE2 compound file.
func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var book *mscfb.File
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name == "Workbook" || (entry.Name == "Book" && book == nil) {
			book = entry
		}
	}
	if book == nil {
		return nil, ErrNoWorkbookStream
	}

	stream := make([]byte, book.Size)
	if _, err := io.ReadFull(book, stream); err != nil {
		return nil, err
	}
	return stream, nil
}

// walkBIFF calls fn for every record of the substream starting at offset, up to and
// including the EOF record that closes it. Nested substreams are passed through with
// their depth so callers can skip embedded charts.
func walkBIFF(stream []byte, offset int, fn func(typ uint16, depth int, data []byte)) error {
	depth := 0
	for pos := offset; pos+4 <= len(stream); {
		typ := binary.LittleEndian.Uint16(stream[pos:])
		size := int(binary.LittleEndian.Uint16(stream[pos+2:]))
		pos += 4
		if pos+size > len(stream) {
			return errTruncatedRecord
		}

		if typ == biffBOF {
			depth++
		}
		fn(typ, depth, stream[pos:pos+size])
		if typ == biffEOF {
			depth--
			if depth <= 0 {
				return nil
			}
		}
		pos += size
	}
	return errTruncatedRecord
}

// readBIFFCells decodes the cell records of every sheet in the stream, in BOUNDSHEET
// order. These complement the grid built by the xls reader with the records it skips
// (formula results, rich strings) or misreads (negative RK integers).
func readBIFFCells(stream []byte) ([][]biffCell, error) {
	var offsets []int
	var encrypted bool
	err := walkBIFF(stream, 0, func(typ uint16, depth int, data []byte) {
		switch typ {
		case biffFilePass:
			encrypted = true
		case biffBoundSheet:
			if len(data) >= 4 {
				offsets = append(offsets, int(binary.LittleEndian.Uint32(data)))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if encrypted {
		return nil, ErrEncryptedWorkbook
	}

	sheets := make([][]biffCell, len(offsets))
	for i, offset := range offsets {
		if offset < 0 || offset >= len(stream) {
			return nil, errTruncatedRecord
		}
		cells, err := readBIFFSheet(stream, offset)
		if err != nil {
			return nil, err
		}
		sheets[i] = cells
	}
	return sheets, nil
}

func readBIFFSheet(stream []byte, offset int) ([]biffCell, error) {
	var cells []biffCell
	pendingString := -1

	err := walkBIFF(stream, offset, func(typ uint16, depth int, data []byte) {
		if depth != 1 {
			return
		}
		switch typ {
		case biffNumber:
			if len(data) >= 14 {
				v := math.Float64frombits(binary.LittleEndian.Uint64(data[6:14]))
				cells = append(cells, newBIFFCell(data, v))
			}
		case biffRK:
			if len(data) >= 10 {
				cells = append(cells, newBIFFCell(data, decodeRK(binary.LittleEndian.Uint32(data[6:10]))))
			}
		case biffMulRK:
			if len(data) < 6 {
				return
			}
			row := int(binary.LittleEndian.Uint16(data[0:2]))
			first := int(binary.LittleEndian.Uint16(data[2:4]))
			for i := 0; 6+6*i+4 <= len(data)-2; i++ {
				rk := binary.LittleEndian.Uint32(data[6+6*i:])
				cells = append(cells, biffCell{row: row, col: first + i, value: decodeRK(rk)})
			}
		case biffLabel, biffRString:
			if len(data) < 6 {
				return
			}
			if s, ok := decodeXLString(data[6:]); ok && s != "" {
				cells = append(cells, newBIFFCell(data, s))
			}
		case biffFormula:
			if len(data) < 14 {
				return
			}
			v, isString := formulaResult(data[6:14])
			cells = append(cells, newBIFFCell(data, v))
			pendingString = -1
			if isString {
				pendingString = len(cells) - 1
			}
		case biffString:
			if pendingString < 0 {
				return
			}
			if s, ok := decodeXLString(data); ok && s != "" {
				cells[pendingString].value = s
			}
			pendingString = -1
		}
	})
	return cells, err
}

func newBIFFCell(data []byte, v interface{}) biffCell {
	return biffCell{
		row:   int(binary.LittleEndian.Uint16(data[0:2])),
		col:   int(binary.LittleEndian.Uint16(data[2:4])),
		value: v,
	}
}

// decodeRK unpacks an RK number: a signed 30-bit integer or the high 30 bits of a
// double, optionally scaled by 100.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// formulaResult decodes the cached value of a FORMULA record. A string result is
// carried by the STRING record that follows; isString reports that case.
func formulaResult(b []byte) (v interface{}, isString bool) {
	if b[6] != 0xFF || b[7] != 0xFF {
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), false
	}
	switch b[0] {
	case 0x00:
		return nil, true
	case 0x01:
		return b[2] != 0, false
	case 0x02:
		return biffErrorCodes[b[2]], false
	}
	return nil, false
}

// decodeXLString reads an XLUnicodeString: a 16-bit character count, a flags byte
// and the characters, either UTF-16LE or single-byte Latin-1.
func decodeXLString(b []byte) (string, bool) {
	if len(b) < 3 {
		return "", false
	}
	n := int(binary.LittleEndian.Uint16(b[0:2]))
	flags := b[2]
	chars := b[3:]

	if flags&0x01 != 0 {
		if len(chars) < 2*n {
			n = len(chars) / 2
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(chars[2*i:])
		}
		return string(utf16.Decode(units)), true
	}

	if len(chars) < n {
		n = len(chars)
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(chars[:n])
	if err != nil {
		return "", false
	}
	return string(text), true
}

// applyBIFFCells writes decoded cells into sheet, growing the dense grid as needed.
func applyBIFFCells(sheet *models.Sheet, cells []biffCell) {
	for _, c := range cells {
		for len(sheet.Rows) <= c.row {
			sheet.Rows = append(sheet.Rows, nil)
		}
		row := sheet.Rows[c.row]
		for len(row) <= c.col {
			row = append(row, models.Cell{Row: c.row + 1, Col: len(row) + 1})
		}
		row[c.col].Value = c.value
		sheet.Rows[c.row] = row
	}
}
