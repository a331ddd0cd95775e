package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"unicode/utf16"

	"github.com/shopspring/decimal"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
)

func TestReadXLSRejectsNonCompoundFile(t *testing.T) {
	tests := [][]byte{
		nil,
		[]byte("Account,Balance,Tag\n"),
		make([]byte, 1024),
	}

	for _, data := range tests {
		sheets, err := ReadXLS(data)
		if err == nil {
			t.Errorf("ReadXLS(%d bytes) expected error, got %d sheets", len(data), len(sheets))
		}
	}
}

type fakeXLSCell string

func (c fakeXLSCell) GetString() string { return string(c) }

func TestXLSCellValue(t *testing.T) {
	tests := []struct {
		recordType string
		cell       fakeXLSCell
		expected   interface{}
	}{
		{"*record.Number", "1500.25", nil},
		{"*record.Rk", "1073741324", nil},
		{"*record.LabelSSt", "TB-1-1000", "TB-1-1000"},
		{"*record.BoolErr", "TRUE", "TRUE"},
		{"*record.Blank", "", nil},
		{"*record.FakeBlank", "", nil},
		{"*record.LabelBIFF8", "", nil},
	}

	for _, tt := range tests {
		result := xlsCellValue(tt.recordType, tt.cell)
		if result != tt.expected {
			t.Errorf("xlsCellValue(%q) = %v (type: %T), expected %v (type: %T)",
				tt.recordType, result, result, tt.expected, tt.expected)
		}
	}
}

func TestDecodeRK(t *testing.T) {
	tests := []struct {
		name     string
		rk       uint32
		expected float64
	}{
		{"integer", rkInt(5000, false), 5000},
		{"negative integer", rkInt(-500, false), -500},
		{"negative integer hundredths", rkInt(-123456, true), -1234.56},
		{"integer hundredths", rkInt(150, true), 1.5},
		{"double", 0x3FF80000, 1.5},
		{"negative double", 0xC0590000, -100},
		{"double hundredths", 0x40590000 | 1, 1},
	}

	for _, tt := range tests {
		if got := decodeRK(tt.rk); got != tt.expected {
			t.Errorf("%s: decodeRK(%#x) = %v, expected %v", tt.name, tt.rk, got, tt.expected)
		}
	}
}

func TestFormulaResult(t *testing.T) {
	num := make([]byte, 8)
	binary.LittleEndian.PutUint64(num, math.Float64bits(-42.5))

	tests := []struct {
		name     string
		value    []byte
		expected interface{}
		isString bool
	}{
		{"number", num, -42.5, false},
		{"string", []byte{0x00, 0, 0, 0, 0, 0, 0xFF, 0xFF}, nil, true},
		{"bool", []byte{0x01, 0, 0x01, 0, 0, 0, 0xFF, 0xFF}, true, false},
		{"error", []byte{0x02, 0, 0x07, 0, 0, 0, 0xFF, 0xFF}, "#DIV/0!", false},
		{"empty", []byte{0x03, 0, 0, 0, 0, 0, 0xFF, 0xFF}, nil, false},
	}

	for _, tt := range tests {
		v, isString := formulaResult(tt.value)
		if v != tt.expected || isString != tt.isString {
			t.Errorf("%s: formulaResult() = (%v, %v), expected (%v, %v)", tt.name, v, isString, tt.expected, tt.isString)
		}
	}
}

func TestDecodeXLString(t *testing.T) {
	wide := []byte{0x03, 0x00, 0x01}
	for _, u := range utf16.Encode([]rune("€10")) {
		wide = binary.LittleEndian.AppendUint16(wide, u)
	}

	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"compressed", xlString("TB-1-1000"), "TB-1-1000"},
		{"latin1", append([]byte{0x04, 0x00, 0x00}, "Caf\xe9"...), "Café"},
		{"utf16", wide, "€10"},
		{"short", append([]byte{0x09, 0x00, 0x00}, "TB-1"...), "TB-1"},
	}

	for _, tt := range tests {
		got, ok := decodeXLString(tt.data)
		if !ok || got != tt.expected {
			t.Errorf("%s: decodeXLString() = (%q, %v), expected %q", tt.name, got, ok, tt.expected)
		}
	}
}

func TestReadXLS(t *testing.T) {
	data := compoundFile(xlsStream(
		xlsSheet{"Balances", [][]byte{
			labelRec(0, 0, "Account"), labelRec(0, 1, "Balance"), labelRec(0, 2, "Tag"),
			labelRec(1, 0, "Cash"), rkRec(1, 1, rkInt(5000, false)), labelRec(1, 2, "TB-1-1000"),
			labelRec(2, 0, "AP"), rkRec(2, 1, rkInt(-500, false)), labelRec(2, 2, "TB-1-2100"),
			labelRec(3, 0, "Accrual"), rkRec(3, 1, rkInt(-123456, true)), labelRec(3, 2, "TB-1-2200"),
			labelRec(4, 0, "Revenue"), formulaNumberRec(4, 1, 7500.25), rstringRec(4, 2, "TB-1-4000"),
			labelRec(5, 0, "Memo"), formulaStringRecs(5, 1, "n/a"), labelRec(5, 2, "TB-1-5000"),
			mulRKRec(6, 0, rkInt(12, false), rkInt(-3, false)), labelRec(6, 2, "TB-1-6000"),
			labelRec(7, 0, "Fx"), numberRec(7, 1, -1234.5), labelRec(7, 2, "TB-1-7000"),
		}},
		xlsSheet{"Other", [][]byte{
			labelRec(0, 0, "TB-2-1000"),
			rkRec(1, 0, 0x3FF80000), labelRec(1, 1, "TB-2-2000"),
		}},
	))

	sheets, err := ReadXLS(data)
	if err != nil {
		t.Fatalf("ReadXLS() error = %v", err)
	}
	if len(sheets) != 2 || sheets[0].Name != "Balances" || sheets[1].Name != "Other" {
		t.Fatalf("Expected sheets Balances and Other, got %+v", sheets)
	}

	res := models.NewParseResult()
	for _, sheet := range sheets {
		ScanSheet(sheet, res)
	}

	expected := map[string]string{
		"TB-1-1000": "5000",
		"TB-1-2100": "-500",
		"TB-1-2200": "-1234.56",
		"TB-1-4000": "7500.25",
		"TB-1-6000": "-3",
		"TB-1-7000": "-1234.5",
		"TB-2-2000": "1.5",
	}
	if len(res.Tags) != len(expected) {
		t.Errorf("Expected %d tags, got %v", len(expected), res.Tags)
	}
	for tag, amount := range expected {
		if got, ok := res.Tags[tag]; !ok || !got.Equal(decimal.RequireFromString(amount)) {
			t.Errorf("Tag %s = %v, expected %s", tag, got, amount)
		}
	}

	expectedErrors := []string{
		"Could not extract numeric value for tag TB-1-5000 from cell value: n/a",
		"Tag TB-2-1000 found in first column with no value to the left",
	}
	if len(res.Errors) != len(expectedErrors) {
		t.Fatalf("Expected errors %v, got %v", expectedErrors, res.Errors)
	}
	for i, msg := range expectedErrors {
		if res.Errors[i] != msg {
			t.Errorf("Error %d = %q, expected %q", i, res.Errors[i], msg)
		}
	}
}

func TestReadXLSSkipsEmbeddedCharts(t *testing.T) {
	chart := bytes.Join([][]byte{
		bofRec(0x0020),
		numberRec(1, 1, 999),
		biffRecord(biffEOF),
	}, nil)
	data := compoundFile(xlsStream(xlsSheet{"Balances", [][]byte{
		labelRec(0, 0, "Cash"), labelRec(1, 2, "TB-1-1000"),
		chart,
	}}))

	sheets, err := ReadXLS(data)
	if err != nil {
		t.Fatalf("ReadXLS() error = %v", err)
	}
	res := models.NewParseResult()
	ScanSheet(sheets[0], res)
	if len(res.Tags) != 0 {
		t.Errorf("Expected chart data to be ignored, got %v", res.Tags)
	}
}

func TestReadXLSEncrypted(t *testing.T) {
	stream := xlsStream(xlsSheet{"Balances", [][]byte{labelRec(0, 0, "TB-1-1000")}})
	// FILEPASS directly after the globals BOF.
	bof := len(bofRec(0x0005))
	filePass := biffRecord(biffFilePass, le16(1), make([]byte, 52))
	stream = bytes.Join([][]byte{stream[:bof], filePass, stream[bof:]}, nil)
	shiftBoundSheets(stream, len(filePass))

	_, err := ReadXLS(compoundFile(stream))
	if !errors.Is(err, ErrEncryptedWorkbook) {
		t.Errorf("ReadXLS() error = %v, expected %v", err, ErrEncryptedWorkbook)
	}
}

func TestReadXLSTruncatedStream(t *testing.T) {
	stream := xlsStream(xlsSheet{"Balances", [][]byte{labelRec(0, 0, "TB-1-1000")}})
	// Point the sheet past the end of the stream.
	shiftBoundSheets(stream, 1<<20)

	if _, err := ReadXLS(compoundFile(stream)); err == nil {
		t.Error("Expected error for sheet offset outside the stream")
	}
}

// BIFF8 and compound file builders for the tests above.

type xlsSheet struct {
	name    string
	records [][]byte
}

func le16(v int) []byte { return binary.LittleEndian.AppendUint16(nil, uint16(v)) }

func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func biffRecord(typ uint16, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	return bytes.Join([][]byte{le16(int(typ)), le16(len(body)), body}, nil)
}

func bofRec(dt int) []byte {
	return biffRecord(biffBOF, le16(0x0600), le16(dt), le16(0x0DBB), le16(0x07CC), le32(0), le32(0x06))
}

func cellHeader(row, col int) []byte {
	return bytes.Join([][]byte{le16(row), le16(col), le16(15)}, nil)
}

func xlString(s string) []byte {
	return bytes.Join([][]byte{le16(len(s)), {0x00}, []byte(s)}, nil)
}

func labelRec(row, col int, s string) []byte {
	return biffRecord(biffLabel, cellHeader(row, col), xlString(s))
}

func rstringRec(row, col int, s string) []byte {
	return biffRecord(biffRString, cellHeader(row, col), xlString(s), le16(0))
}

func rkInt(v int32, hundredths bool) uint32 {
	rk := uint32(v<<2) | 0x02
	if hundredths {
		rk |= 0x01
	}
	return rk
}

func rkRec(row, col int, rk uint32) []byte {
	return biffRecord(biffRK, cellHeader(row, col), le32(rk))
}

func mulRKRec(row, first int, rks ...uint32) []byte {
	parts := [][]byte{le16(row), le16(first)}
	for _, rk := range rks {
		parts = append(parts, le16(15), le32(rk))
	}
	parts = append(parts, le16(first+len(rks)-1))
	return biffRecord(biffMulRK, parts...)
}

func numberRec(row, col int, f float64) []byte {
	return biffRecord(biffNumber, cellHeader(row, col), binary.LittleEndian.AppendUint64(nil, math.Float64bits(f)))
}

func formulaNumberRec(row, col int, f float64) []byte {
	value := binary.LittleEndian.AppendUint64(nil, math.Float64bits(f))
	return biffRecord(biffFormula, cellHeader(row, col), value, le16(0), le32(0), le16(0))
}

func formulaStringRecs(row, col int, s string) []byte {
	value := []byte{0x00, 0, 0, 0, 0, 0, 0xFF, 0xFF}
	formula := biffRecord(biffFormula, cellHeader(row, col), value, le16(0), le32(0), le16(0))
	return append(formula, biffRecord(biffString, xlString(s))...)
}

// xlsStream lays out a workbook globals substream followed by one substream per sheet.
func xlsStream(sheets ...xlsSheet) []byte {
	bof := bofRec(0x0005)
	globalsLen := len(bof) + 4
	for _, s := range sheets {
		globalsLen += 4 + 8 + len(s.name)
	}

	var bounds, bodies []byte
	offset := globalsLen
	for _, s := range sheets {
		body := bytes.Join([][]byte{bofRec(0x0010), bytes.Join(s.records, nil), biffRecord(biffEOF)}, nil)
		bounds = append(bounds, biffRecord(biffBoundSheet, le32(uint32(offset)), le16(0), []byte{byte(len(s.name)), 0x00}, []byte(s.name))...)
		bodies = append(bodies, body...)
		offset += len(body)
	}
	return bytes.Join([][]byte{bof, bounds, biffRecord(biffEOF), bodies}, nil)
}

// shiftBoundSheets adds delta to every BOUNDSHEET stream position in the globals.
func shiftBoundSheets(stream []byte, delta int) {
	_ = walkBIFF(stream, 0, func(typ uint16, depth int, data []byte) {
		if typ == biffBoundSheet {
			pos := binary.LittleEndian.Uint32(data)
			binary.LittleEndian.PutUint32(data, pos+uint32(delta))
		}
	})
}

const (
	cfbSector     = 512
	cfbEndOfChain = 0xFFFFFFFE
	cfbFreeSect   = 0xFFFFFFFF
	cfbNoStream   = 0xFFFFFFFF
)

// compoundFile wraps stream as the Workbook stream of a version 3 compound file with
// one FAT sector and one directory sector. Streams are padded to the 4096 byte mini
// stream cutoff so they live in regular sectors.
func compoundFile(stream []byte) []byte {
	size := len(stream)
	if size < 4096 {
		size = 4096
	}
	padded := make([]byte, (size+cfbSector-1)/cfbSector*cfbSector)
	copy(padded, stream)
	n := len(padded) / cfbSector

	header := make([]byte, cfbSector)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(header[24:], 0x003E)
	binary.LittleEndian.PutUint16(header[26:], 0x0003)
	binary.LittleEndian.PutUint16(header[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(header[30:], 0x0009)
	binary.LittleEndian.PutUint16(header[32:], 0x0006)
	binary.LittleEndian.PutUint32(header[44:], 1)
	binary.LittleEndian.PutUint32(header[48:], 1)
	binary.LittleEndian.PutUint32(header[56:], 0x1000)
	binary.LittleEndian.PutUint32(header[60:], cfbEndOfChain)
	binary.LittleEndian.PutUint32(header[68:], cfbEndOfChain)
	for i := 76; i < cfbSector; i += 4 {
		binary.LittleEndian.PutUint32(header[i:], cfbFreeSect)
	}
	binary.LittleEndian.PutUint32(header[76:], 0)

	fat := make([]byte, cfbSector)
	for i := 0; i < cfbSector; i += 4 {
		binary.LittleEndian.PutUint32(fat[i:], cfbFreeSect)
	}
	binary.LittleEndian.PutUint32(fat[0:], 0xFFFFFFFD)
	binary.LittleEndian.PutUint32(fat[4:], cfbEndOfChain)
	for i := 0; i < n; i++ {
		next := uint32(3 + i)
		if i == n-1 {
			next = cfbEndOfChain
		}
		binary.LittleEndian.PutUint32(fat[4*(2+i):], next)
	}

	dir := make([]byte, cfbSector)
	dirEntry(dir[0:128], "Root Entry", 5, 1, cfbEndOfChain, 0)
	dirEntry(dir[128:256], "Workbook", 2, cfbNoStream, 2, size)

	return bytes.Join([][]byte{header, fat, dir, padded}, nil)
}

func dirEntry(b []byte, name string, objectType byte, child, start uint32, size int) {
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	binary.LittleEndian.PutUint16(b[64:], uint16((len(units)+1)*2))
	b[66] = objectType
	b[67] = 1
	binary.LittleEndian.PutUint32(b[68:], cfbNoStream)
	binary.LittleEndian.PutUint32(b[72:], cfbNoStream)
	binary.LittleEndian.PutUint32(b[76:], child)
	binary.LittleEndian.PutUint32(b[116:], start)
	binary.LittleEndian.PutUint32(b[120:], uint32(size))
}
