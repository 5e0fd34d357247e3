package spreadsheet

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// CellAddress is a zero-based (row, column) grid coordinate
type CellAddress struct {
	Row    uint32
	Column uint32
}

// String renders the address in A1 notation
func (a CellAddress) String() string {
	return IndexToColumn(int(a.Column)) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// Less orders addresses row-major
func (a CellAddress) Less(b CellAddress) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

// compareAddresses is Less as a three-way comparison for slices.SortFunc
func compareAddresses(a, b CellAddress) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// RangeAddress is an inclusive rectangle of cells. constructors keep it
// normalized so start <= end on both axes.
type RangeAddress struct {
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// NewRangeAddress builds a normalized range from two corners given in
// any order
func NewRangeAddress(a, b CellAddress) RangeAddress {
	return RangeAddress{
		StartRow:    min(a.Row, b.Row),
		StartColumn: min(a.Column, b.Column),
		EndRow:      max(a.Row, b.Row),
		EndColumn:   max(a.Column, b.Column),
	}
}

func (r RangeAddress) Start() CellAddress {
	return CellAddress{Row: r.StartRow, Column: r.StartColumn}
}

func (r RangeAddress) End() CellAddress {
	return CellAddress{Row: r.EndRow, Column: r.EndColumn}
}

// String renders the range as TopLeft:BottomRight
func (r RangeAddress) String() string {
	return r.Start().String() + ":" + r.End().String()
}

// Contains checks if a cell is within the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

// Intersect returns the overlap of two ranges, and false when they are
// disjoint
func (r RangeAddress) Intersect(other RangeAddress) (RangeAddress, bool) {
	out := RangeAddress{
		StartRow:    max(r.StartRow, other.StartRow),
		StartColumn: max(r.StartColumn, other.StartColumn),
		EndRow:      min(r.EndRow, other.EndRow),
		EndColumn:   min(r.EndColumn, other.EndColumn),
	}
	if out.StartRow > out.EndRow || out.StartColumn > out.EndColumn {
		return RangeAddress{}, false
	}
	return out, true
}

// Size returns the number of cells covered by the range
func (r RangeAddress) Size() int {
	return (int(r.EndRow) - int(r.StartRow) + 1) * (int(r.EndColumn) - int(r.StartColumn) + 1)
}

// Cells returns a lazy row-major iterator over the range
func (r RangeAddress) Cells() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := uint64(r.StartRow); row <= uint64(r.EndRow); row++ {
			for col := uint64(r.StartColumn); col <= uint64(r.EndColumn); col++ {
				if !yield(CellAddress{Row: uint32(row), Column: uint32(col)}) {
					return
				}
			}
		}
	}
}

// ExpandRange lists every address of the range in row-major order
func ExpandRange(r RangeAddress) []CellAddress {
	result := make([]CellAddress, 0, r.Size())
	for addr := range r.Cells() {
		result = append(result, addr)
	}
	return result
}

// ColumnToIndex converts a column label to its zero-based index. labels are
// bijective base-26 where 'A' is the digit 1, so "A" is 0, "Z" is 25 and
// "AA" is 26.
func ColumnToIndex(label string) (int, error) {
	if label == "" {
		return 0, NewSpreadsheetError(ErrorCodeRef, "empty column label")
	}

	index := 0
	for _, ch := range label {
		switch {
		case ch >= 'A' && ch <= 'Z':
			index = index*26 + int(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			index = index*26 + int(ch-'a') + 1
		default:
			return 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid column label: %s", label))
		}
		// seven letters already exceed any uint32 column
		if index > maxColumnIndex+1 {
			return 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("column label out of range: %s", label))
		}
	}
	return index - 1, nil
}

// IndexToColumn converts a zero-based column index to its label
func IndexToColumn(index int) string {
	if index < 0 {
		return ""
	}

	var label []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		label = append(label, byte('A'+(n-1)%26))
	}
	for i, j := 0, len(label)-1; i < j; i, j = i+1, j-1 {
		label[i], label[j] = label[j], label[i]
	}
	return string(label)
}

const (
	maxColumnIndex = 1<<32 - 2
	maxRowNumber   = 1<<32 - 1
)

// ParseAddress parses an A1-style address into zero-based coordinates
func ParseAddress(text string) (CellAddress, error) {
	letterEnd := 0
	for letterEnd < len(text) && isASCIILetter(text[letterEnd]) {
		letterEnd++
	}

	if letterEnd == 0 || letterEnd == len(text) {
		return CellAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", text))
	}

	col, err := ColumnToIndex(text[:letterEnd])
	if err != nil {
		return CellAddress{}, err
	}

	// row is 1-based in notation, but we want 0-based
	rowStr := text[letterEnd:]
	for i := 0; i < len(rowStr); i++ {
		if !isASCIIDigit(rowStr[i]) {
			return CellAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", text))
		}
	}
	rowNum, err := strconv.ParseUint(rowStr, 10, 64)
	if err != nil || rowNum > maxRowNumber {
		return CellAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid row number: %s", rowStr))
	}
	if rowNum < 1 {
		return CellAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("row number must be positive: %d", rowNum))
	}

	return CellAddress{Row: uint32(rowNum - 1), Column: uint32(col)}, nil
}

// ParseRange parses "A1:B2" into a normalized range. a single address is
// accepted as a one-cell range.
func ParseRange(text string) (RangeAddress, error) {
	parts := strings.Split(text, ":")
	switch len(parts) {
	case 1:
		addr, err := ParseAddress(parts[0])
		if err != nil {
			return RangeAddress{}, err
		}
		return NewRangeAddress(addr, addr), nil
	case 2:
		start, err := ParseAddress(parts[0])
		if err != nil {
			return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid start cell in range: %s", parts[0]))
		}
		end, err := ParseAddress(parts[1])
		if err != nil {
			return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid end cell in range: %s", parts[1]))
		}
		return NewRangeAddress(start, end), nil
	default:
		return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid range format: %s", text))
	}
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isASCIIDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
