package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// decodeInput wraps r so it yields UTF-8
func decodeInput(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unsupported input encoding: %s", encoding)
	}
}

// readCSV maps record i, field j to the cell at row i, column j. empty
// fields are skipped. it also returns the extent the records cover.
func readCSV(r io.Reader, delimiter rune) (map[spreadsheet.CellAddress]string, uint32, uint32, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	cells := make(map[spreadsheet.CellAddress]string)
	var rows, cols uint32
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("reading CSV: %w", err)
		}
		for col, field := range record {
			if field == "" {
				continue
			}
			cells[spreadsheet.CellAddress{Row: rows, Column: uint32(col)}] = field
			cols = max(cols, uint32(col)+1)
		}
		rows++
	}
	return cells, rows, cols, nil
}

// writeCSV prints the used area of g, from A1 to the last materialized row
// and column. with formulas set, cells print their input text instead of
// their value.
func writeCSV(w io.Writer, g *spreadsheet.Grid, delimiter rune, formulas bool) error {
	var rows, cols uint32
	for addr := range g.Cells() {
		rows = max(rows, addr.Row+1)
		cols = max(cols, addr.Column+1)
	}

	writer := csv.NewWriter(w)
	writer.Comma = delimiter
	record := make([]string, cols)
	for row := uint32(0); row < rows; row++ {
		for col := uint32(0); col < cols; col++ {
			cell, err := g.GetCellAt(spreadsheet.CellAddress{Row: row, Column: col})
			if err != nil {
				return err
			}
			if formulas {
				record[col] = cell.RawInput
			} else {
				record[col] = cell.Value.String()
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
