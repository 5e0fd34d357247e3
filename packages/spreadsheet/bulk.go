package spreadsheet

import (
	"log/slog"
	"strconv"
	"strings"
)

// cellInput is one pending write of a bulk edit
type cellInput struct {
	addr CellAddress
	text string
}

// applyBatch writes every input through the normal pipeline and then runs a
// single recalculation pass over all of them
func (g *Grid) applyBatch(inputs []cellInput) RecalcStats {
	var seeds []CellAddress
	for _, in := range inputs {
		seeds = append(seeds, g.applyInput(in.addr, in.text)...)
	}
	return g.recalculate(seeds)
}

// CopyCell copies the input text of src into dst verbatim, the way a drag
// handle fills a neighbouring cell. formula references are not adjusted.
func (g *Grid) CopyCell(src, dst string) (RecalcStats, error) {
	srcAddr, err := g.resolveAddress(src)
	if err != nil {
		return RecalcStats{}, err
	}
	dstAddr, err := g.resolveAddress(dst)
	if err != nil {
		return RecalcStats{}, err
	}

	text := ""
	if cell := g.storage.worksheet.GetCell(srcAddr); cell != nil {
		text = cell.RawInput
	}
	return g.SetCellInputAt(dstAddr, text)
}

// FindReplace replaces every occurrence of find with replace in the literal
// cells of the range. formula cells are left alone. it returns the number of
// cells changed.
func (g *Grid) FindReplace(rangeText, find, replace string) (int, RecalcStats, error) {
	r, err := g.resolveRange(rangeText)
	if err != nil {
		return 0, RecalcStats{}, err
	}
	if find == "" {
		return 0, RecalcStats{}, NewApplicationError(InvalidArgument, "find text must not be empty")
	}

	var inputs []cellInput
	for cell := range g.storage.worksheet.InRange(r) {
		if cell.IsFormula() || !strings.Contains(cell.RawInput, find) {
			continue
		}
		inputs = append(inputs, cellInput{addr: cell.Address, text: strings.ReplaceAll(cell.RawInput, find, replace)})
	}
	if len(inputs) == 0 {
		return 0, RecalcStats{Generation: g.generation}, nil
	}

	stats := g.applyBatch(inputs)
	g.logger.Debug("find and replace", slog.String("range", r.String()), slog.Int("replaced", len(inputs)))
	return len(inputs), stats, nil
}

// RemoveDuplicateRows clears rows of the range whose rendered values repeat
// a later row of the range; the last occurrence of each row survives. empty
// rows are ignored. it returns the number of rows cleared.
func (g *Grid) RemoveDuplicateRows(rangeText string) (int, RecalcStats, error) {
	r, err := g.resolveRange(rangeText)
	if err != nil {
		return 0, RecalcStats{}, err
	}

	width := int(r.EndColumn-r.StartColumn) + 1
	keys := make(map[uint32]string)
	lastRow := make(map[string]uint32)
	for row := r.StartRow; row <= r.EndRow; row++ {
		parts := make([]string, width)
		empty := true
		for col := r.StartColumn; col <= r.EndColumn; col++ {
			value := g.lookup(CellAddress{Row: row, Column: col})
			if !value.IsEmpty() {
				empty = false
			}
			parts[col-r.StartColumn] = strconv.Quote(value.String())
		}
		if empty {
			continue
		}
		// quoted fields keep "a|b","c" apart from "a","b|c"
		key := strings.Join(parts, ",")
		keys[row] = key
		lastRow[key] = row
	}

	var inputs []cellInput
	removed := 0
	for row := r.StartRow; row <= r.EndRow; row++ {
		key, ok := keys[row]
		if !ok || lastRow[key] == row {
			continue
		}
		removed++
		for col := r.StartColumn; col <= r.EndColumn; col++ {
			addr := CellAddress{Row: row, Column: col}
			if g.storage.worksheet.GetCell(addr) != nil {
				inputs = append(inputs, cellInput{addr: addr})
			}
		}
	}
	if removed == 0 {
		return 0, RecalcStats{Generation: g.generation}, nil
	}

	stats := g.applyBatch(inputs)
	g.logger.Debug("duplicate rows removed", slog.String("range", r.String()), slog.Int("rows", removed))
	return removed, stats, nil
}
