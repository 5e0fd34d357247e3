package spreadsheet

// FormulaTable stores parsed formulas centrally. cells holding the same
// formula text (the usual result of drag-copy) share one parse. ASTs are
// never mutated once interned; structural edits build new trees.
type FormulaTable struct {
	// core formula storage

	entries map[string]*formulaEntry // formula text -> parse result

	// cell tracking

	formulaAtCell map[CellAddress]string // cell -> formula text (reverse index)
}

type formulaEntry struct {
	ast       ASTNode
	parseErr  *SpreadsheetError
	refCount  int
	cellsUsed map[CellAddress]struct{}
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		entries:       make(map[string]*formulaEntry),
		formulaAtCell: make(map[CellAddress]string),
	}
}

// InternFormula returns the parse of text, parsing it only the first time
// the text is seen, and records that cell uses it. a cell holds at most one
// formula, so any previous one is released first.
func (ft *FormulaTable) InternFormula(text string, cell CellAddress) (ASTNode, *SpreadsheetError) {
	if prev, ok := ft.formulaAtCell[cell]; ok {
		if prev == text {
			entry := ft.entries[text]
			return entry.ast, entry.parseErr
		}
		ft.RemoveCellReference(cell)
	}

	entry, exists := ft.entries[text]
	if !exists {
		entry = &formulaEntry{cellsUsed: make(map[CellAddress]struct{})}
		ast, err := ParseFormula(text)
		if err != nil {
			entry.parseErr = err.(*SpreadsheetError)
		} else {
			entry.ast = ast
		}
		ft.entries[text] = entry
	}

	entry.refCount++
	entry.cellsUsed[cell] = struct{}{}
	ft.formulaAtCell[cell] = text
	return entry.ast, entry.parseErr
}

// RemoveCellReference releases the formula held by cell, dropping the
// parse once no cell uses it
func (ft *FormulaTable) RemoveCellReference(cell CellAddress) {
	text, ok := ft.formulaAtCell[cell]
	if !ok {
		return
	}
	delete(ft.formulaAtCell, cell)

	entry := ft.entries[text]
	delete(entry.cellsUsed, cell)
	entry.refCount--
	if entry.refCount <= 0 {
		delete(ft.entries, text)
	}
}

// GetFormula returns the formula text held by cell
func (ft *FormulaTable) GetFormula(cell CellAddress) (string, bool) {
	text, ok := ft.formulaAtCell[cell]
	return text, ok
}

// CellsUsing returns the cells holding text, row-major
func (ft *FormulaTable) CellsUsing(text string) []CellAddress {
	entry, ok := ft.entries[text]
	if !ok {
		return nil
	}
	return sortedAddresses(entry.cellsUsed)
}

// GetReferenceCount returns how many cells hold text
func (ft *FormulaTable) GetReferenceCount(text string) int {
	if entry, ok := ft.entries[text]; ok {
		return entry.refCount
	}
	return 0
}

// Count returns the number of distinct formulas
func (ft *FormulaTable) Count() int {
	return len(ft.entries)
}

// Clear removes all formulas and cell tracking
func (ft *FormulaTable) Clear() {
	ft.entries = make(map[string]*formulaEntry)
	ft.formulaAtCell = make(map[CellAddress]string)
}
