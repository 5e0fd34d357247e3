package spreadsheet

import (
	"fmt"
	"log/slog"
)

type axis int

const (
	axisRow axis = iota
	axisColumn
)

func (a axis) String() string {
	if a == axisRow {
		return "row"
	}
	return "column"
}

// structuralEdit is one row or column insertion or deletion. it maps old
// coordinates on its axis to new ones.
type structuralEdit struct {
	axis   axis
	index  int64 // first inserted index, or the deleted index
	delete bool
}

// coord maps one coordinate along the edit's axis. ok is false when the
// coordinate was deleted.
func (e structuralEdit) coord(c uint32) (uint32, bool) {
	v := int64(c)
	switch {
	case e.delete && v == e.index:
		return 0, false
	case e.delete && v > e.index:
		return uint32(v - 1), true
	case !e.delete && v >= e.index:
		return uint32(v + 1), true
	default:
		return c, true
	}
}

func (e structuralEdit) mapAddress(addr CellAddress) (CellAddress, bool) {
	if e.axis == axisRow {
		row, ok := e.coord(addr.Row)
		return CellAddress{Row: row, Column: addr.Column}, ok
	}
	col, ok := e.coord(addr.Column)
	return CellAddress{Row: addr.Row, Column: col}, ok
}

// mapSpan maps the inclusive span [start, end]. an insertion inside the span
// grows it; a deletion shrinks it, and ok is false when nothing survives.
func (e structuralEdit) mapSpan(start, end uint32) (uint32, uint32, bool) {
	s, en := int64(start), int64(end)
	if e.delete {
		if s > e.index {
			s--
		}
		if en >= e.index {
			en--
		}
		if en < s {
			return 0, 0, false
		}
		return uint32(s), uint32(en), true
	}
	if s >= e.index {
		s++
	}
	if en >= e.index {
		en++
	}
	return uint32(s), uint32(en), true
}

func (e structuralEdit) mapRange(r RangeAddress) (RangeAddress, bool) {
	if e.axis == axisRow {
		start, end, ok := e.mapSpan(r.StartRow, r.EndRow)
		return RangeAddress{StartRow: start, EndRow: end, StartColumn: r.StartColumn, EndColumn: r.EndColumn}, ok
	}
	start, end, ok := e.mapSpan(r.StartColumn, r.EndColumn)
	return RangeAddress{StartRow: r.StartRow, EndRow: r.EndRow, StartColumn: start, EndColumn: end}, ok
}

// rewriteAST returns node with every reference moved by the edit. refs to
// deleted cells, and ranges deleted entirely, become RefErrorNode. the
// input tree is left untouched.
func (e structuralEdit) rewriteAST(node ASTNode) ASTNode {
	switch n := node.(type) {
	case *CellRefNode:
		addr, ok := e.mapAddress(n.Address)
		if !ok {
			return &RefErrorNode{Position: n.Position}
		}
		return &CellRefNode{Address: addr, Position: n.Position}
	case *RangeNode:
		r, ok := e.mapRange(n.Range)
		if !ok {
			return &RefErrorNode{Position: n.Position}
		}
		return &RangeNode{Range: r, Position: n.Position}
	case *BinaryOpNode:
		return &BinaryOpNode{Op: n.Op, Left: e.rewriteAST(n.Left), Right: e.rewriteAST(n.Right), Position: n.Position}
	case *UnaryOpNode:
		return &UnaryOpNode{Op: n.Op, Operand: e.rewriteAST(n.Operand), Position: n.Position}
	case *FunctionCallNode:
		args := make([]ASTNode, len(n.Args))
		for i, arg := range n.Args {
			args[i] = e.rewriteAST(arg)
		}
		return &FunctionCallNode{Name: n.Name, Args: args, Position: n.Position}
	default:
		return node
	}
}

// InsertRow inserts an empty row after afterIndex (zero-based). -1 inserts
// before the first row.
func (g *Grid) InsertRow(afterIndex int) (RecalcStats, error) {
	if afterIndex < -1 || afterIndex >= int(g.rows) {
		return RecalcStats{}, NewApplicationError(OutOfRange, fmt.Sprintf("cannot insert after row index %d of %d", afterIndex, g.rows))
	}
	return g.applyStructural(structuralEdit{axis: axisRow, index: int64(afterIndex) + 1}), nil
}

// DeleteRow removes the row at index (zero-based)
func (g *Grid) DeleteRow(index int) (RecalcStats, error) {
	if index < 0 || index >= int(g.rows) {
		return RecalcStats{}, NewApplicationError(OutOfRange, fmt.Sprintf("row index %d is outside the grid of %d rows", index, g.rows))
	}
	if g.rows == 1 {
		return RecalcStats{}, NewApplicationError(FailedPrecondition, "cannot delete the last row")
	}
	return g.applyStructural(structuralEdit{axis: axisRow, index: int64(index), delete: true}), nil
}

// InsertColumn inserts an empty column after afterIndex (zero-based). -1
// inserts before the first column.
func (g *Grid) InsertColumn(afterIndex int) (RecalcStats, error) {
	if afterIndex < -1 || afterIndex >= int(g.cols) {
		return RecalcStats{}, NewApplicationError(OutOfRange, fmt.Sprintf("cannot insert after column index %d of %d", afterIndex, g.cols))
	}
	return g.applyStructural(structuralEdit{axis: axisColumn, index: int64(afterIndex) + 1}), nil
}

// DeleteColumn removes the column at index (zero-based)
func (g *Grid) DeleteColumn(index int) (RecalcStats, error) {
	if index < 0 || index >= int(g.cols) {
		return RecalcStats{}, NewApplicationError(OutOfRange, fmt.Sprintf("column index %d is outside the grid of %d columns", index, g.cols))
	}
	if g.cols == 1 {
		return RecalcStats{}, NewApplicationError(FailedPrecondition, "cannot delete the last column")
	}
	return g.applyStructural(structuralEdit{axis: axisColumn, index: int64(index), delete: true}), nil
}

// applyStructural moves cells and edges, rewrites formula text that names
// moved or deleted cells, rebuilds cycle marks and recalculates the cells
// whose inputs may have changed
func (g *Grid) applyStructural(e structuralEdit) RecalcStats {
	ws := g.storage.worksheet
	graph := g.storage.dependencyGraph
	formulas := g.storage.formulas

	formerCircular := make([]CellAddress, 0)
	for _, addr := range graph.CircularCells() {
		if mapped, ok := e.mapAddress(addr); ok {
			formerCircular = append(formerCircular, mapped)
		}
	}

	switch {
	case e.axis == axisRow && e.delete:
		g.resize(g.rows-1, g.cols)
	case e.axis == axisRow:
		g.resize(g.rows+1, g.cols)
	case e.delete:
		g.resize(g.rows, g.cols-1)
	default:
		g.resize(g.rows, g.cols+1)
	}

	dropped := ws.Remap(e.mapAddress)
	graph.Remap(e.mapAddress)

	// the formula table tracks cells by address, so it is rebuilt
	formulas.Clear()

	var seeds []CellAddress
	rewritten := 0
	for cell := range ws.All() {
		if !cell.IsFormula() {
			continue
		}
		if cell.AST != nil {
			// user spelling is kept unless a reference actually moved
			text := FormatFormula(e.rewriteAST(cell.AST))
			if text != FormatFormula(cell.AST) {
				cell.RawInput = text
				seeds = append(seeds, cell.Address)
				rewritten++
			}
		}
		cell.AST, cell.ParseErr = formulas.InternFormula(cell.RawInput, cell.Address)
		if cell.ParseErr != nil {
			graph.ClearPrecedents(cell.Address)
			continue
		}
		graph.SetPrecedents(cell.Address, CollectReferences(cell.AST, g.bounds()))
	}

	cycles := graph.RecomputeCircular()
	for _, cycle := range cycles {
		g.logger.Warn("circular reference", addressAttrs("cells", cycle))
		seeds = append(seeds, cycle...)
	}
	seeds = append(seeds, formerCircular...)

	g.logger.Debug("structural edit",
		slog.String("axis", e.axis.String()),
		slog.Int64("index", e.index),
		slog.Bool("delete", e.delete),
		slog.Int("dropped", len(dropped)),
		slog.Int("rewritten", rewritten))

	return g.recalculate(seeds)
}
