package spreadsheet

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such
	// as a malformed address.
	InvalidArgument AppErrorCode = 3

	// FailedPrecondition indicates operation was rejected because the
	// grid is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the grid extent.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by the engine have
	// been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

const (
	DefaultRows uint32 = 100
	DefaultCols uint32 = 26
)

// Grid combines cell storage, parsing, dependency tracking and evaluation
// into one API. every mutation runs a complete recalculation pass before it
// returns. a Grid is not safe for concurrent use.
type Grid struct {
	storage    *Storage
	functions  *BuiltInFunctions
	evaluator  *Evaluator
	logger     *slog.Logger
	rows       uint32
	cols       uint32
	generation uint64
}

// Option configures a Grid
type Option func(*Grid)

// WithSize sets the initial extent of the grid
func WithSize(rows, cols uint32) Option {
	return func(g *Grid) {
		g.rows = rows
		g.cols = cols
	}
}

// WithLogger routes engine diagnostics to l. a nil logger keeps the grid
// silent.
func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGrid creates an empty grid, 100 rows by 26 columns unless configured
// otherwise
func NewGrid(opts ...Option) *Grid {
	g := &Grid{
		storage:   newStorage(),
		functions: NewDefaultBuiltInFunctions(),
		logger:    newNopLogger(),
		rows:      DefaultRows,
		cols:      DefaultCols,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.resize(g.rows, g.cols)
	return g
}

func (g *Grid) resize(rows, cols uint32) {
	g.rows = rows
	g.cols = cols
	g.evaluator = NewEvaluator(g.functions, rows, cols)
}

func (g *Grid) bounds() RangeAddress {
	return gridBounds(g.rows, g.cols)
}

// Size returns the grid extent
func (g *Grid) Size() (rows, cols uint32) {
	return g.rows, g.cols
}

// Generation returns the number of the last recalculation pass
func (g *Grid) Generation() uint64 {
	return g.generation
}

// GetDependencyGraph exposes the graph for inspection
func (g *Grid) GetDependencyGraph() *DependencyGraph {
	return g.storage.dependencyGraph
}

// resolveAddress parses an A1 address and checks it lies in the grid
func (g *Grid) resolveAddress(address string) (CellAddress, error) {
	addr, err := ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid address %q: %v", address, err))
	}
	if err := g.checkInGrid(addr); err != nil {
		return CellAddress{}, err
	}
	return addr, nil
}

// resolveRange parses an A1 range and checks it lies in the grid
func (g *Grid) resolveRange(text string) (RangeAddress, error) {
	r, err := ParseRange(strings.TrimSpace(text))
	if err != nil {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid range %q: %v", text, err))
	}
	if !g.bounds().Contains(r.Start()) || !g.bounds().Contains(r.End()) {
		return RangeAddress{}, NewApplicationError(OutOfRange, fmt.Sprintf("range %s is outside the %dx%d grid", r, g.rows, g.cols))
	}
	return r, nil
}

func (g *Grid) checkInGrid(addr CellAddress) error {
	if !g.bounds().Contains(addr) {
		return NewApplicationError(OutOfRange, fmt.Sprintf("cell %s is outside the %dx%d grid", addr, g.rows, g.cols))
	}
	return nil
}

// SetCellInput commits text to the cell at address and recalculates
// everything that depends on it. text starting with "=" is a formula, text
// that reads as a number is a number, "" clears the cell and anything else
// is text.
func (g *Grid) SetCellInput(address string, text string) (RecalcStats, error) {
	addr, err := g.resolveAddress(address)
	if err != nil {
		return RecalcStats{}, err
	}
	return g.SetCellInputAt(addr, text)
}

// SetCellInputAt is SetCellInput by coordinates
func (g *Grid) SetCellInputAt(addr CellAddress, text string) (RecalcStats, error) {
	if err := g.checkInGrid(addr); err != nil {
		return RecalcStats{}, err
	}
	seeds := g.applyInput(addr, text)
	return g.recalculate(seeds), nil
}

// GetCell returns a copy of the cell at address. a cell never written reads
// as empty.
func (g *Grid) GetCell(address string) (CellSnapshot, error) {
	addr, err := g.resolveAddress(address)
	if err != nil {
		return CellSnapshot{}, err
	}
	return g.GetCellAt(addr)
}

// GetCellAt is GetCell by coordinates
func (g *Grid) GetCellAt(addr CellAddress) (CellSnapshot, error) {
	if err := g.checkInGrid(addr); err != nil {
		return CellSnapshot{}, err
	}
	cell := g.storage.worksheet.GetCell(addr)
	if cell == nil {
		return CellSnapshot{Address: addr, Value: EmptyValue}, nil
	}
	return snapshotOf(cell), nil
}

func snapshotOf(cell *Cell) CellSnapshot {
	return CellSnapshot{
		Address:    cell.Address,
		RawInput:   cell.RawInput,
		Value:      cell.Value,
		Generation: cell.Generation,
	}
}

// Cells yields every materialized cell, row-major
func (g *Grid) Cells() iter.Seq2[CellAddress, CellSnapshot] {
	return func(yield func(CellAddress, CellSnapshot) bool) {
		for cell := range g.storage.worksheet.All() {
			if !yield(cell.Address, snapshotOf(cell)) {
				return
			}
		}
	}
}

// Load writes every input and then runs one full recalculation pass. all
// addresses are checked before anything is written.
func (g *Grid) Load(inputs map[CellAddress]string) error {
	addrs := make(map[CellAddress]struct{}, len(inputs))
	for addr := range inputs {
		if err := g.checkInGrid(addr); err != nil {
			return err
		}
		addrs[addr] = struct{}{}
	}

	for _, addr := range sortedAddresses(addrs) {
		g.writeCell(addr, inputs[addr])
	}
	g.logger.Debug("grid loaded", slog.Int("cells", len(inputs)))

	g.RecalculateAll()
	return nil
}

// literalValue classifies non-formula input
func literalValue(text string) Value {
	if num, ok := parseNumeric(text); ok {
		return NumberValue(num)
	}
	return TextValue(text)
}

// writeCell stores text at addr and brings the cell's AST and precedent
// edges in line with it. it does not touch cycle marks or values of other
// cells.
func (g *Grid) writeCell(addr CellAddress, text string) {
	ws := g.storage.worksheet
	graph := g.storage.dependencyGraph
	formulas := g.storage.formulas

	if text == "" {
		ws.RemoveCell(addr)
		formulas.RemoveCellReference(addr)
		graph.ClearPrecedents(addr)
		return
	}

	cell := ws.GetCell(addr)
	if cell == nil {
		cell = &Cell{Address: addr}
		ws.PutCell(cell)
	} else if cell.RawInput == text && (cell.AST != nil || cell.ParseErr != nil || !isFormulaText(text)) {
		// unchanged input keeps its AST and edges
		return
	}
	cell.RawInput = text

	if !isFormulaText(text) {
		formulas.RemoveCellReference(addr)
		cell.AST = nil
		cell.ParseErr = nil
		graph.ClearPrecedents(addr)
		ws.SetValue(cell, literalValue(text))
		return
	}

	cell.AST, cell.ParseErr = formulas.InternFormula(text, addr)
	if cell.ParseErr != nil {
		// a formula that does not parse reads nothing
		graph.ClearPrecedents(addr)
		return
	}
	added, removed := graph.SetPrecedents(addr, CollectReferences(cell.AST, g.bounds()))
	if added > 0 || removed > 0 {
		g.logger.Debug("precedents updated",
			slog.String("cell", addr.String()),
			slog.Int("added", added),
			slog.Int("removed", removed))
	}
}

// applyInput writes one input and refreshes cycle marks around it. it
// returns the cells the next pass must start from: the edited cell and the
// members of any cycle it used to be part of.
func (g *Grid) applyInput(addr CellAddress, text string) []CellAddress {
	graph := g.storage.dependencyGraph

	formerGroup := graph.CircularGroup(addr)
	graph.UnmarkCircular(formerGroup)

	g.writeCell(addr, text)

	seeds := []CellAddress{addr}
	for _, member := range formerGroup {
		if member != addr {
			seeds = append(seeds, member)
		}
	}

	// only a cycle through an edited cell can appear or break
	for _, candidate := range seeds {
		if graph.IsCircular(candidate) {
			continue
		}
		if cycle := graph.CycleAt(candidate); cycle != nil {
			graph.MarkCircular(cycle)
			g.logger.Warn("circular reference", addressAttrs("cells", cycle))
		}
	}
	return seeds
}
