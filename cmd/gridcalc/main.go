package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vogtb/gridcalc/internal/snapshot"
	"github.com/vogtb/gridcalc/internal/store"
	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

var version = "dev"

type opKind int

const (
	opSet opKind = iota
	opCopy
	opInsertRow
	opDeleteRow
	opInsertColumn
	opDeleteColumn
	opReplace
	opDedupe
)

// operation is one edit requested on the command line. edits run in the
// order they were given.
type operation struct {
	kind opKind
	arg  string
}

type options struct {
	inputPath     string
	inputEncoding string
	snapshotIn    string
	snapshotOut   string
	dbPath        string
	rows          uint
	cols          uint
	delimiter     rune
	formulas      bool
	quiet         bool
	ops           []operation
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options

	fs := flag.NewFlagSet("gridcalc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := fs.Bool("version", false, "show version")
	verbose := fs.Bool("v", false, "log every recalculation to stderr")
	fs.StringVar(&opts.inputPath, "in", "", "CSV file to load, - for stdin")
	fs.StringVar(&opts.inputEncoding, "encoding", "utf-8", "CSV input encoding: utf-8, latin1 or cp1252")
	fs.StringVar(&opts.snapshotIn, "load", "", "JSON snapshot to load")
	fs.StringVar(&opts.snapshotOut, "save", "", "write a JSON snapshot to this file")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite database; loaded when no other input is given and saved on exit")
	fs.UintVar(&opts.rows, "rows", 0, "grid rows for CSV, snapshot and new grids (default 100, or enough for the input)")
	fs.UintVar(&opts.cols, "cols", 0, "grid columns for CSV, snapshot and new grids (default 26, or enough for the input)")
	delimiterFlag := fs.String("d", ",", "CSV delimiter")
	fs.BoolVar(&opts.formulas, "formulas", false, "print cell input instead of values")
	fs.BoolVar(&opts.quiet, "q", false, "do not print the grid")

	addOp := func(name string, kind opKind, usage string) {
		fs.Func(name, usage, func(value string) error {
			opts.ops = append(opts.ops, operation{kind: kind, arg: value})
			return nil
		})
	}
	addOp("set", opSet, "set a cell: ADDR=TEXT (repeatable)")
	addOp("copy", opCopy, "copy cell input: SRC=DST (repeatable)")
	addOp("insert-row", opInsertRow, "insert a row after row N, 0 for the top (repeatable)")
	addOp("delete-row", opDeleteRow, "delete row N (repeatable)")
	addOp("insert-col", opInsertColumn, "insert a column after column C, 0 for the left edge (repeatable)")
	addOp("delete-col", opDeleteColumn, "delete column C (repeatable)")
	addOp("replace", opReplace, "replace text in literal cells: RANGE=FIND=REPLACEMENT (repeatable)")
	addOp("dedupe", opDedupe, "clear duplicate rows of RANGE (repeatable)")

	fs.Usage = func() {
		fmt.Fprint(stderr, usageText())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument: %s\n", fs.Arg(0))
		return 2
	}
	if opts.inputPath != "" && opts.snapshotIn != "" {
		fmt.Fprintln(stderr, "cannot combine -in with -load")
		return 2
	}
	if opts.rows > 1<<32-1 || opts.cols > 1<<32-1 {
		fmt.Fprintln(stderr, "grid size out of range")
		return 2
	}

	delimiter, err := parseDelimiter(*delimiterFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid delimiter: %v\n", err)
		return 2
	}
	opts.delimiter = delimiter

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := execute(opts, stdin, stdout, logger); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func usageText() string {
	return `usage: gridcalc [flags]

Loads a grid from CSV, a JSON snapshot or a SQLite database, applies the
edits given on the command line in order and prints the evaluated grid as
CSV.

`
}

func parseDelimiter(value string) (rune, error) {
	if value == `\t` || value == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError || size != len(value) {
		return 0, fmt.Errorf("delimiter must be a single character: %q", value)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter not allowed: %q", value)
	}
	return r, nil
}

func execute(opts options, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	var db store.Store
	if opts.dbPath != "" {
		s, err := store.NewSQLite(opts.dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()
		db = s
	}

	g, err := loadGrid(opts, stdin, db, logger)
	if err != nil {
		return err
	}

	for _, op := range opts.ops {
		if err := apply(g, op, logger); err != nil {
			return err
		}
	}

	if db != nil {
		if err := store.SaveGrid(db, g); err != nil {
			return err
		}
	}
	if opts.snapshotOut != "" {
		data, err := snapshot.Encode(g)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.snapshotOut, data, 0o644); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if opts.quiet {
		return nil
	}
	return writeCSV(stdout, g, opts.delimiter, opts.formulas)
}

// loadGrid builds the starting grid. -in and -load take precedence over the
// database; with no source at all the grid starts empty. a database keeps the
// size it was saved with.
func loadGrid(opts options, stdin io.Reader, db store.Store, logger *slog.Logger) (*spreadsheet.Grid, error) {
	// -rows and -cols replace the size a source would otherwise get
	size := func(rows, cols uint32) (uint32, uint32) {
		if opts.rows > 0 {
			rows = uint32(opts.rows)
		}
		if opts.cols > 0 {
			cols = uint32(opts.cols)
		}
		return rows, cols
	}
	sized := func(rows, cols uint32) []spreadsheet.Option {
		rows, cols = size(rows, cols)
		return []spreadsheet.Option{spreadsheet.WithSize(rows, cols), spreadsheet.WithLogger(logger)}
	}

	switch {
	case opts.inputPath != "":
		r := stdin
		if opts.inputPath != "-" {
			f, err := os.Open(opts.inputPath)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		decoded, err := decodeInput(r, opts.inputEncoding)
		if err != nil {
			return nil, err
		}
		cells, rows, cols, err := readCSV(decoded, opts.delimiter)
		if err != nil {
			return nil, err
		}
		// the grid always grows to fit the records, whatever size was asked for
		gridRows, gridCols := size(spreadsheet.DefaultRows, spreadsheet.DefaultCols)
		g := spreadsheet.NewGrid(spreadsheet.WithSize(max(rows, gridRows), max(cols, gridCols)), spreadsheet.WithLogger(logger))
		if err := g.Load(cells); err != nil {
			return nil, err
		}
		return g, nil

	case opts.snapshotIn != "":
		data, err := os.ReadFile(opts.snapshotIn)
		if err != nil {
			return nil, err
		}
		snap, err := snapshot.Decode(data)
		if err != nil {
			return nil, err
		}
		g := spreadsheet.NewGrid(sized(snap.Rows, snap.Cols)...)
		if err := g.Load(snap.Inputs()); err != nil {
			return nil, err
		}
		return g, nil

	case db != nil:
		return store.LoadGrid(db, spreadsheet.WithLogger(logger))

	default:
		return spreadsheet.NewGrid(sized(spreadsheet.DefaultRows, spreadsheet.DefaultCols)...), nil
	}
}

func apply(g *spreadsheet.Grid, op operation, logger *slog.Logger) error {
	var (
		stats spreadsheet.RecalcStats
		err   error
	)

	switch op.kind {
	case opSet:
		addr, text, ok := strings.Cut(op.arg, "=")
		if !ok {
			return fmt.Errorf("-set %q: expected ADDR=TEXT", op.arg)
		}
		stats, err = g.SetCellInput(addr, text)

	case opCopy:
		src, dst, ok := strings.Cut(op.arg, "=")
		if !ok {
			return fmt.Errorf("-copy %q: expected SRC=DST", op.arg)
		}
		stats, err = g.CopyCell(src, dst)

	case opInsertRow, opDeleteRow:
		n, perr := strconv.Atoi(op.arg)
		if perr != nil {
			return fmt.Errorf("invalid row number %q", op.arg)
		}
		if op.kind == opInsertRow {
			stats, err = g.InsertRow(n - 1)
		} else {
			stats, err = g.DeleteRow(n - 1)
		}

	case opInsertColumn, opDeleteColumn:
		index, perr := parseColumn(op.arg)
		if perr != nil {
			return perr
		}
		if op.kind == opInsertColumn {
			stats, err = g.InsertColumn(index)
		} else {
			stats, err = g.DeleteColumn(index)
		}

	case opReplace:
		parts := strings.SplitN(op.arg, "=", 3)
		if len(parts) != 3 {
			return fmt.Errorf("-replace %q: expected RANGE=FIND=REPLACEMENT", op.arg)
		}
		var n int
		n, stats, err = g.FindReplace(parts[0], parts[1], parts[2])
		if err == nil {
			logger.Info("replaced text", slog.String("range", parts[0]), slog.Int("cells", n))
		}

	case opDedupe:
		var n int
		n, stats, err = g.RemoveDuplicateRows(op.arg)
		if err == nil {
			logger.Info("removed duplicate rows", slog.String("range", op.arg), slog.Int("rows", n))
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op.arg, err)
	}
	logger.Debug("applied edit",
		slog.String("arg", op.arg),
		slog.Uint64("generation", stats.Generation),
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("circular", stats.Circular))
	return nil
}

// parseColumn accepts a column label or a one-based column number and
// returns the zero-based index. "0" maps to -1, the position before the
// first column.
func parseColumn(text string) (int, error) {
	if n, err := strconv.Atoi(text); err == nil {
		return n - 1, nil
	}
	index, err := spreadsheet.ColumnToIndex(text)
	if err != nil {
		return 0, fmt.Errorf("invalid column %q", text)
	}
	return index, nil
}
