// Package store persists the committed input text of grid cells. it never
// stores values: a grid loaded from a store recalculates everything.
package store

import (
	"fmt"
	"strconv"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// Store is the interface for cell text persistence
type Store interface {
	// Get returns the input text of a cell. ok is false when nothing is stored.
	Get(addr spreadsheet.CellAddress) (text string, ok bool, err error)
	// Put stores the input text of a cell. the empty string deletes it.
	Put(addr spreadsheet.CellAddress, text string) error
	// Delete removes a cell
	Delete(addr spreadsheet.CellAddress) error
	// All returns every stored cell
	All() (map[spreadsheet.CellAddress]string, error)
	// Replace swaps the whole content of the store for cells
	Replace(cells map[spreadsheet.CellAddress]string) error
	// GetMetadata retrieves a metadata value, "" when unset
	GetMetadata(key string) (string, error)
	// SetMetadata stores a metadata value
	SetMetadata(key, value string) error
	// Close releases resources
	Close() error
}

const (
	metaRows = "rows"
	metaCols = "cols"
)

// SaveGrid writes the input text of every cell of g, and its size, to s.
// anything stored before is dropped.
func SaveGrid(s Store, g *spreadsheet.Grid) error {
	cells := make(map[spreadsheet.CellAddress]string)
	for addr, snap := range g.Cells() {
		cells[addr] = snap.RawInput
	}
	if err := s.Replace(cells); err != nil {
		return fmt.Errorf("saving cells: %w", err)
	}

	rows, cols := g.Size()
	if err := s.SetMetadata(metaRows, strconv.FormatUint(uint64(rows), 10)); err != nil {
		return fmt.Errorf("saving grid size: %w", err)
	}
	if err := s.SetMetadata(metaCols, strconv.FormatUint(uint64(cols), 10)); err != nil {
		return fmt.Errorf("saving grid size: %w", err)
	}
	return nil
}

// LoadGrid builds a grid from the content of s. the stored size is used
// when present, otherwise the grid defaults apply. opts are applied after
// the size.
func LoadGrid(s Store, opts ...spreadsheet.Option) (*spreadsheet.Grid, error) {
	rows, err := sizeMetadata(s, metaRows, spreadsheet.DefaultRows)
	if err != nil {
		return nil, err
	}
	cols, err := sizeMetadata(s, metaCols, spreadsheet.DefaultCols)
	if err != nil {
		return nil, err
	}

	cells, err := s.All()
	if err != nil {
		return nil, fmt.Errorf("loading cells: %w", err)
	}

	g := spreadsheet.NewGrid(append([]spreadsheet.Option{spreadsheet.WithSize(rows, cols)}, opts...)...)
	if err := g.Load(cells); err != nil {
		return nil, fmt.Errorf("loading cells: %w", err)
	}
	return g, nil
}

func sizeMetadata(s Store, key string, fallback uint32) (uint32, error) {
	value, err := s.GetMetadata(key)
	if err != nil {
		return 0, fmt.Errorf("loading grid size: %w", err)
	}
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid stored %s: %q", key, value)
	}
	return uint32(n), nil
}
