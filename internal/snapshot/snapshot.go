// Package snapshot encodes a grid as a JSON document and restores grids
// from it. a snapshot carries the input text of every cell together with the
// rendered value it had when the snapshot was taken; only the input text is
// read back.
//
//	{
//	  "version": 1,
//	  "rows": 100,
//	  "cols": 26,
//	  "generation": 12,
//	  "cells": {
//	    "A1": {"input": "=B1*2", "value": "4", "type": "number"}
//	  }
//	}
package snapshot

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// Version is the snapshot format version written by Encode
const Version = 1

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Cell is one decoded snapshot entry
type Cell struct {
	Input string
	Value string
	Type  string
}

// Snapshot is a decoded snapshot document
type Snapshot struct {
	Rows       uint32
	Cols       uint32
	Generation uint64
	Cells      map[spreadsheet.CellAddress]Cell
}

// Inputs returns the input text of every cell, ready for Grid.Load
func (s *Snapshot) Inputs() map[spreadsheet.CellAddress]string {
	inputs := make(map[spreadsheet.CellAddress]string, len(s.Cells))
	for addr, cell := range s.Cells {
		inputs[addr] = cell.Input
	}
	return inputs
}

// Encode renders the current state of g
func Encode(g *spreadsheet.Grid) ([]byte, error) {
	rows, cols := g.Size()
	doc := []byte(`{}`)

	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	set("version", Version)
	set("rows", rows)
	set("cols", cols)
	set("generation", g.Generation())
	if err == nil {
		doc, err = sjson.SetRawBytes(doc, "cells", []byte(`{}`))
	}
	for addr, cell := range g.Cells() {
		key := "cells." + addr.String()
		set(key+".input", cell.RawInput)
		set(key+".value", cell.Value.String())
		set(key+".type", cell.Value.Type.String())
	}
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return doc, nil
}

// Decode parses a snapshot document
func Decode(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidSnapshot)
	}
	doc := gjson.ParseBytes(data)

	if v := doc.Get("version"); !v.Exists() || v.Int() != Version {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrInvalidSnapshot, v.Raw)
	}

	snap := &Snapshot{
		Rows:       spreadsheet.DefaultRows,
		Cols:       spreadsheet.DefaultCols,
		Generation: doc.Get("generation").Uint(),
		Cells:      make(map[spreadsheet.CellAddress]Cell),
	}
	if v := doc.Get("rows"); v.Exists() {
		if v.Uint() == 0 || v.Uint() > 1<<32-1 {
			return nil, fmt.Errorf("%w: rows %s", ErrInvalidSnapshot, v.Raw)
		}
		snap.Rows = uint32(v.Uint())
	}
	if v := doc.Get("cols"); v.Exists() {
		if v.Uint() == 0 || v.Uint() > 1<<32-1 {
			return nil, fmt.Errorf("%w: cols %s", ErrInvalidSnapshot, v.Raw)
		}
		snap.Cols = uint32(v.Uint())
	}

	cells := doc.Get("cells")
	if cells.Exists() && !cells.IsObject() {
		return nil, fmt.Errorf("%w: cells must be an object", ErrInvalidSnapshot)
	}

	var decodeErr error
	cells.ForEach(func(key, value gjson.Result) bool {
		addr, err := spreadsheet.ParseAddress(key.String())
		if err != nil {
			decodeErr = fmt.Errorf("%w: cell %q: %v", ErrInvalidSnapshot, key.String(), err)
			return false
		}
		input := value.Get("input")
		if input.Type != gjson.String {
			decodeErr = fmt.Errorf("%w: cell %s has no input text", ErrInvalidSnapshot, addr)
			return false
		}
		snap.Cells[addr] = Cell{
			Input: input.String(),
			Value: value.Get("value").String(),
			Type:  value.Get("type").String(),
		}
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return snap, nil
}

// Restore decodes data into a new grid sized as recorded and recalculates
// it. opts are applied after the size.
func Restore(data []byte, opts ...spreadsheet.Option) (*spreadsheet.Grid, error) {
	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	g := spreadsheet.NewGrid(append([]spreadsheet.Option{spreadsheet.WithSize(snap.Rows, snap.Cols)}, opts...)...)
	if err := g.Load(snap.Inputs()); err != nil {
		return nil, fmt.Errorf("restoring snapshot: %w", err)
	}
	return g, nil
}
