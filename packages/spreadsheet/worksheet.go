package spreadsheet

import (
	"iter"
	"slices"
)

// ChunkKey represents the key for indexing chunks in Worksheet
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

// Worksheet is the sparse cell store of a grid. cells are partitioned into
// fixed-size chunks so neighbouring cells share an allocation; a chunk is
// dropped as soon as its last cell is removed.
type Worksheet struct {
	chunks      map[ChunkKey]*Chunk // sparse map of chunks indexed by ChunkKey
	totalCells  int                 // stats tracking total number of cells
	cellsByType [4]uint32           // cells by value type for diagnostic use
}

const (
	ChunkRows uint32 = 64                    // rows per chunk - power of 2 for efficient modulo
	ChunkCols uint32 = 32                    // columns per chunk
	ChunkSize        = ChunkRows * ChunkCols // 2048 cells per chunk
)

// Chunk is one ChunkRows x ChunkCols region, stored column-major
type Chunk struct {
	Cells         [ChunkSize]*Cell
	NonEmptyCount int
}

// NewWorksheet creates an empty worksheet
func NewWorksheet() *Worksheet {
	return &Worksheet{chunks: make(map[ChunkKey]*Chunk)}
}

func chunkIndex(addr CellAddress) (ChunkKey, uint32) {
	key := ChunkKey{ChunkRow: addr.Row / ChunkRows, ChunkCol: addr.Column / ChunkCols}
	localRow := addr.Row % ChunkRows
	localCol := addr.Column % ChunkCols
	return key, localCol*ChunkRows + localRow
}

// GetCell retrieves the cell at addr, or nil when it was never written
func (w *Worksheet) GetCell(addr CellAddress) *Cell {
	key, idx := chunkIndex(addr)
	chunk, exists := w.chunks[key]
	if !exists {
		return nil
	}
	return chunk.Cells[idx]
}

// PutCell stores cell at cell.Address, replacing any previous cell there
func (w *Worksheet) PutCell(cell *Cell) {
	key, idx := chunkIndex(cell.Address)
	chunk, exists := w.chunks[key]
	if !exists {
		chunk = &Chunk{}
		w.chunks[key] = chunk
	}

	if prev := chunk.Cells[idx]; prev != nil {
		w.countType(prev.Value.Type, -1)
	} else {
		chunk.NonEmptyCount++
		w.totalCells++
	}
	chunk.Cells[idx] = cell
	w.countType(cell.Value.Type, 1)
}

// SetValue updates the value of a stored cell, keeping the type statistics
// in step
func (w *Worksheet) SetValue(cell *Cell, value Value) {
	w.countType(cell.Value.Type, -1)
	cell.Value = value
	w.countType(value.Type, 1)
}

// RemoveCell removes the cell at addr and returns it, or nil
func (w *Worksheet) RemoveCell(addr CellAddress) *Cell {
	key, idx := chunkIndex(addr)
	chunk, exists := w.chunks[key]
	if !exists {
		return nil
	}

	cell := chunk.Cells[idx]
	if cell == nil {
		return nil
	}

	chunk.Cells[idx] = nil
	chunk.NonEmptyCount--
	w.totalCells--
	w.countType(cell.Value.Type, -1)

	// release the chunk once it holds nothing
	if chunk.NonEmptyCount == 0 {
		delete(w.chunks, key)
	}
	return cell
}

func (w *Worksheet) countType(t CellType, delta int) {
	if int(t) >= len(w.cellsByType) {
		return
	}
	if delta < 0 && w.cellsByType[t] == 0 {
		return
	}
	w.cellsByType[t] = uint32(int(w.cellsByType[t]) + delta)
}

// Addresses returns the address of every stored cell, row-major
func (w *Worksheet) Addresses() []CellAddress {
	addrs := make([]CellAddress, 0, w.totalCells)
	for _, chunk := range w.chunks {
		for _, cell := range chunk.Cells {
			if cell != nil {
				addrs = append(addrs, cell.Address)
			}
		}
	}
	slices.SortFunc(addrs, compareAddresses)
	return addrs
}

// All yields every stored cell, row-major
func (w *Worksheet) All() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for _, addr := range w.Addresses() {
			cell := w.GetCell(addr)
			if cell == nil {
				continue
			}
			if !yield(cell) {
				return
			}
		}
	}
}

// InRange yields the stored cells inside r, row-major. it walks the range
// when that is smaller than the store, otherwise it filters the store.
func (w *Worksheet) InRange(r RangeAddress) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		if r.Size() <= w.totalCells {
			for addr := range r.Cells() {
				if cell := w.GetCell(addr); cell != nil {
					if !yield(cell) {
						return
					}
				}
			}
			return
		}
		for _, addr := range w.Addresses() {
			if !r.Contains(addr) {
				continue
			}
			if cell := w.GetCell(addr); cell != nil {
				if !yield(cell) {
					return
				}
			}
		}
	}
}

// Remap moves every cell under an address mapping. cells the mapping
// drops are returned, row-major.
func (w *Worksheet) Remap(mapping func(CellAddress) (CellAddress, bool)) []*Cell {
	var dropped []*Cell
	var kept []*Cell
	for cell := range w.All() {
		newAddr, ok := mapping(cell.Address)
		if !ok {
			dropped = append(dropped, cell)
			continue
		}
		cell.Address = newAddr
		kept = append(kept, cell)
	}

	w.chunks = make(map[ChunkKey]*Chunk)
	w.totalCells = 0
	w.cellsByType = [4]uint32{}
	for _, cell := range kept {
		w.PutCell(cell)
	}
	return dropped
}

// GetCellTypeCount returns the count of cells holding a value of cellType
func (w *Worksheet) GetCellTypeCount(cellType CellType) uint32 {
	if int(cellType) < len(w.cellsByType) {
		return w.cellsByType[cellType]
	}
	return 0
}

// GetTotalCells returns the total number of stored cells
func (w *Worksheet) GetTotalCells() int {
	return w.totalCells
}

// ChunkCount returns the number of allocated chunks
func (w *Worksheet) ChunkCount() int {
	return len(w.chunks)
}
