package spreadsheet

import (
	"container/heap"
	"log/slog"
)

// RecalcStats describes one recalculation pass
type RecalcStats struct {
	Generation uint64 // pass number written to every evaluated cell
	Evaluated  int    // cells whose value was recomputed
	Circular   int    // cells forced to #CIRCULAR!
}

// addressHeap is a min-heap of addresses in row-major order. it is the
// ready set of the topological sort, so ties between independent cells
// always break the same way.
type addressHeap []CellAddress

func (h addressHeap) Len() int           { return len(h) }
func (h addressHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h addressHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *addressHeap) Push(x any) {
	*h = append(*h, x.(CellAddress))
}

func (h *addressHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// schedule orders the closure for evaluation with Kahn's algorithm over the
// subgraph the closure induces. cycle members are split out: they are not
// ordered and their out-edges do not hold back their dependents. anything
// left unordered is returned as stuck.
func (g *Grid) schedule(closure map[CellAddress]struct{}) (order, circular, stuck []CellAddress) {
	graph := g.storage.dependencyGraph

	indegree := make(map[CellAddress]int, len(closure))
	ready := &addressHeap{}
	for addr := range closure {
		if graph.IsCircular(addr) {
			circular = append(circular, addr)
			continue
		}
		count := 0
		for _, prec := range graph.DirectPrecedents(addr) {
			if _, inClosure := closure[prec]; !inClosure || graph.IsCircular(prec) {
				continue
			}
			count++
		}
		indegree[addr] = count
		if count == 0 {
			*ready = append(*ready, addr)
		}
	}
	heap.Init(ready)

	for ready.Len() > 0 {
		addr := heap.Pop(ready).(CellAddress)
		order = append(order, addr)
		for _, dep := range graph.DirectDependents(addr) {
			remaining, tracked := indegree[dep]
			if !tracked {
				continue
			}
			remaining--
			indegree[dep] = remaining
			if remaining == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) < len(indegree) {
		for addr, remaining := range indegree {
			if remaining > 0 {
				stuck = append(stuck, addr)
			}
		}
	}
	return order, sortedSlice(circular), sortedSlice(stuck)
}

func sortedSlice(addrs []CellAddress) []CellAddress {
	set := make(map[CellAddress]struct{}, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return sortedAddresses(set)
}

// recalculate runs one pass over the seeds and their transitive dependents
func (g *Grid) recalculate(seeds []CellAddress) RecalcStats {
	g.generation++
	stats := RecalcStats{Generation: g.generation}

	order, circular, stuck := g.schedule(g.storage.dependencyGraph.Closure(seeds...))

	// cycle members get their value before anything that reads them
	for _, addr := range circular {
		if g.forceCircular(addr) {
			stats.Circular++
		}
	}

	for _, addr := range order {
		if g.evaluateCell(addr) {
			stats.Evaluated++
		}
	}

	if len(stuck) > 0 {
		g.logger.Warn("cells left unordered by recalculation", addressAttrs("cells", stuck))
		for _, addr := range stuck {
			if g.forceCircular(addr) {
				stats.Circular++
			}
		}
	}

	g.logger.Debug("recalculated",
		slog.Uint64("generation", stats.Generation),
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("circular", stats.Circular))
	return stats
}

// RecalculateAll recomputes cycle marks from scratch and then every cell
func (g *Grid) RecalculateAll() RecalcStats {
	for _, cycle := range g.storage.dependencyGraph.RecomputeCircular() {
		g.logger.Warn("circular reference", addressAttrs("cells", cycle))
	}
	return g.recalculate(g.storage.worksheet.Addresses())
}

// evaluateCell recomputes one materialized cell. addresses that hold no
// cell, such as a cleared precedent, are skipped.
func (g *Grid) evaluateCell(addr CellAddress) bool {
	ws := g.storage.worksheet
	cell := ws.GetCell(addr)
	if cell == nil {
		return false
	}

	switch {
	case cell.ParseErr != nil:
		ws.SetValue(cell, ErrorValue(cell.ParseErr))
	case cell.AST != nil:
		ws.SetValue(cell, g.evaluator.Evaluate(cell.AST, g.lookup))
	}
	// literal values are set when written
	cell.Generation = g.generation
	return true
}

func (g *Grid) forceCircular(addr CellAddress) bool {
	ws := g.storage.worksheet
	cell := ws.GetCell(addr)
	if cell == nil {
		return false
	}
	ws.SetValue(cell, NewErrorValue(ErrorCodeCircular, "circular reference"))
	cell.Generation = g.generation
	return true
}

// lookup is the evaluator's view of the grid
func (g *Grid) lookup(addr CellAddress) Value {
	if cell := g.storage.worksheet.GetCell(addr); cell != nil {
		return cell.Value
	}
	return EmptyValue
}
