package spreadsheet

import "slices"

// DependencyNode holds the edges of one address. edges are keyed by address
// value, so a node never points at another node or at a Cell.
type DependencyNode struct {
	CellPrecedents map[CellAddress]struct{} // cells this cell reads
	CellDependents map[CellAddress]struct{} // cells that read this cell
}

// DependencyGraph manages precedent -> dependent edges between addresses and
// the set of addresses known to sit on a cycle
type DependencyGraph struct {
	nodes    map[CellAddress]*DependencyNode
	circular map[CellAddress][]CellAddress // member -> its sorted cycle group
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[CellAddress]*DependencyNode),
		circular: make(map[CellAddress][]CellAddress),
	}
}

func (dg *DependencyGraph) getOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &DependencyNode{
		CellPrecedents: make(map[CellAddress]struct{}),
		CellDependents: make(map[CellAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// cleanupNodeIfEmpty removes a node once it has no edge left
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if len(node.CellPrecedents) > 0 || len(node.CellDependents) > 0 {
		return
	}
	delete(dg.nodes, addr)
}

// addEdge records that dependent reads precedent
func (dg *DependencyGraph) addEdge(precedent, dependent CellAddress) {
	dg.getOrCreateNode(dependent).CellPrecedents[precedent] = struct{}{}
	dg.getOrCreateNode(precedent).CellDependents[dependent] = struct{}{}
}

func (dg *DependencyGraph) removeEdge(precedent, dependent CellAddress) {
	if node, ok := dg.nodes[dependent]; ok {
		delete(node.CellPrecedents, precedent)
	}
	if node, ok := dg.nodes[precedent]; ok {
		delete(node.CellDependents, dependent)
	}
	dg.cleanupNodeIfEmpty(dependent)
	dg.cleanupNodeIfEmpty(precedent)
}

// SetPrecedents replaces the precedent set of cell with refs, touching only
// the edges that differ. calling it twice with the same set is a no-op.
// it returns the number of edges added and removed.
func (dg *DependencyGraph) SetPrecedents(cell CellAddress, refs []CellAddress) (added, removed int) {
	next := make(map[CellAddress]struct{}, len(refs))
	for _, ref := range refs {
		next[ref] = struct{}{}
	}

	if node, ok := dg.nodes[cell]; ok {
		var stale []CellAddress
		for prev := range node.CellPrecedents {
			if _, keep := next[prev]; !keep {
				stale = append(stale, prev)
			}
		}
		for _, prev := range stale {
			dg.removeEdge(prev, cell)
			removed++
		}
	}

	for ref := range next {
		if node, ok := dg.nodes[cell]; ok {
			if _, exists := node.CellPrecedents[ref]; exists {
				continue
			}
		}
		dg.addEdge(ref, cell)
		added++
	}
	return added, removed
}

// ClearPrecedents drops every edge into cell. edges out of it are kept,
// dependents still read the address even when it is empty.
func (dg *DependencyGraph) ClearPrecedents(cell CellAddress) {
	dg.SetPrecedents(cell, nil)
}

// RemoveNode drops every edge touching addr, in both directions
func (dg *DependencyGraph) RemoveNode(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for prec := range node.CellPrecedents {
		if other, ok := dg.nodes[prec]; ok {
			delete(other.CellDependents, addr)
			dg.cleanupNodeIfEmpty(prec)
		}
	}
	for dep := range node.CellDependents {
		if other, ok := dg.nodes[dep]; ok {
			delete(other.CellPrecedents, addr)
			dg.cleanupNodeIfEmpty(dep)
		}
	}
	delete(dg.nodes, addr)
	delete(dg.circular, addr)
}

// Remap rebuilds every edge under an address mapping. an edge whose end is
// dropped by mapping (ok == false) disappears. circular marks are cleared
// and must be recomputed by the caller.
func (dg *DependencyGraph) Remap(mapping func(CellAddress) (CellAddress, bool)) {
	old := dg.nodes
	dg.nodes = make(map[CellAddress]*DependencyNode, len(old))
	dg.circular = make(map[CellAddress][]CellAddress)

	for dependent, node := range old {
		newDependent, ok := mapping(dependent)
		if !ok {
			continue
		}
		for precedent := range node.CellPrecedents {
			if newPrecedent, ok := mapping(precedent); ok {
				dg.addEdge(newPrecedent, newDependent)
			}
		}
	}
}

// DirectDependents returns the cells that read addr, row-major
func (dg *DependencyGraph) DirectDependents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	return sortedAddresses(node.CellDependents)
}

// DirectPrecedents returns the cells addr reads, row-major
func (dg *DependencyGraph) DirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	return sortedAddresses(node.CellPrecedents)
}

// HasEdge reports whether dependent reads precedent
func (dg *DependencyGraph) HasEdge(precedent, dependent CellAddress) bool {
	node, exists := dg.nodes[dependent]
	if !exists {
		return false
	}
	_, ok := node.CellPrecedents[precedent]
	return ok
}

// Closure returns the seeds together with all their transitive dependents
func (dg *DependencyGraph) Closure(seeds ...CellAddress) map[CellAddress]struct{} {
	visited := make(map[CellAddress]struct{}, len(seeds))
	stack := slices.Clone(seeds)
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[addr]; seen {
			continue
		}
		visited[addr] = struct{}{}
		if node, ok := dg.nodes[addr]; ok {
			for dep := range node.CellDependents {
				if _, seen := visited[dep]; !seen {
					stack = append(stack, dep)
				}
			}
		}
	}
	return visited
}

// reachable collects every address reachable from start along next,
// excluding start itself unless a path leads back to it
func (dg *DependencyGraph) reachable(start CellAddress, next func(*DependencyNode) map[CellAddress]struct{}) map[CellAddress]struct{} {
	visited := make(map[CellAddress]struct{})
	stack := []CellAddress{start}
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := dg.nodes[addr]
		if !ok {
			continue
		}
		for neighbor := range next(node) {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = struct{}{}
			stack = append(stack, neighbor)
		}
	}
	return visited
}

// CycleAt returns the strongly connected component containing addr when it
// is a cycle (two or more members, or a self reference), row-major. it
// returns nil when addr is not on a cycle.
func (dg *DependencyGraph) CycleAt(addr CellAddress) []CellAddress {
	forward := dg.reachable(addr, func(n *DependencyNode) map[CellAddress]struct{} { return n.CellDependents })
	if _, loops := forward[addr]; !loops {
		return nil
	}
	backward := dg.reachable(addr, func(n *DependencyNode) map[CellAddress]struct{} { return n.CellPrecedents })

	members := make(map[CellAddress]struct{})
	for a := range forward {
		if _, ok := backward[a]; ok {
			members[a] = struct{}{}
		}
	}
	members[addr] = struct{}{}
	return sortedAddresses(members)
}

// Cycles returns every cyclic strongly connected component of the graph,
// each sorted row-major, ordered by their first member
func (dg *DependencyGraph) Cycles() [][]CellAddress {
	t := &tarjan{
		graph:   dg,
		index:   make(map[CellAddress]int),
		lowlink: make(map[CellAddress]int),
		onStack: make(map[CellAddress]bool),
	}

	addrs := make([]CellAddress, 0, len(dg.nodes))
	for addr := range dg.nodes {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, compareAddresses)

	for _, addr := range addrs {
		if _, visited := t.index[addr]; !visited {
			t.strongConnect(addr)
		}
	}

	slices.SortFunc(t.cycles, func(a, b []CellAddress) int {
		return compareAddresses(a[0], b[0])
	})
	return t.cycles
}

type tarjan struct {
	graph   *DependencyGraph
	counter int
	index   map[CellAddress]int
	lowlink map[CellAddress]int
	onStack map[CellAddress]bool
	stack   []CellAddress
	cycles  [][]CellAddress
}

func (t *tarjan) strongConnect(v CellAddress) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	selfLoop := false
	if node, ok := t.graph.nodes[v]; ok {
		for _, w := range sortedAddresses(node.CellDependents) {
			if w == v {
				selfLoop = true
			}
			if _, visited := t.index[w]; !visited {
				t.strongConnect(w)
				t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
			} else if t.onStack[w] {
				t.lowlink[v] = min(t.lowlink[v], t.index[w])
			}
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}

	var component []CellAddress
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	if len(component) > 1 || selfLoop {
		slices.SortFunc(component, compareAddresses)
		t.cycles = append(t.cycles, component)
	}
}

// MarkCircular records members as one cycle group
func (dg *DependencyGraph) MarkCircular(members []CellAddress) {
	group := slices.Clone(members)
	slices.SortFunc(group, compareAddresses)
	for _, addr := range group {
		dg.circular[addr] = group
	}
}

// UnmarkCircular clears the circular mark of members
func (dg *DependencyGraph) UnmarkCircular(members []CellAddress) {
	for _, addr := range members {
		delete(dg.circular, addr)
	}
}

// IsCircular reports whether addr is marked as a cycle member
func (dg *DependencyGraph) IsCircular(addr CellAddress) bool {
	_, ok := dg.circular[addr]
	return ok
}

// CircularGroup returns the cycle group addr belongs to, or nil
func (dg *DependencyGraph) CircularGroup(addr CellAddress) []CellAddress {
	return slices.Clone(dg.circular[addr])
}

// CircularCells returns every marked cycle member, row-major
func (dg *DependencyGraph) CircularCells() []CellAddress {
	set := make(map[CellAddress]struct{}, len(dg.circular))
	for addr := range dg.circular {
		set[addr] = struct{}{}
	}
	return sortedAddresses(set)
}

// RecomputeCircular throws away all circular marks and marks every cycle
// found by a full scan
func (dg *DependencyGraph) RecomputeCircular() [][]CellAddress {
	dg.circular = make(map[CellAddress][]CellAddress)
	cycles := dg.Cycles()
	for _, cycle := range cycles {
		dg.MarkCircular(cycle)
	}
	return cycles
}

// NodeCount returns the number of addresses with at least one edge
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// EdgeCount returns the number of precedent -> dependent edges
func (dg *DependencyGraph) EdgeCount() int {
	count := 0
	for _, node := range dg.nodes {
		count += len(node.CellPrecedents)
	}
	return count
}

func sortedAddresses(set map[CellAddress]struct{}) []CellAddress {
	result := make([]CellAddress, 0, len(set))
	for addr := range set {
		result = append(result, addr)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}
