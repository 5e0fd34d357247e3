package spreadsheet

// Storage holds the tables a grid mutates together: the cells, the shared
// formula parses and the dependency edges between addresses
type Storage struct {
	worksheet       *Worksheet
	formulas        *FormulaTable
	dependencyGraph *DependencyGraph
}

func newStorage() *Storage {
	return &Storage{
		worksheet:       NewWorksheet(),
		formulas:        NewFormulaTable(),
		dependencyGraph: NewDependencyGraph(),
	}
}
