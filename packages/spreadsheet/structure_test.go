package spreadsheet

import (
	"testing"
)

func insertRow(after int) func(g *Grid) (RecalcStats, error) {
	return func(g *Grid) (RecalcStats, error) { return g.InsertRow(after) }
}

func deleteRow(index int) func(g *Grid) (RecalcStats, error) {
	return func(g *Grid) (RecalcStats, error) { return g.DeleteRow(index) }
}

func insertColumn(after int) func(g *Grid) (RecalcStats, error) {
	return func(g *Grid) (RecalcStats, error) { return g.InsertColumn(after) }
}

func deleteColumn(index int) func(g *Grid) (RecalcStats, error) {
	return func(g *Grid) (RecalcStats, error) { return g.DeleteColumn(index) }
}

func assertSize(rows, cols uint32) func(g *Grid, t *testing.T) {
	return func(g *Grid, t *testing.T) {
		if r, c := g.Size(); r != rows || c != cols {
			t.Errorf("Size() = %d x %d, want %d x %d", r, c, rows, cols)
		}
	}
}

func TestDeleteRow(t *testing.T) {
	NewGridTestCase(t, "Deleted reference becomes #REF!").
		Set("A1", "5").
		Set("A3", "=A1*2").
		AssertCellEq("A3", 10).
		Do("DeleteRow", deleteRow(0)).
		AssertRawInput("A2", "=#REF!*2").
		AssertCellErr("A2", ErrorCodeRef).
		AssertCellEmpty("A3").
		AssertGridFn(assertSize(99, 26)).
		End()

	NewGridTestCase(t, "Unrelated row shifts references").
		Set("A1", "5").
		Set("A2", "x").
		Set("A3", "=A1+A5").
		Set("A5", "10").
		AssertCellEq("A3", 15).
		Do("DeleteRow", deleteRow(1)).
		AssertRawInput("A2", "=A1+A4").
		AssertCellEq("A2", 15).
		AssertCellEq("A4", 10).
		AssertCellEq("A1", 5).
		AssertCellEmpty("A5").
		Set("A4", "20").
		AssertCellEq("A2", 25).
		End()

	NewGridTestCase(t, "Range shrinks").
		Set("A1", "1").
		Set("A2", "2").
		Set("A3", "3").
		Set("B1", "=SUM(A1:A3)").
		Do("DeleteRow", deleteRow(1)).
		AssertRawInput("B1", "=SUM(A1:A2)").
		AssertCellEq("B1", 4).
		End()

	NewGridTestCase(t, "Range deleted entirely").
		Set("A1", "1").
		Set("B2", "=SUM(A1:A1)").
		AssertCellEq("B2", 1).
		Do("DeleteRow", deleteRow(0)).
		AssertRawInput("B1", "=SUM(#REF!)").
		AssertCellErr("B1", ErrorCodeRef).
		End()

	NewGridTestCase(t, "Untouched formulas keep their spelling").
		Set("B1", "=sum( 1 , 2 )").
		Set("A5", "x").
		Do("DeleteRow", deleteRow(3)).
		AssertRawInput("B1", "=sum( 1 , 2 )").
		AssertCellEq("B1", 3).
		AssertCellEq("A4", "x").
		End()

	NewGridTestCase(t, "Deleting a row breaks a cycle").
		Set("A1", "=A2").
		Set("A2", "=A1").
		AssertCellErr("A1", ErrorCodeCircular).
		Do("DeleteRow", deleteRow(1)).
		AssertCellErr("A1", ErrorCodeRef).
		AssertGridFn(func(g *Grid, t *testing.T) {
			if cells := g.GetDependencyGraph().CircularCells(); len(cells) != 0 {
				t.Errorf("circular cells = %v, want none", cells)
			}
		}).
		End()

	NewGridTestCase(t, "Invalid row index").
		Try(deleteRow(100)).
		ExpectAppError(OutOfRange).
		Try(deleteRow(-1)).
		ExpectAppError(OutOfRange).
		End()

	NewGridTestCase(t, "Last row", WithSize(1, 3)).
		Try(deleteRow(0)).
		ExpectAppError(FailedPrecondition).
		End()
}

func TestInsertRow(t *testing.T) {
	NewGridTestCase(t, "Insertion inside a range expands it").
		Set("A1", "1").
		Set("A2", "2").
		Set("A3", "=SUM(A1:A2)").
		Do("InsertRow", insertRow(0)).
		AssertRawInput("A4", "=SUM(A1:A3)").
		AssertCellEq("A4", 3).
		AssertCellEmpty("A2").
		AssertCellEq("A3", 2).
		Set("A2", "10").
		AssertCellEq("A4", 13).
		AssertGridFn(assertSize(101, 26)).
		End()

	NewGridTestCase(t, "Insertion before the first row").
		Set("A1", "1").
		Set("B1", "=A1*2").
		Do("InsertRow", insertRow(-1)).
		AssertCellEmpty("A1").
		AssertCellEq("A2", 1).
		AssertRawInput("B2", "=A2*2").
		AssertCellEq("B2", 2).
		End()

	NewGridTestCase(t, "Insertion below every reference").
		Set("A1", "1").
		Set("A2", "=A1+1").
		Do("InsertRow", insertRow(5)).
		AssertRawInput("A2", "=A1+1").
		AssertCellEq("A2", 2).
		End()

	NewGridTestCase(t, "Cycles survive").
		Set("A1", "=A2").
		Set("A2", "=A1").
		Do("InsertRow", insertRow(-1)).
		AssertRawInput("A2", "=A3").
		AssertRawInput("A3", "=A2").
		AssertCellErr("A2", ErrorCodeCircular).
		AssertCellErr("A3", ErrorCodeCircular).
		Set("A3", "4").
		AssertCellEq("A2", 4).
		End()

	NewGridTestCase(t, "Invalid row index").
		Try(insertRow(-2)).
		ExpectAppError(OutOfRange).
		Try(insertRow(100)).
		ExpectAppError(OutOfRange).
		End()
}

func TestColumnEdits(t *testing.T) {
	NewGridTestCase(t, "Insert column").
		Set("A1", "2").
		Set("B1", "=A1*3").
		Do("InsertColumn", insertColumn(-1)).
		AssertCellEq("B1", 2).
		AssertRawInput("C1", "=B1*3").
		AssertCellEq("C1", 6).
		AssertGridFn(assertSize(100, 27)).
		End()

	NewGridTestCase(t, "Delete column inside a range").
		Set("A1", "1").
		Set("B1", "2").
		Set("C1", "3").
		Set("D1", "=SUM(A1:C1)").
		AssertCellEq("D1", 6).
		Do("DeleteColumn", deleteColumn(1)).
		AssertRawInput("C1", "=SUM(A1:B1)").
		AssertCellEq("C1", 4).
		AssertCellEmpty("D1").
		AssertGridFn(assertSize(100, 25)).
		End()

	NewGridTestCase(t, "Delete referenced column").
		Set("B2", "7").
		Set("A1", "=B2+1").
		Do("DeleteColumn", deleteColumn(1)).
		AssertRawInput("A1", "=#REF!+1").
		AssertCellErr("A1", ErrorCodeRef).
		End()

	NewGridTestCase(t, "Invalid column index").
		Try(insertColumn(26)).
		ExpectAppError(OutOfRange).
		Try(deleteColumn(26)).
		ExpectAppError(OutOfRange).
		End()

	NewGridTestCase(t, "Last column", WithSize(3, 1)).
		Try(deleteColumn(0)).
		ExpectAppError(FailedPrecondition).
		End()
}

func TestStructuralEditMapping(t *testing.T) {
	del := structuralEdit{axis: axisRow, index: 2, delete: true}
	ins := structuralEdit{axis: axisColumn, index: 1}

	tests := []struct {
		name   string
		edit   structuralEdit
		in     CellAddress
		want   CellAddress
		wantOk bool
	}{
		{"above deleted row", del, CellAddress{Row: 1, Column: 4}, CellAddress{Row: 1, Column: 4}, true},
		{"deleted row", del, CellAddress{Row: 2, Column: 4}, CellAddress{}, false},
		{"below deleted row", del, CellAddress{Row: 3, Column: 4}, CellAddress{Row: 2, Column: 4}, true},
		{"left of insertion", ins, CellAddress{Row: 5, Column: 0}, CellAddress{Row: 5, Column: 0}, true},
		{"at insertion", ins, CellAddress{Row: 5, Column: 1}, CellAddress{Row: 5, Column: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.edit.mapAddress(tt.in)
			if ok != tt.wantOk || (ok && got != tt.want) {
				t.Errorf("mapAddress(%s) = %s, %v, want %s, %v", tt.in, got, ok, tt.want, tt.wantOk)
			}
		})
	}

	r := RangeAddress{StartRow: 2, EndRow: 2, StartColumn: 0, EndColumn: 3}
	if _, ok := del.mapRange(r); ok {
		t.Errorf("mapRange(%s) survived deletion of its only row", r)
	}
	r = RangeAddress{StartRow: 0, EndRow: 4, StartColumn: 0, EndColumn: 0}
	if got, ok := del.mapRange(r); !ok || got.EndRow != 3 || got.StartRow != 0 {
		t.Errorf("mapRange(%s) = %s, %v, want A1:A4", r, got, ok)
	}
}
