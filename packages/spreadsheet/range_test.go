package spreadsheet

import (
	"slices"
	"testing"
)

func TestColumnLabels(t *testing.T) {
	tests := []struct {
		label string
		index int
	}{
		{"A", 0},
		{"Z", 25},
		{"AA", 26},
		{"AZ", 51},
		{"BA", 52},
		{"ZZ", 701},
		{"AAA", 702},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ColumnToIndex(tt.label)
			if err != nil || got != tt.index {
				t.Errorf("ColumnToIndex(%q) = %d, %v, want %d", tt.label, got, err, tt.index)
			}
			if back := IndexToColumn(tt.index); back != tt.label {
				t.Errorf("IndexToColumn(%d) = %q, want %q", tt.index, back, tt.label)
			}
		})
	}

	if got, err := ColumnToIndex("ab"); err != nil || got != 27 {
		t.Errorf("ColumnToIndex(\"ab\") = %d, %v, want 27", got, err)
	}
	for _, bad := range []string{"", "A1", "ABCDEFGHIJ"} {
		if _, err := ColumnToIndex(bad); err == nil {
			t.Errorf("ColumnToIndex(%q) succeeded, want error", bad)
		}
	}
}

func TestParseAddress(t *testing.T) {
	valid := map[string]CellAddress{
		"A1":    {Row: 0, Column: 0},
		"b2":    {Row: 1, Column: 1},
		"Z100":  {Row: 99, Column: 25},
		"AA10":  {Row: 9, Column: 26},
		"C0010": {Row: 9, Column: 2},
	}
	for text, want := range valid {
		got, err := ParseAddress(text)
		if err != nil || got != want {
			t.Errorf("ParseAddress(%q) = %v, %v, want %v", text, got, err, want)
		}
	}

	for _, text := range []string{"", "A", "1", "1A", "A0", "A-1", "A1B", "$A$1", "A99999999999"} {
		if _, err := ParseAddress(text); err == nil {
			t.Errorf("ParseAddress(%q) succeeded, want error", text)
		}
	}

	if got := (CellAddress{Row: 9, Column: 27}).String(); got != "AB10" {
		t.Errorf("String() = %q, want AB10", got)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("C3:A1")
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if r.String() != "A1:C3" || r.Size() != 9 {
		t.Errorf("ParseRange(C3:A1) = %s with %d cells, want A1:C3 with 9", r, r.Size())
	}

	single, err := ParseRange("B2")
	if err != nil || single.Size() != 1 || single.Start() != single.End() {
		t.Errorf("ParseRange(B2) = %v, %v, want a one-cell range", single, err)
	}

	for _, text := range []string{"A1:", ":B2", "A1:B2:C3", "A1-B2"} {
		if _, err := ParseRange(text); err == nil {
			t.Errorf("ParseRange(%q) succeeded, want error", text)
		}
	}
}

func TestRangeIteration(t *testing.T) {
	r := NewRangeAddress(CellAddress{Row: 1, Column: 1}, CellAddress{Row: 0, Column: 0})

	var got []string
	for a := range r.Cells() {
		got = append(got, a.String())
	}
	if want := []string{"A1", "B1", "A2", "B2"}; !slices.Equal(got, want) {
		t.Errorf("Cells() = %v, want %v", got, want)
	}
	if expanded := ExpandRange(r); len(expanded) != 4 || expanded[3] != (CellAddress{Row: 1, Column: 1}) {
		t.Errorf("ExpandRange = %v, want 4 cells ending in B2", expanded)
	}

	// stopping early must not walk the rest of the range
	count := 0
	for range NewRangeAddress(CellAddress{}, CellAddress{Row: 1 << 20, Column: 1 << 10}).Cells() {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("early break visited %d cells, want 3", count)
	}
}

func TestRangeIntersect(t *testing.T) {
	grid := gridBounds(10, 3)

	tests := []struct {
		in     string
		want   string
		wantOk bool
	}{
		{"A1:B2", "A1:B2", true},
		{"B9:D11", "B9:C10", true},
		{"D1:E5", "", false},
		{"A11:C20", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRange(tt.in)
			if err != nil {
				t.Fatalf("ParseRange failed: %v", err)
			}
			got, ok := r.Intersect(grid)
			if ok != tt.wantOk || (ok && got.String() != tt.want) {
				t.Errorf("Intersect = %s, %v, want %s, %v", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}
