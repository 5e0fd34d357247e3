package store

import (
	"os"
	"testing"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
)

func tempSQLite(t *testing.T) (string, *SQLite) {
	t.Helper()
	f, err := os.CreateTemp("", "gridcalc-test-*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	return path, s
}

func exerciseStore(t *testing.T, s Store) {
	a1 := spreadsheet.CellAddress{}
	b2 := spreadsheet.CellAddress{Row: 1, Column: 1}

	if err := s.Put(a1, "=B2*2"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(b2, "21"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(b2, "4"); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}

	got, ok, err := s.Get(b2)
	if err != nil || !ok || got != "4" {
		t.Errorf("Get(B2) = %q, %v, %v, want \"4\"", got, ok, err)
	}

	if err := s.Put(a1, ""); err != nil {
		t.Fatalf("Put empty failed: %v", err)
	}
	if _, ok, _ := s.Get(a1); ok {
		t.Errorf("empty Put did not delete A1")
	}

	if err := s.Delete(b2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	all, err := s.All()
	if err != nil || len(all) != 0 {
		t.Errorf("All() = %v, %v, want empty", all, err)
	}

	if err := s.Replace(map[spreadsheet.CellAddress]string{a1: "x", b2: "", {Row: 5}: "=A1"}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	all, err = s.All()
	if err != nil || len(all) != 2 || all[a1] != "x" || all[spreadsheet.CellAddress{Row: 5}] != "=A1" {
		t.Errorf("All() after Replace = %v, %v", all, err)
	}

	if err := s.SetMetadata("k", "v"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if v, err := s.GetMetadata("k"); err != nil || v != "v" {
		t.Errorf("GetMetadata = %q, %v, want v", v, err)
	}
	if v, err := s.GetMetadata("missing"); err != nil || v != "" {
		t.Errorf("GetMetadata(missing) = %q, %v, want empty", v, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	_, s := tempSQLite(t)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLitePersistence(t *testing.T) {
	path, s := tempSQLite(t)
	if err := s.Put(spreadsheet.CellAddress{Row: 2, Column: 3}, "hello"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Get(spreadsheet.CellAddress{Row: 2, Column: 3})
	if err != nil || !ok || got != "hello" {
		t.Errorf("Get after reopen = %q, %v, %v, want hello", got, ok, err)
	}
	if v, _ := s2.GetMetadata("schema_version"); v != SchemaVersion {
		t.Errorf("schema_version = %q, want %q", v, SchemaVersion)
	}
}

func TestSQLiteRejectsUnknownSchema(t *testing.T) {
	path, s := tempSQLite(t)
	if err := s.SetMetadata("schema_version", "99"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	s.Close()

	if s2, err := NewSQLite(path); err == nil {
		s2.Close()
		t.Errorf("NewSQLite accepted schema version 99")
	}
}

func TestGridRoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store { _, s := tempSQLite(t); return s },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			g := spreadsheet.NewGrid(spreadsheet.WithSize(20, 5))
			for _, in := range [][2]string{{"A1", "2"}, {"A2", "=A1*10"}, {"B1", "=SUM(A1:A2)"}, {"C3", "note"}} {
				if _, err := g.SetCellInput(in[0], in[1]); err != nil {
					t.Fatalf("SetCellInput(%s) failed: %v", in[0], err)
				}
			}
			if err := SaveGrid(s, g); err != nil {
				t.Fatalf("SaveGrid failed: %v", err)
			}

			loaded, err := LoadGrid(s)
			if err != nil {
				t.Fatalf("LoadGrid failed: %v", err)
			}
			if rows, cols := loaded.Size(); rows != 20 || cols != 5 {
				t.Errorf("Size() = %d x %d, want 20 x 5", rows, cols)
			}
			for addr, want := range g.Cells() {
				got, err := loaded.GetCellAt(addr)
				if err != nil {
					t.Fatalf("GetCellAt(%s) failed: %v", addr, err)
				}
				if got.RawInput != want.RawInput || !got.Value.Equal(want.Value) {
					t.Errorf("%s = %q (%v), want %q (%v)", addr, got.RawInput, got.Value, want.RawInput, want.Value)
				}
			}
		})
	}
}

func TestLoadGridDefaults(t *testing.T) {
	s := NewMemory()
	g, err := LoadGrid(s)
	if err != nil {
		t.Fatalf("LoadGrid failed: %v", err)
	}
	if rows, cols := g.Size(); rows != spreadsheet.DefaultRows || cols != spreadsheet.DefaultCols {
		t.Errorf("Size() = %d x %d, want defaults", rows, cols)
	}

	s.SetMetadata("rows", "zero")
	if _, err := LoadGrid(s); err == nil {
		t.Errorf("LoadGrid accepted a malformed size")
	}
}
