package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func runCLI(args []string, stdin string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func records(t *testing.T, out string) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	return recs
}

func expectGrid(t *testing.T, args []string, stdin string, want [][]string) {
	t.Helper()
	out, errOut, code := runCLI(args, stdin)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if got := records(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("grid = %q, want %q", got, want)
	}
}

func TestRunCSVFromStdin(t *testing.T) {
	expectGrid(t, []string{"-in", "-"}, "1,2\n=A1+B1,=1/0\n", [][]string{
		{"1", "2"},
		{"3", "#DIV/0!"},
	})
}

func TestRunCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("4;5\n=SUM(A1:B1);\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	expectGrid(t, []string{"-in", path, "-d", ";"}, "", [][]string{
		{"4;5"},
		{"9;"},
	})
}

func TestRunCSVGrowsPastRequestedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")
	expectGrid(t, []string{"-in", "-", "-rows", "1", "-cols", "1", "-save", path}, "1,2\n3,4\n=SUM(A1:B2),\n", [][]string{
		{"1", "2"},
		{"3", "4"},
		{"10", ""},
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if rows, cols := gjson.GetBytes(data, "rows").Int(), gjson.GetBytes(data, "cols").Int(); rows != 3 || cols != 2 {
		t.Fatalf("grid size = %d x %d, want 3 x 2", rows, cols)
	}
}

func TestRunLatin1Input(t *testing.T) {
	stdin := string([]byte{'c', 'a', 'f', 0xe9, ',', '=', 'U', 'P', 'P', 'E', 'R', '(', 'A', '1', ')', '\n'})
	expectGrid(t, []string{"-in", "-", "-encoding", "latin1"}, stdin, [][]string{
		{"café", "CAFÉ"},
	})
}

func TestRunEditsInOrder(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want [][]string
	}{
		{
			name: "set and overwrite",
			args: []string{"-set", "A1=1", "-set", "B1==A1+1", "-set", "A1=10"},
			want: [][]string{{"10", "11"}},
		},
		{
			name: "formulas flag",
			args: []string{"-set", "A1=1", "-set", "B1==A1+1", "-formulas"},
			want: [][]string{{"1", "=A1+1"}},
		},
		{
			name: "circular",
			args: []string{"-set", "A1==B1", "-set", "B1==A1"},
			want: [][]string{{"#CIRCULAR!", "#CIRCULAR!"}},
		},
		{
			name: "copy keeps references",
			args: []string{"-set", "A1==B1+1", "-set", "B1=1", "-set", "B2=5", "-copy", "A1=A2"},
			want: [][]string{{"2", "1"}, {"2", "5"}},
		},
		{
			name: "insert row",
			args: []string{"-set", "A1=1", "-set", "B1=x", "-set", "A2==A1*2", "-insert-row", "1"},
			want: [][]string{{"1", "x"}, {"", ""}, {"2", ""}},
		},
		{
			name: "delete row",
			args: []string{"-set", "A1=1", "-set", "A2=7", "-set", "B3==A2*2", "-delete-row", "1"},
			want: [][]string{{"7", ""}, {"", "14"}},
		},
		{
			name: "insert column by label",
			args: []string{"-set", "A1=1", "-set", "B1==A1*3", "-insert-col", "A"},
			want: [][]string{{"1", "", "3"}},
		},
		{
			name: "delete column by number",
			args: []string{"-set", "A1=1", "-set", "B1=7", "-set", "C1==B1*2", "-delete-col", "1"},
			want: [][]string{{"7", "14"}},
		},
		{
			name: "deleted reference",
			args: []string{"-set", "A1=1", "-set", "B1==A1", "-delete-col", "A"},
			want: [][]string{{"#REF!"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectGrid(t, tt.args, "", tt.want)
		})
	}
}

func TestRunBulkEdits(t *testing.T) {
	input := "a,1\nb,2\na,1\n"

	expectGrid(t, []string{"-in", "-", "-dedupe", "A1:B3"}, input, [][]string{
		{"", ""},
		{"b", "2"},
		{"a", "1"},
	})
	expectGrid(t, []string{"-in", "-", "-replace", "A1:B3=a=z"}, input, [][]string{
		{"z", "1"},
		{"b", "2"},
		{"z", "1"},
	})
}

func TestRunSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")

	out, errOut, code := runCLI([]string{"-rows", "10", "-cols", "4", "-set", "A1=2", "-set", "B1==A1*A1", "-save", path, "-q"}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if out != "" {
		t.Fatalf("-q printed output: %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if got := gjson.GetBytes(data, "cells.B1.value").String(); got != "4" {
		t.Fatalf("snapshot B1 value = %q, want 4", got)
	}
	if got := gjson.GetBytes(data, "rows").Int(); got != 10 {
		t.Fatalf("snapshot rows = %d, want 10", got)
	}

	expectGrid(t, []string{"-load", path, "-set", "A1=3"}, "", [][]string{{"3", "9"}})
}

func TestRunDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.db")

	if _, errOut, code := runCLI([]string{"-db", path, "-set", "A1=5", "-set", "A2==A1+1", "-q"}, ""); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	expectGrid(t, []string{"-db", path, "-set", "A1=10"}, "", [][]string{{"10"}, {"11"}})
	expectGrid(t, []string{"-db", path}, "", [][]string{{"10"}, {"11"}})
}

func TestRunVerbose(t *testing.T) {
	_, errOut, code := runCLI([]string{"-v", "-set", "A1=1", "-q"}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(errOut, "applied edit") {
		t.Fatalf("verbose log missing edit record: %s", errOut)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		code     int
		contains string
	}{
		{"unknown flag", []string{"-nope"}, 2, "flag provided but not defined"},
		{"bad delimiter", []string{"-d", "ab"}, 2, "invalid delimiter"},
		{"two inputs", []string{"-in", "a.csv", "-load", "a.json"}, 2, "cannot combine"},
		{"stray argument", []string{"extra"}, 2, "unexpected argument"},
		{"malformed set", []string{"-set", "A1"}, 1, "expected ADDR=TEXT"},
		{"bad address", []string{"-set", "1A=2"}, 1, "1A"},
		{"row outside grid", []string{"-rows", "5", "-delete-row", "9"}, 1, "outside the grid"},
		{"bad encoding", []string{"-in", "-", "-encoding", "ebcdic"}, 1, "unsupported input encoding"},
		{"missing file", []string{"-in", filepath.Join(os.TempDir(), "gridcalc-missing.csv")}, 1, "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := runCLI(tt.args, "")
			if code != tt.code {
				t.Fatalf("exit code %d, want %d, stderr: %s", code, tt.code, errOut)
			}
			if !strings.Contains(errOut, tt.contains) {
				t.Fatalf("stderr %q does not mention %q", errOut, tt.contains)
			}
		})
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	if _, errOut, code := runCLI([]string{"-h"}, ""); code != 0 || !strings.Contains(errOut, "usage: gridcalc") {
		t.Fatalf("-h exit %d, stderr: %s", code, errOut)
	}
	if out, _, code := runCLI([]string{"-version"}, ""); code != 0 || strings.TrimSpace(out) != version {
		t.Fatalf("-version exit %d, output %q", code, out)
	}
}
