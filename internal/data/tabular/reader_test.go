package tabular

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

const fixtureCSV = "cell_label,class,x,y,z,Adra2a\nA,Glut,1.0,2.0,3.0,0.5\nB,GABA,4.0,5.0,6.0,\n"

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestPeekColumnsCSV(t *testing.T) {
	path := writeFixture(t, "cells.csv", []byte(fixtureCSV))

	cols, err := PeekColumns(path)
	if err != nil {
		t.Fatalf("PeekColumns failed: %v", err)
	}
	want := []string{"cell_label", "class", "x", "y", "z", "Adra2a"}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("expected %v, got %v", want, cols)
	}
}

func TestReadColumnsCSV(t *testing.T) {
	path := writeFixture(t, "cells.csv", []byte(fixtureCSV))

	table, err := ReadColumns(path, []string{"cell_label", "Adra2a", "nonexistent"})
	if err != nil {
		t.Fatalf("ReadColumns failed: %v", err)
	}

	// Absent requested columns are dropped, not errored
	if !reflect.DeepEqual(table.Columns, []string{"cell_label", "Adra2a"}) {
		t.Fatalf("unexpected columns: %v", table.Columns)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}

	if got := table.Rows[0][0].Text(); got != "A" {
		t.Errorf("expected cell A, got %q", got)
	}
	if v, ok := table.Rows[0][1].Float(); !ok || v != 0.5 {
		t.Errorf("expected Adra2a=0.5 for A, got %v ok=%v", v, ok)
	}
	// Empty CSV cell is null, not zero
	if !table.Rows[1][1].IsNull() {
		t.Errorf("expected null Adra2a for B, got %#v", table.Rows[1][1])
	}
}

func TestReadColumnsCompressedCSV(t *testing.T) {
	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write([]byte(fixtureCSV))
		gw.Close()
		path := writeFixture(t, "cells.csv.gz", buf.Bytes())

		table, err := ReadColumns(path, []string{"cell_label"})
		if err != nil {
			t.Fatalf("ReadColumns failed: %v", err)
		}
		if table.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", table.Len())
		}
	})

	t.Run("zstd", func(t *testing.T) {
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		zw.Write([]byte(fixtureCSV))
		zw.Close()
		path := writeFixture(t, "cells.csv.zst", buf.Bytes())

		table, err := ReadColumns(path, []string{"cell_label"})
		if err != nil {
			t.Fatalf("ReadColumns failed: %v", err)
		}
		if table.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", table.Len())
		}
	})
}

func TestUnsupportedFormat(t *testing.T) {
	path := writeFixture(t, "cells.h5ad", []byte("not a table"))

	_, err := PeekColumns(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = ReadColumns(path, []string{"cell_label"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

type parquetCell struct {
	CellLabel string   `parquet:"cell_label"`
	Class     string   `parquet:"class"`
	Adra2a    *float64 `parquet:"Adra2a,optional"`
}

func writeParquetFixture(t *testing.T, rows []parquetCell) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cells.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	w := parquet.NewGenericWriter[parquetCell](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

func TestReadColumnsParquet(t *testing.T) {
	v := 0.5
	path := writeParquetFixture(t, []parquetCell{
		{CellLabel: "A", Class: "Glut", Adra2a: &v},
		{CellLabel: "B", Class: "GABA", Adra2a: nil},
	})

	cols, err := PeekColumns(path)
	if err != nil {
		t.Fatalf("PeekColumns failed: %v", err)
	}
	if !reflect.DeepEqual(cols, []string{"cell_label", "class", "Adra2a"}) {
		t.Fatalf("unexpected schema columns: %v", cols)
	}

	table, err := ReadColumns(path, []string{"cell_label", "Adra2a"})
	if err != nil {
		t.Fatalf("ReadColumns failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if got := table.Rows[0][0].Text(); got != "A" {
		t.Errorf("expected cell A, got %q", got)
	}
	if got, ok := table.Rows[0][1].Float(); !ok || got != 0.5 {
		t.Errorf("expected Adra2a=0.5, got %v ok=%v", got, ok)
	}
	if !table.Rows[1][1].IsNull() {
		t.Errorf("expected null Adra2a for B, got %#v", table.Rows[1][1])
	}
}
