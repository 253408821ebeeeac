package service

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/vulneromics/server/internal/abc"
	"github.com/vulneromics/server/internal/cache"
	"github.com/vulneromics/server/internal/config"
	"github.com/vulneromics/server/internal/dataset"
)

const testMetadataCSV = `cell_label,parcellation_substructure,class,x,y,z
A,R1,Glut,1.0,2.0,3.0
B,R1,GABA,4.0,5.0,6.0
C,R2,Glut,7.0,8.0,9.0
`

const testExpressionCSV = `cell_id,gene,expression
A,G1,1.0
B,G1,3.0
A,G2,0.5
B,G2,0.6
C,G2,0.7
`

func newTestExplorer(t *testing.T) *Explorer {
	t.Helper()

	dir := t.TempDir()
	metaPath := filepath.Join(dir, "cells.csv")
	exprPath := filepath.Join(dir, "expr.csv")
	if err := os.WriteFile(metaPath, []byte(testMetadataCSV), 0o644); err != nil {
		t.Fatalf("write metadata fixture: %v", err)
	}
	if err := os.WriteFile(exprPath, []byte(testExpressionCSV), 0o644); err != nil {
		t.Fatalf("write expression fixture: %v", err)
	}

	mgr, err := cache.NewManager(cache.Config{TableEntries: 16, QuerySizeMB: 8, QueryTTL: time.Minute})
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	resolver := &abc.StaticResolver{
		Paths: map[string]string{
			"metadata/cells.csv":  metaPath,
			"expression/expr.csv": exprPath,
		},
		ManifestData: &abc.Manifest{Version: "releases/20230830"},
	}

	return NewExplorer(ExplorerConfig{
		DatasetID:      "demo",
		Resolver:       resolver,
		Loader:         &dataset.Loader{Cache: mgr, Columns: config.DefaultConfig().Columns},
		Cache:          mgr,
		MetadataPath:   "metadata/cells.csv",
		ExpressionPath: "expression/expr.csv",
		Panel:          []string{"G1", "G2"},
	})
}

func TestExplorerOptions(t *testing.T) {
	e := newTestExplorer(t)

	opts, err := e.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if !reflect.DeepEqual(opts.Regions, []string{"R1", "R2"}) {
		t.Errorf("unexpected regions: %v", opts.Regions)
	}
	if !reflect.DeepEqual(opts.Classes, []string{"GABA", "Glut"}) {
		t.Errorf("unexpected classes: %v", opts.Classes)
	}
	if !reflect.DeepEqual(opts.Genes, []string{"G1", "G2"}) {
		t.Errorf("unexpected genes: %v", opts.Genes)
	}
}

func TestExplorerCells(t *testing.T) {
	e := newTestExplorer(t)

	spec, err := e.Cells(dataset.FilterSpec{Regions: []string{"R1"}}, 2, "class", 0)
	if err != nil {
		t.Fatalf("Cells failed: %v", err)
	}
	if len(spec.Points) != 2 {
		t.Fatalf("expected 2 points for region R1, got %d", len(spec.Points))
	}
	if spec.Points[0].ID != "A" || spec.Points[1].ID != "B" {
		t.Errorf("unexpected points: %+v", spec.Points)
	}
}

func TestExplorerCellsEmptyFilterIsValid(t *testing.T) {
	e := newTestExplorer(t)

	spec, err := e.Cells(dataset.FilterSpec{Regions: []string{"R9"}}, 3, "class", 0)
	if err != nil {
		t.Fatalf("Cells failed: %v", err)
	}
	if len(spec.Points) != 0 || spec.TotalCount != 0 {
		t.Fatalf("expected valid empty spec, got %+v", spec)
	}
}

func TestExplorerSummary(t *testing.T) {
	e := newTestExplorer(t)

	result, err := e.Summary(dataset.FilterSpec{}, dataset.GroupByRegion, []string{"G1"}, false)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	groups := result.Summary.Groups
	if len(groups) != 2 || groups[0].Key != "R1" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if mean := groups[0].Means["G1"]; mean != 2.0 {
		t.Errorf("expected R1 mean(G1)=2.0, got %v", mean)
	}
	// C has no G1 measurement: no entry for R2
	if _, ok := groups[1].Means["G1"]; ok {
		t.Error("expected no G1 entry for R2")
	}

	// Bar spec mirrors the omission
	if len(result.Bar.Series) != 2 || len(result.Bar.Series[1].Points) != 0 {
		t.Errorf("expected empty R2 bar series, got %+v", result.Bar.Series)
	}

	t.Run("cachedResultIdentical", func(t *testing.T) {
		again, err := e.Summary(dataset.FilterSpec{}, dataset.GroupByRegion, []string{"G1"}, false)
		if err != nil {
			t.Fatalf("Summary failed: %v", err)
		}
		if !reflect.DeepEqual(result, again) {
			t.Errorf("cached summary differs:\n%+v\nvs\n%+v", result, again)
		}
	})
}

func TestExplorerSummaryGeneOrderPreserved(t *testing.T) {
	e := newTestExplorer(t)

	first, err := e.Summary(dataset.FilterSpec{}, dataset.GroupByRegion, []string{"G2", "G1"}, false)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !reflect.DeepEqual(first.Summary.Genes, []string{"G2", "G1"}) {
		t.Fatalf("expected request order [G2 G1], got %v", first.Summary.Genes)
	}

	// A reordered selection must not be served from the first one's entry
	second, err := e.Summary(dataset.FilterSpec{}, dataset.GroupByRegion, []string{"G1", "G2"}, false)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !reflect.DeepEqual(second.Summary.Genes, []string{"G1", "G2"}) {
		t.Fatalf("expected request order [G1 G2], got %v", second.Summary.Genes)
	}
}

func TestExplorerSummarySorted(t *testing.T) {
	e := newTestExplorer(t)

	result, err := e.Summary(dataset.FilterSpec{}, dataset.GroupByClass, nil, true)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if result.Summary.Groups[0].Key != "GABA" {
		t.Errorf("expected sorted groups starting with GABA, got %+v", result.Summary.Groups)
	}
}

func TestExplorerUnresolvedMetadata(t *testing.T) {
	e := newTestExplorer(t)
	e.metadata = "metadata/missing.csv"

	if _, err := e.Options(); !errors.Is(err, abc.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
}

func TestExplorerStats(t *testing.T) {
	e := newTestExplorer(t)

	stats, err := e.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["cells"].(int) != 3 {
		t.Errorf("expected 3 cells, got %v", stats["cells"])
	}
}
