package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestLoad_LegacyFormat(t *testing.T) {
	content := `
server:
  port: 9000
data:
  cache_dir: "/data/abc_atlas"
  metadata_path: "metadata/cells.csv"
  expression_path: "expression/merfish.parquet"
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Data.DefaultDataset != "default" {
		t.Errorf("expected default dataset 'default', got %q", cfg.Data.DefaultDataset)
	}
	ds, ok := cfg.Data.Datasets["default"]
	if !ok {
		t.Fatal("expected 'default' dataset")
	}
	if ds.MetadataPath != "metadata/cells.csv" {
		t.Errorf("unexpected metadata_path: %s", ds.MetadataPath)
	}
	if ds.ExpressionPath != "expression/merfish.parquet" {
		t.Errorf("unexpected expression_path: %s", ds.ExpressionPath)
	}
}

func TestLoad_MultiDatasetFormat(t *testing.T) {
	content := `
server:
  port: 8080
data:
  cache_dir: "/data/abc_atlas"
  wmb:
    metadata_path: "metadata/wmb_cells.csv"
    expression_path: "expression/wmb.parquet"
  aging:
    metadata_path: "metadata/aging_cells.csv"
    expression_format: "long"
`
	cfg := loadFromString(t, content)

	if len(cfg.Data.Datasets) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(cfg.Data.Datasets))
	}

	// First dataset in YAML order should be default
	if cfg.Data.DefaultDataset != "wmb" {
		t.Errorf("expected default dataset 'wmb', got %q", cfg.Data.DefaultDataset)
	}

	want := []string{"wmb", "aging"}
	if !reflect.DeepEqual(cfg.Data.DatasetIDs(), want) {
		t.Errorf("expected dataset order %v, got %v", want, cfg.Data.DatasetIDs())
	}

	if cfg.Data.Datasets["aging"].ExpressionFormat != "long" {
		t.Errorf("unexpected expression_format: %q", cfg.Data.Datasets["aging"].ExpressionFormat)
	}
}

func TestLoad_ExplicitDefault(t *testing.T) {
	content := `
data:
  default: "aging"
  wmb:
    metadata_path: "a.csv"
  aging:
    metadata_path: "b.csv"
`
	cfg := loadFromString(t, content)

	if cfg.Data.DefaultDataset != "aging" {
		t.Errorf("expected default dataset 'aging', got %q", cfg.Data.DefaultDataset)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if len(cfg.Panels[DefaultPanel]) != 10 {
		t.Errorf("expected 10 genes in the default receptor panel, got %d", len(cfg.Panels[DefaultPanel]))
	}
	if cfg.Plot.MaxPoints3D != 30000 {
		t.Errorf("expected 3D sample cap 30000, got %d", cfg.Plot.MaxPoints3D)
	}
}

func TestLoad_ColumnDefaultsMerge(t *testing.T) {
	content := `
columns:
  cell_id: ["barcode"]
`
	cfg := loadFromString(t, content)

	if !reflect.DeepEqual(cfg.Columns.CellID, []string{"barcode"}) {
		t.Errorf("expected overridden cell_id candidates, got %v", cfg.Columns.CellID)
	}
	// Roles not overridden keep defaults
	if len(cfg.Columns.Coords) != 3 {
		t.Errorf("expected 3 default coord triplets, got %d", len(cfg.Columns.Coords))
	}
	if cfg.Columns.Region[0] != "parcellation_substructure" {
		t.Errorf("unexpected first region candidate: %q", cfg.Columns.Region[0])
	}
}

func TestLoad_CustomPanelKeepsDefaultPanel(t *testing.T) {
	content := `
panels:
  ieg: ["Arc", "Fos", "Egr1"]
`
	cfg := loadFromString(t, content)

	if len(cfg.Panels["ieg"]) != 3 {
		t.Errorf("expected custom panel with 3 genes, got %v", cfg.Panels["ieg"])
	}
	if _, ok := cfg.Panels[DefaultPanel]; !ok {
		t.Error("expected built-in receptor panel to survive a custom panels block")
	}
}
