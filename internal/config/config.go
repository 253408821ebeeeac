// Package config handles configuration loading for the vulneromics server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Columns ColumnsConfig `yaml:"columns"`
	Panels  PanelsConfig  `yaml:"panels"`
	Cache   CacheConfig   `yaml:"cache"`
	Plot    PlotConfig    `yaml:"plot"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
}

// DatasetConfig describes one dataset's source files. Paths are resolved
// against the cache root unless absolute.
type DatasetConfig struct {
	MetadataPath     string `yaml:"metadata_path"`
	ExpressionPath   string `yaml:"expression_path"`
	ExpressionFormat string `yaml:"expression_format"` // auto | wide | long
	Panel            string `yaml:"panel"`
}

// DataConfig contains data source settings. It supports two YAML layouts:
// a legacy flat form with metadata_path/expression_path directly under
// `data`, and a multi-dataset form where every unknown key under `data`
// is a dataset ID mapping to a DatasetConfig.
type DataConfig struct {
	CacheDir       string
	DefaultDataset string
	Datasets       map[string]DatasetConfig

	order []string
}

// UnmarshalYAML implements custom decoding so dataset IDs keep their YAML
// order (the first dataset becomes the default unless one is named).
func (d *DataConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected a mapping, got %s", value.Tag)
	}

	d.Datasets = make(map[string]DatasetConfig)
	var legacy DatasetConfig

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		val := value.Content[i+1]

		switch key {
		case "cache_dir":
			if err := val.Decode(&d.CacheDir); err != nil {
				return err
			}
		case "default":
			if err := val.Decode(&d.DefaultDataset); err != nil {
				return err
			}
		case "metadata_path":
			if err := val.Decode(&legacy.MetadataPath); err != nil {
				return err
			}
		case "expression_path":
			if err := val.Decode(&legacy.ExpressionPath); err != nil {
				return err
			}
		case "expression_format":
			if err := val.Decode(&legacy.ExpressionFormat); err != nil {
				return err
			}
		default:
			var ds DatasetConfig
			if err := val.Decode(&ds); err != nil {
				return fmt.Errorf("data: dataset %q: %w", key, err)
			}
			d.Datasets[key] = ds
			d.order = append(d.order, key)
		}
	}

	if legacy.MetadataPath != "" {
		if _, exists := d.Datasets["default"]; !exists {
			d.Datasets["default"] = legacy
			d.order = append(d.order, "default")
		}
	}

	if d.DefaultDataset == "" && len(d.order) > 0 {
		d.DefaultDataset = d.order[0]
	}

	return nil
}

// DatasetIDs returns dataset IDs in config order.
func (d *DataConfig) DatasetIDs() []string {
	return d.order
}

// ColumnsConfig names the source columns for each record role. Each role
// lists candidates tried in order; the first one present in the file wins.
type ColumnsConfig struct {
	CellID []string    `yaml:"cell_id"`
	Region []string    `yaml:"region"`
	Class  []string    `yaml:"class"`
	Coords [][]string  `yaml:"coords"`
	Long   LongColumns `yaml:"long"`
}

// LongColumns names the three columns of a long-format expression table.
type LongColumns struct {
	CellID []string `yaml:"cell_id"`
	Gene   []string `yaml:"gene"`
	Value  []string `yaml:"value"`
}

// PanelsConfig maps panel names to ordered gene lists.
type PanelsConfig map[string][]string

// CacheConfig contains caching settings.
type CacheConfig struct {
	TableEntries    int `yaml:"table_entries"`
	QuerySizeMB     int `yaml:"query_size_mb"`
	QueryTTLMinutes int `yaml:"query_ttl_minutes"`
}

// PlotConfig contains plot-spec settings.
type PlotConfig struct {
	MaxPoints3D int   `yaml:"max_points_3d"`
	Seed        int64 `yaml:"seed"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultPanel is the name of the built-in receptor gene panel.
const DefaultPanel = "receptors"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "vulneromics",
		},
		Data: DataConfig{
			CacheDir: "./data/abc_atlas",
		},
		Columns: ColumnsConfig{
			CellID: []string{"cell_label", "cell_id", "cell"},
			Region: []string{
				"parcellation_substructure",
				"parcellation_structure",
				"structure_acronym",
				"brain_region",
			},
			Class: []string{"class", "cell_class", "supertype"},
			Coords: [][]string{
				{"x", "y", "z"},
				{"x_ccf", "y_ccf", "z_ccf"},
				{"ccf_x", "ccf_y", "ccf_z"},
			},
			Long: LongColumns{
				CellID: []string{"cell_id", "cell_label"},
				Gene:   []string{"gene", "gene_id"},
				Value:  []string{"expression", "value"},
			},
		},
		Panels: PanelsConfig{
			DefaultPanel: {
				"Adra1a", "Adra1b", "Adra2a", "Adrb1", "Adrb2",
				"Chrm1", "Chrm2", "Chrm3", "Chrna4", "Chrna7",
			},
		},
		Cache: CacheConfig{
			TableEntries:    64,
			QuerySizeMB:     128,
			QueryTTLMinutes: 30,
		},
		Plot: PlotConfig{
			MaxPoints3D: 30000,
			Seed:        0,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Data.CacheDir == "" {
		cfg.Data.CacheDir = defaults.Data.CacheDir
	}
	if len(cfg.Columns.CellID) == 0 {
		cfg.Columns.CellID = defaults.Columns.CellID
	}
	if len(cfg.Columns.Region) == 0 {
		cfg.Columns.Region = defaults.Columns.Region
	}
	if len(cfg.Columns.Class) == 0 {
		cfg.Columns.Class = defaults.Columns.Class
	}
	if len(cfg.Columns.Coords) == 0 {
		cfg.Columns.Coords = defaults.Columns.Coords
	}
	if len(cfg.Columns.Long.CellID) == 0 {
		cfg.Columns.Long.CellID = defaults.Columns.Long.CellID
	}
	if len(cfg.Columns.Long.Gene) == 0 {
		cfg.Columns.Long.Gene = defaults.Columns.Long.Gene
	}
	if len(cfg.Columns.Long.Value) == 0 {
		cfg.Columns.Long.Value = defaults.Columns.Long.Value
	}
	if cfg.Panels == nil {
		cfg.Panels = defaults.Panels
	} else if _, ok := cfg.Panels[DefaultPanel]; !ok {
		cfg.Panels[DefaultPanel] = defaults.Panels[DefaultPanel]
	}
	if cfg.Cache.TableEntries == 0 {
		cfg.Cache.TableEntries = defaults.Cache.TableEntries
	}
	if cfg.Cache.QuerySizeMB == 0 {
		cfg.Cache.QuerySizeMB = defaults.Cache.QuerySizeMB
	}
	if cfg.Cache.QueryTTLMinutes == 0 {
		cfg.Cache.QueryTTLMinutes = defaults.Cache.QueryTTLMinutes
	}
	if cfg.Plot.MaxPoints3D == 0 {
		cfg.Plot.MaxPoints3D = defaults.Plot.MaxPoints3D
	}
}
