// Package service provides the per-dataset exploration pipeline.
package service

import (
	"encoding/json"
	"sort"

	"github.com/vulneromics/server/internal/abc"
	"github.com/vulneromics/server/internal/cache"
	"github.com/vulneromics/server/internal/data/tabular"
	"github.com/vulneromics/server/internal/dataset"
	"github.com/vulneromics/server/internal/plot"
)

// ExplorerConfig contains explorer configuration.
type ExplorerConfig struct {
	DatasetID        string
	Resolver         abc.Resolver
	Loader           *dataset.Loader
	Cache            *cache.Manager
	MetadataPath     string
	ExpressionPath   string
	ExpressionFormat string
	Panel            []string
	MaxPoints3D      int
	Seed             int64
}

// Explorer runs the load → filter → summarize → spec pipeline for one
// dataset. Each interaction executes the pipeline to completion; loaded
// tables and summary payloads are memoized in the cache manager.
type Explorer struct {
	datasetID   string
	resolver    abc.Resolver
	loader      *dataset.Loader
	cache       *cache.Manager
	metadata    string
	expression  string
	format      string
	panel       []string
	maxPoints3D int
	seed        int64
}

// NewExplorer creates an explorer for one dataset.
func NewExplorer(cfg ExplorerConfig) *Explorer {
	datasetID := cfg.DatasetID
	if datasetID == "" {
		datasetID = "default"
	}
	maxPoints3D := cfg.MaxPoints3D
	if maxPoints3D <= 0 {
		maxPoints3D = 30000
	}
	return &Explorer{
		datasetID:   datasetID,
		resolver:    cfg.Resolver,
		loader:      cfg.Loader,
		cache:       cfg.Cache,
		metadata:    cfg.MetadataPath,
		expression:  cfg.ExpressionPath,
		format:      cfg.ExpressionFormat,
		panel:       cfg.Panel,
		maxPoints3D: maxPoints3D,
		seed:        cfg.Seed,
	}
}

// DatasetID returns the dataset's ID.
func (e *Explorer) DatasetID() string {
	return e.datasetID
}

// Panel returns the dataset's gene panel in display order.
func (e *Explorer) Panel() []string {
	return e.panel
}

// Manifest returns the cache manifest backing the dataset.
func (e *Explorer) Manifest() (*abc.Manifest, error) {
	return e.resolver.Manifest()
}

// Columns returns the source columns of the metadata file.
func (e *Explorer) Columns() ([]string, error) {
	path, err := e.resolver.ResolvePath(e.metadata)
	if err != nil {
		return nil, err
	}
	return tabular.PeekColumns(path)
}

// Records returns the joined metadata+expression table for the given
// genes (the panel when nil), memoized across interactions.
func (e *Explorer) Records(genes []string) ([]dataset.CellRecord, error) {
	if genes == nil {
		genes = e.panel
	}
	return e.loader.LoadJoined(e.resolver, e.metadata, e.expression, genes, e.format)
}

// genesFor collects every gene an interaction needs: the panel, the
// filter's range constraints and any extras (summary selection, gene
// coloring).
func (e *Explorer) genesFor(spec dataset.FilterSpec, extra []string) []string {
	genes := make([]string, 0, len(e.panel)+len(spec.Ranges)+len(extra))
	genes = append(genes, e.panel...)
	genes = append(genes, spec.RangeGenes()...)
	genes = append(genes, extra...)
	return genes
}

// Options holds the filterable values of a dataset.
type Options struct {
	Regions []string `json:"regions"`
	Classes []string `json:"classes"`
	Genes   []string `json:"genes"`
}

// Options returns sorted distinct region and class values plus the panel
// genes with at least one measured value.
func (e *Explorer) Options() (*Options, error) {
	records, err := e.Records(nil)
	if err != nil {
		return nil, err
	}

	regionSet := make(map[string]struct{})
	classSet := make(map[string]struct{})
	geneSet := make(map[string]struct{})
	for i := range records {
		if records[i].Region != "" {
			regionSet[records[i].Region] = struct{}{}
		}
		if records[i].Class != "" {
			classSet[records[i].Class] = struct{}{}
		}
		for g := range records[i].Genes {
			geneSet[g] = struct{}{}
		}
	}

	opts := &Options{
		Regions: sortedKeys(regionSet),
		Classes: sortedKeys(classSet),
		Genes:   make([]string, 0, len(geneSet)),
	}
	// Panel order is display order
	for _, g := range e.panel {
		if _, ok := geneSet[g]; ok {
			opts.Genes = append(opts.Genes, g)
		}
	}
	return opts, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cells filters the dataset and builds a scatter spec. For 3D views an
// unset maxPoints falls back to the configured sampling cap; 2D views
// are uncapped by default.
func (e *Explorer) Cells(spec dataset.FilterSpec, dims int, colorBy string, maxPoints int) (*plot.ScatterSpec, error) {
	var extra []string
	if colorBy != "" && colorBy != plot.ColorByRegion && colorBy != plot.ColorByClass {
		extra = []string{colorBy}
	}

	records, err := e.Records(e.genesFor(spec, extra))
	if err != nil {
		return nil, err
	}

	filtered := dataset.ApplyFilter(records, spec)

	if dims == 3 && maxPoints <= 0 {
		maxPoints = e.maxPoints3D
	}

	return plot.Scatter(filtered, dims, colorBy, maxPoints, e.seed)
}

// SummaryResult bundles a grouped summary with its bar spec.
type SummaryResult struct {
	Summary *dataset.GroupSummary `json:"summary"`
	Bar     *plot.BarSpec         `json:"bar"`
}

// Summary filters the dataset and computes grouped mean expression for
// the requested genes (the panel when nil), returning both the summary
// table and a bar spec. Results are cached by filter, grouping and gene
// selection.
func (e *Explorer) Summary(spec dataset.FilterSpec, groupBy string, genes []string, sorted bool) (*SummaryResult, error) {
	if genes == nil {
		genes = e.panel
	}

	filterHash := spec.Hash()
	if sorted {
		filterHash += ":sorted"
	}
	key := cache.SummaryKey(e.datasetID, filterHash, groupBy, genes)

	if e.cache != nil {
		if data, ok := e.cache.GetQuery(key); ok {
			var result SummaryResult
			if err := json.Unmarshal(data, &result); err == nil {
				return &result, nil
			}
		}
	}

	records, err := e.Records(e.genesFor(spec, genes))
	if err != nil {
		return nil, err
	}

	filtered := dataset.ApplyFilter(records, spec)
	summary, err := dataset.Summarize(filtered, groupBy, genes)
	if err != nil {
		return nil, err
	}
	if sorted {
		summary.SortGroups()
	}

	result := &SummaryResult{Summary: summary, Bar: plot.Bar(summary, summary.Genes)}

	if e.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			// Cache set failures only cost a recompute
			_ = e.cache.SetQuery(key, data)
		}
	}

	return result, nil
}

// Stats returns dataset and cache statistics.
func (e *Explorer) Stats() (map[string]interface{}, error) {
	records, err := e.Records(nil)
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"dataset": e.datasetID,
		"cells":   len(records),
		"panel":   len(e.panel),
	}
	if e.cache != nil {
		stats["cache"] = e.cache.Stats()
	}
	return stats, nil
}
