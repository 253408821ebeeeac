package dataset

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vulneromics/server/internal/abc"
	"github.com/vulneromics/server/internal/cache"
	"github.com/vulneromics/server/internal/config"
	"github.com/vulneromics/server/internal/data/tabular"
)

// Expression format hints.
const (
	FormatAuto = "auto"
	FormatWide = "wide"
	FormatLong = "long"
)

// Loader reads metadata and expression sources into CellRecords,
// memoizing joined tables in the cache manager.
type Loader struct {
	Cache   *cache.Manager
	Columns config.ColumnsConfig
}

// LoadMetadata reads the metadata table at path, pruning the read to the
// cell id, region, class and coordinate columns. Column names are
// resolved against the configured candidate lists; a role with no
// candidate present fails with a SchemaError. Rows missing the cell id or
// any coordinate are dropped.
func (l *Loader) LoadMetadata(path string) ([]CellRecord, error) {
	columns, err := tabular.PeekColumns(path)
	if err != nil {
		return nil, err
	}

	cellID, err := pickFirst(columns, l.Columns.CellID, "cell id")
	if err != nil {
		return nil, err
	}
	region, err := pickFirst(columns, l.Columns.Region, "region")
	if err != nil {
		return nil, err
	}
	class, err := pickFirst(columns, l.Columns.Class, "cell class")
	if err != nil {
		return nil, err
	}
	coords, err := pickCoords(columns, l.Columns.Coords)
	if err != nil {
		return nil, err
	}

	selected := []string{cellID, region, class, coords[0], coords[1], coords[2]}
	table, err := tabular.ReadColumns(path, selected)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(selected))
	for i, name := range selected {
		j, ok := table.Column(name)
		if !ok {
			// PeekColumns said the column exists; a pruned read losing it
			// means the file changed underneath us.
			return nil, fmt.Errorf("column %q disappeared while reading %s", name, path)
		}
		idx[i] = j
	}

	records := make([]CellRecord, 0, table.Len())
	for _, row := range table.Rows {
		id := row[idx[0]].Text()
		if id == "" {
			continue
		}
		x, okX := row[idx[3]].Float()
		y, okY := row[idx[4]].Float()
		z, okZ := row[idx[5]].Float()
		if !okX || !okY || !okZ {
			continue
		}
		records = append(records, CellRecord{
			ID:     id,
			Region: row[idx[1]].Text(),
			Class:  row[idx[2]].Text(),
			X:      x,
			Y:      y,
			Z:      z,
		})
	}

	return records, nil
}

// LoadExpression reads expression values for the selected genes from the
// table at path, normalizing long or wide sources into wide form. Genes
// requested but absent from the source are logged and omitted; an empty
// selection yields an empty table.
func (l *Loader) LoadExpression(path string, genes []string, hint string) (*ExpressionTable, error) {
	genes = NormalizeGenes(genes)
	if len(genes) == 0 {
		return &ExpressionTable{}, nil
	}

	columns, err := tabular.PeekColumns(path)
	if err != nil {
		return nil, err
	}

	long, ok := l.longColumns(columns)
	switch hint {
	case FormatLong:
		if !ok {
			return nil, &SchemaError{Role: "long-format cell id/gene/value", Tried: longTried(l.Columns.Long)}
		}
		return l.loadExpressionLong(path, long, genes)
	case FormatWide, "":
		if hint == "" && ok {
			return l.loadExpressionLong(path, long, genes)
		}
		return l.loadExpressionWide(path, columns, genes)
	case FormatAuto:
		if ok {
			return l.loadExpressionLong(path, long, genes)
		}
		return l.loadExpressionWide(path, columns, genes)
	default:
		return nil, fmt.Errorf("unknown expression format hint %q", hint)
	}
}

// longColumns resolves the three long-format column names, reporting
// whether all of them are present.
func (l *Loader) longColumns(columns []string) ([3]string, bool) {
	var out [3]string
	cell, err := pickFirst(columns, l.Columns.Long.CellID, "long cell id")
	if err != nil {
		return out, false
	}
	gene, err := pickFirst(columns, l.Columns.Long.Gene, "long gene id")
	if err != nil {
		return out, false
	}
	value, err := pickFirst(columns, l.Columns.Long.Value, "long value")
	if err != nil {
		return out, false
	}
	out = [3]string{cell, gene, value}
	return out, true
}

func longTried(lc config.LongColumns) []string {
	var tried []string
	tried = append(tried, lc.CellID...)
	tried = append(tried, lc.Gene...)
	tried = append(tried, lc.Value...)
	return tried
}

func (l *Loader) loadExpressionLong(path string, cols [3]string, genes []string) (*ExpressionTable, error) {
	table, err := tabular.ReadColumns(path, cols[:])
	if err != nil {
		return nil, err
	}

	cellIdx, _ := table.Column(cols[0])
	geneIdx, _ := table.Column(cols[1])
	valueIdx, _ := table.Column(cols[2])

	wanted := make(map[string]struct{}, len(genes))
	for _, g := range genes {
		wanted[g] = struct{}{}
	}

	seen := make(map[string]struct{})
	acc := newPivotAccumulator()
	for _, row := range table.Rows {
		gene := row[geneIdx].Text()
		if _, ok := wanted[gene]; !ok {
			continue
		}
		cell := row[cellIdx].Text()
		if cell == "" {
			continue
		}
		v, ok := row[valueIdx].Float()
		if !ok {
			continue
		}
		seen[gene] = struct{}{}
		acc.add(cell, gene, v)
	}

	present := make([]string, 0, len(seen))
	for _, g := range genes {
		if _, ok := seen[g]; ok {
			present = append(present, g)
		} else {
			log.Printf("expression: gene %q not present in %s, omitting", g, filepath.Base(path))
		}
	}

	return acc.table(present), nil
}

func (l *Loader) loadExpressionWide(path string, columns []string, genes []string) (*ExpressionTable, error) {
	cellID, err := pickFirst(columns, l.Columns.CellID, "cell id")
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	available := make([]string, 0, len(genes))
	for _, g := range genes {
		if _, ok := have[g]; ok {
			available = append(available, g)
		} else {
			log.Printf("expression: gene %q not present in %s, omitting", g, filepath.Base(path))
		}
	}
	if len(available) == 0 {
		return &ExpressionTable{}, nil
	}

	table, err := tabular.ReadColumns(path, append([]string{cellID}, available...))
	if err != nil {
		return nil, err
	}

	cellIdx, _ := table.Column(cellID)
	geneIdx := make([]int, len(available))
	for i, g := range available {
		geneIdx[i], _ = table.Column(g)
	}

	cells := make(map[string]map[string]float64, table.Len())
	for _, row := range table.Rows {
		cell := row[cellIdx].Text()
		if cell == "" {
			continue
		}
		values := make(map[string]float64, len(available))
		for i, g := range available {
			if v, ok := row[geneIdx[i]].Float(); ok {
				values[g] = v
			}
		}
		cells[cell] = values
	}

	return &ExpressionTable{Genes: available, Cells: cells}, nil
}

// Join inner-joins metadata records with expression values on cell id.
// Cells present in only one side are dropped: a cell needs both spatial
// metadata and expression to be analyzable. A nil or empty expression
// table passes the metadata through unchanged, with no gene values.
func Join(meta []CellRecord, expr *ExpressionTable) []CellRecord {
	if expr.Empty() {
		return meta
	}
	joined := make([]CellRecord, 0, len(meta))
	for _, rec := range meta {
		values, ok := expr.Cells[rec.ID]
		if !ok {
			continue
		}
		rec.Genes = values
		joined = append(joined, rec)
	}
	return joined
}

// LoadJoined is the pipeline entry: resolve both references, check the
// cache, load, join, and memoize. Metadata failures are fatal; an
// expression reference that fails to resolve or load degrades to
// metadata-only with a log line. A failed load never populates the cache.
func (l *Loader) LoadJoined(resolver abc.Resolver, metaRef, exprRef string, genes []string, hint string) ([]CellRecord, error) {
	metaPath, err := resolver.ResolvePath(metaRef)
	if err != nil {
		return nil, err
	}

	genes = NormalizeGenes(genes)

	exprPath := ""
	if exprRef != "" && len(genes) > 0 {
		p, err := resolver.ResolvePath(exprRef)
		if err != nil {
			log.Printf("expression path %q not resolved, continuing with metadata only: %v", exprRef, err)
		} else {
			exprPath = p
		}
	}

	metaSig := cache.FileSignature(metaPath)
	exprSig := ""
	if exprPath != "" {
		exprSig = cache.FileSignature(exprPath)
	}
	cacheable := l.Cache != nil && metaSig != "" && (exprPath == "" || exprSig != "")
	key := cache.TableKey(metaPath+"|"+exprPath, metaSig+"|"+exprSig, append([]string{"hint=" + hint}, genes...))

	if cacheable {
		if v, ok := l.Cache.GetTable(key); ok {
			if records, ok := v.([]CellRecord); ok {
				return records, nil
			}
		}
	}

	meta, err := l.LoadMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	records := meta
	if exprPath != "" {
		expr, err := l.LoadExpression(exprPath, genes, hint)
		if err != nil {
			log.Printf("expression load failed for %s, continuing with metadata only: %v", filepath.Base(exprPath), err)
		} else {
			records = Join(meta, expr)
		}
	}

	if cacheable {
		l.Cache.SetTable(key, records)
	}

	return records, nil
}

// NormalizeGenes drops empty names, deduplicates and sorts.
func NormalizeGenes(genes []string) []string {
	set := make(map[string]struct{}, len(genes))
	for _, g := range genes {
		g = strings.TrimSpace(g)
		if g != "" {
			set[g] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
