package dataset

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
)

// Grouping attributes.
const (
	GroupByRegion = "region"
	GroupByClass  = "class"
)

// Group holds per-gene mean expression for one group key. A gene with no
// present values in the group has no entry in Means.
type Group struct {
	Key   string             `json:"key"`
	Count int                `json:"count"`
	Means map[string]float64 `json:"means"`
}

// GroupSummary maps group keys to per-gene mean expression over the
// filtered record set. Groups appear in first-seen input order unless
// SortGroups is called.
type GroupSummary struct {
	GroupBy string   `json:"group_by"`
	Genes   []string `json:"genes"`
	Groups  []Group  `json:"groups"`
}

// Summarize partitions records by region or class and computes the
// arithmetic mean of each requested gene over the values present in each
// partition. Missing values are ignored, never treated as zero; a group
// with no present values for a gene gets no entry for it.
func Summarize(records []CellRecord, groupBy string, genes []string) (*GroupSummary, error) {
	var keyOf func(*CellRecord) string
	switch groupBy {
	case GroupByRegion:
		keyOf = func(r *CellRecord) string { return r.Region }
	case GroupByClass:
		keyOf = func(r *CellRecord) string { return r.Class }
	default:
		return nil, fmt.Errorf("unknown group_by attribute %q (expected %q or %q)", groupBy, GroupByRegion, GroupByClass)
	}

	genes = dedupeGenes(genes)

	type accumulator struct {
		count  int
		values map[string][]float64
	}

	var order []string
	groups := make(map[string]*accumulator)

	for i := range records {
		key := keyOf(&records[i])
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{values: make(map[string][]float64, len(genes))}
			groups[key] = acc
			order = append(order, key)
		}
		acc.count++
		for _, g := range genes {
			if v, present := records[i].Gene(g); present {
				acc.values[g] = append(acc.values[g], v)
			}
		}
	}

	summary := &GroupSummary{GroupBy: groupBy, Genes: genes, Groups: make([]Group, 0, len(order))}
	for _, key := range order {
		acc := groups[key]
		means := make(map[string]float64, len(genes))
		for _, g := range genes {
			vals := acc.values[g]
			if len(vals) == 0 {
				continue
			}
			mean, err := stats.Mean(vals)
			if err != nil {
				continue
			}
			means[g] = mean
		}
		summary.Groups = append(summary.Groups, Group{Key: key, Count: acc.count, Means: means})
	}

	return summary, nil
}

// SortGroups orders groups by key, for callers that want an explicit sort
// instead of first-seen order.
func (s *GroupSummary) SortGroups() {
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].Key < s.Groups[j].Key })
}

// dedupeGenes drops empty and repeated names, preserving first-seen
// order (the panel order is display order).
func dedupeGenes(genes []string) []string {
	seen := make(map[string]struct{}, len(genes))
	out := make([]string, 0, len(genes))
	for _, g := range genes {
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
