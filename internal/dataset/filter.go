package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// GeneRange is an inclusive numeric constraint on one gene. A nil bound
// is unbounded on that side.
type GeneRange struct {
	Gene string   `json:"gene"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// FilterSpec is a set of inclusion constraints. Empty region and class
// slices mean "no restriction", never "match nothing". Constructed per
// interaction, applied once, discarded.
type FilterSpec struct {
	Regions []string    `json:"regions,omitempty"`
	Classes []string    `json:"classes,omitempty"`
	Ranges  []GeneRange `json:"ranges,omitempty"`
}

// Empty reports whether the spec imposes no constraints.
func (s FilterSpec) Empty() bool {
	return len(s.Regions) == 0 && len(s.Classes) == 0 && len(s.Ranges) == 0
}

// RangeGenes returns the genes named by the spec's range constraints.
func (s FilterSpec) RangeGenes() []string {
	genes := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		genes = append(genes, r.Gene)
	}
	return genes
}

// Hash returns a stable key fragment for the spec, insensitive to the
// order of its regions, classes and ranges.
func (s FilterSpec) Hash() string {
	regions := make([]string, len(s.Regions))
	copy(regions, s.Regions)
	sort.Strings(regions)

	classes := make([]string, len(s.Classes))
	copy(classes, s.Classes)
	sort.Strings(classes)

	ranges := make([]string, len(s.Ranges))
	for i, r := range s.Ranges {
		lo, hi := math.Inf(-1), math.Inf(1)
		if r.Min != nil {
			lo = *r.Min
		}
		if r.Max != nil {
			hi = *r.Max
		}
		ranges[i] = fmt.Sprintf("%s=%g..%g", r.Gene, lo, hi)
	}
	sort.Strings(ranges)

	h := sha256.New()
	fmt.Fprintf(h, "r:%s|c:%s|g:%s",
		strings.Join(regions, ","), strings.Join(classes, ","), strings.Join(ranges, ","))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ApplyFilter keeps the records satisfying every constraint in spec. A
// record missing a value for a constrained gene is excluded, since the
// constraint cannot be evaluated. The input slice is not modified and
// record order is preserved.
func ApplyFilter(records []CellRecord, spec FilterSpec) []CellRecord {
	if spec.Empty() {
		return records
	}

	var regionSet, classSet map[string]struct{}
	if len(spec.Regions) > 0 {
		regionSet = make(map[string]struct{}, len(spec.Regions))
		for _, r := range spec.Regions {
			regionSet[r] = struct{}{}
		}
	}
	if len(spec.Classes) > 0 {
		classSet = make(map[string]struct{}, len(spec.Classes))
		for _, c := range spec.Classes {
			classSet[c] = struct{}{}
		}
	}

	out := make([]CellRecord, 0, len(records))
record:
	for _, rec := range records {
		if regionSet != nil {
			if _, ok := regionSet[rec.Region]; !ok {
				continue
			}
		}
		if classSet != nil {
			if _, ok := classSet[rec.Class]; !ok {
				continue
			}
		}
		for _, rng := range spec.Ranges {
			v, ok := rec.Gene(rng.Gene)
			if !ok {
				continue record
			}
			if rng.Min != nil && v < *rng.Min {
				continue record
			}
			if rng.Max != nil && v > *rng.Max {
				continue record
			}
		}
		out = append(out, rec)
	}

	return out
}
