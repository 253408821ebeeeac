// Package dataset implements the loading, filtering and summarization
// pipeline over MERFISH cell tables.
package dataset

import (
	"fmt"
	"strings"
)

// CellRecord is one cell: identity, taxonomy labels, CCF coordinates and
// expression values for the selected genes. A gene absent from the map is
// a missing measurement, never zero.
type CellRecord struct {
	ID     string             `json:"id"`
	Region string             `json:"region"`
	Class  string             `json:"class"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	Z      float64            `json:"z"`
	Genes  map[string]float64 `json:"genes,omitempty"`
}

// Gene returns the record's value for a gene, reporting presence.
func (r *CellRecord) Gene(name string) (float64, bool) {
	if r.Genes == nil {
		return 0, false
	}
	v, ok := r.Genes[name]
	return v, ok
}

// SchemaError reports a required column that could not be found in a
// source table.
type SchemaError struct {
	Role  string
	Tried []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("could not find a %s column; tried: %s", e.Role, strings.Join(e.Tried, ", "))
}

// pickFirst returns the first candidate present in columns.
func pickFirst(columns []string, candidates []string, role string) (string, error) {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	for _, name := range candidates {
		if _, ok := have[name]; ok {
			return name, nil
		}
	}
	return "", &SchemaError{Role: role, Tried: candidates}
}

// pickCoords returns the first coordinate triplet fully present in
// columns.
func pickCoords(columns []string, triplets [][]string) ([]string, error) {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	var tried []string
	for _, triplet := range triplets {
		ok := true
		for _, name := range triplet {
			if _, present := have[name]; !present {
				ok = false
			}
		}
		if ok && len(triplet) == 3 {
			return triplet, nil
		}
		tried = append(tried, "("+strings.Join(triplet, ",")+")")
	}
	return nil, &SchemaError{Role: "xyz coordinate", Tried: tried}
}
