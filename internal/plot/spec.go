// Package plot builds declarative chart specifications from filtered
// cell records. Nothing here renders; specs are consumed by an external
// presentation layer.
package plot

import (
	"fmt"

	"github.com/vulneromics/server/internal/dataset"
	"github.com/vulneromics/server/pkg/colormap"
)

// Coloring attributes accepted by Scatter beyond gene names.
const (
	ColorByRegion = "region"
	ColorByClass  = "class"
)

// missingColor marks points without a value for the gene being colored.
const missingColor = "#c7c7c7"

// Point is one cell in a scatter spec.
type Point struct {
	ID     string  `json:"id"`
	Region string  `json:"region"`
	Class  string  `json:"class"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Color  string  `json:"color"`
}

// LegendEntry describes one category value of a scatter legend.
type LegendEntry struct {
	Value string `json:"value"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// ColorScale describes continuous coloring by a gene's expression.
type ColorScale struct {
	Name string  `json:"name"`
	Gene string  `json:"gene"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// ScatterSpec is a 2D or 3D point-cloud specification over CCF
// coordinates. When the input exceeded maxPoints the spec is marked
// sampled and TotalCount retains the original size.
type ScatterSpec struct {
	Dims       int           `json:"dims"`
	ColorBy    string        `json:"color_by"`
	Points     []Point       `json:"points"`
	TotalCount int           `json:"total_count"`
	Sampled    bool          `json:"sampled"`
	Seed       int64         `json:"seed"`
	Legend     []LegendEntry `json:"legend,omitempty"`
	Scale      *ColorScale   `json:"scale,omitempty"`
}

// Scatter builds a scatter spec from records. colorBy is "region",
// "class", or a gene name for continuous coloring. maxPoints <= 0 means
// no cap; above the cap records are subsampled deterministically with
// the given seed.
func Scatter(records []dataset.CellRecord, dims int, colorBy string, maxPoints int, seed int64) (*ScatterSpec, error) {
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("scatter dims must be 2 or 3, got %d", dims)
	}
	if colorBy == "" {
		colorBy = ColorByClass
	}

	total := len(records)
	sampled := false
	if maxPoints > 0 && total > maxPoints {
		records = deterministicSample(records, maxPoints, seed)
		sampled = true
	}

	spec := &ScatterSpec{
		Dims:       dims,
		ColorBy:    colorBy,
		Points:     make([]Point, 0, len(records)),
		TotalCount: total,
		Sampled:    sampled,
		Seed:       seed,
	}

	switch colorBy {
	case ColorByRegion, ColorByClass:
		spec.colorCategorical(records)
	default:
		spec.colorByGene(records, colorBy)
	}

	return spec, nil
}

func (s *ScatterSpec) colorCategorical(records []dataset.CellRecord) {
	valueOf := func(r *dataset.CellRecord) string { return r.Class }
	if s.ColorBy == ColorByRegion {
		valueOf = func(r *dataset.CellRecord) string { return r.Region }
	}

	// Color per category value in first-seen order
	colors := make(map[string]string)
	counts := make(map[string]int)
	var order []string

	for i := range records {
		v := valueOf(&records[i])
		c, ok := colors[v]
		if !ok {
			c = colormap.Categorical.HexIndex(len(order))
			colors[v] = c
			order = append(order, v)
		}
		counts[v]++
		s.Points = append(s.Points, s.point(&records[i], c))
	}

	for _, v := range order {
		s.Legend = append(s.Legend, LegendEntry{Value: v, Color: colors[v], Count: counts[v]})
	}
}

func (s *ScatterSpec) colorByGene(records []dataset.CellRecord, gene string) {
	min, max := 0.0, 0.0
	found := false
	for i := range records {
		v, ok := records[i].Gene(gene)
		if !ok {
			continue
		}
		if !found || v < min {
			min = v
		}
		if !found || v > max {
			max = v
		}
		found = true
	}

	for i := range records {
		v, ok := records[i].Gene(gene)
		color := missingColor
		if ok {
			t := 0.5
			if max > min {
				t = (v - min) / (max - min)
			}
			color = colormap.Viridis.HexAt(t)
		}
		s.Points = append(s.Points, s.point(&records[i], color))
	}

	if found {
		s.Scale = &ColorScale{Name: "viridis", Gene: gene, Min: min, Max: max}
	}
}

func (s *ScatterSpec) point(r *dataset.CellRecord, color string) Point {
	p := Point{
		ID:     r.ID,
		Region: r.Region,
		Class:  r.Class,
		X:      r.X,
		Y:      r.Y,
		Color:  color,
	}
	if s.Dims == 3 {
		p.Z = r.Z
	}
	return p
}

// BarPoint is one gene's mean expression within a series.
type BarPoint struct {
	Gene string  `json:"gene"`
	Mean float64 `json:"mean"`
}

// BarSeries is one group's bars.
type BarSeries struct {
	Key    string     `json:"key"`
	Color  string     `json:"color"`
	Count  int        `json:"count"`
	Points []BarPoint `json:"points"`
}

// BarSpec is a grouped-bar specification over a GroupSummary. Group/gene
// pairs with no summary entry are omitted from the series, never
// rendered as zero-height bars.
type BarSpec struct {
	GroupBy string      `json:"group_by"`
	Genes   []string    `json:"genes"`
	Series  []BarSeries `json:"series"`
}

// Bar builds a grouped-bar spec from a summary, restricted to genes. A
// nil gene list means all of the summary's genes.
func Bar(summary *dataset.GroupSummary, genes []string) *BarSpec {
	if genes == nil {
		genes = summary.Genes
	}

	spec := &BarSpec{
		GroupBy: summary.GroupBy,
		Genes:   genes,
		Series:  make([]BarSeries, 0, len(summary.Groups)),
	}

	for i, group := range summary.Groups {
		series := BarSeries{
			Key:   group.Key,
			Color: colormap.Categorical.HexIndex(i),
			Count: group.Count,
		}
		for _, g := range genes {
			if mean, ok := group.Means[g]; ok {
				series.Points = append(series.Points, BarPoint{Gene: g, Mean: mean})
			}
		}
		spec.Series = append(spec.Series, series)
	}

	return spec
}
