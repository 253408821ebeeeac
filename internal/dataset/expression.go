package dataset

// ExpressionTable is the normalized wide form of an expression source:
// exactly one value per (cell, gene) pair, missing pairs absent.
type ExpressionTable struct {
	Genes []string
	Cells map[string]map[string]float64
}

// Empty reports whether the table holds no cells.
func (t *ExpressionTable) Empty() bool {
	return t == nil || len(t.Cells) == 0
}

// Value returns the expression of a gene in a cell, reporting presence.
func (t *ExpressionTable) Value(cell, gene string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	genes, ok := t.Cells[cell]
	if !ok {
		return 0, false
	}
	v, ok := genes[gene]
	return v, ok
}

// pivotAccumulator folds long-format rows into wide form. Duplicate
// (cell, gene) pairs are averaged so the one-value-per-pair invariant
// holds for any input.
type pivotAccumulator struct {
	sums   map[string]map[string]float64
	counts map[string]map[string]int
}

func newPivotAccumulator() *pivotAccumulator {
	return &pivotAccumulator{
		sums:   make(map[string]map[string]float64),
		counts: make(map[string]map[string]int),
	}
}

func (p *pivotAccumulator) add(cell, gene string, value float64) {
	if _, ok := p.sums[cell]; !ok {
		p.sums[cell] = make(map[string]float64)
		p.counts[cell] = make(map[string]int)
	}
	p.sums[cell][gene] += value
	p.counts[cell][gene]++
}

func (p *pivotAccumulator) table(genes []string) *ExpressionTable {
	cells := make(map[string]map[string]float64, len(p.sums))
	for cell, sums := range p.sums {
		values := make(map[string]float64, len(sums))
		for gene, sum := range sums {
			values[gene] = sum / float64(p.counts[cell][gene])
		}
		cells[cell] = values
	}
	return &ExpressionTable{Genes: genes, Cells: cells}
}
