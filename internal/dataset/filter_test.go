package dataset

import (
	"reflect"
	"testing"
)

func f64(v float64) *float64 { return &v }

func testRecords() []CellRecord {
	return []CellRecord{
		{ID: "A", Region: "R1", Class: "Glut", X: 1, Y: 2, Z: 3, Genes: map[string]float64{"G1": 1.0}},
		{ID: "B", Region: "R1", Class: "GABA", X: 4, Y: 5, Z: 6, Genes: map[string]float64{"G1": 3.0}},
		{ID: "C", Region: "R2", Class: "Glut", X: 7, Y: 8, Z: 9, Genes: map[string]float64{}},
	}
}

func ids(records []CellRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestApplyFilter(t *testing.T) {
	t.Run("emptySpecIsNoRestriction", func(t *testing.T) {
		records := testRecords()
		got := ApplyFilter(records, FilterSpec{})
		if !reflect.DeepEqual(ids(got), []string{"A", "B", "C"}) {
			t.Fatalf("expected all records, got %v", ids(got))
		}
	})

	t.Run("emptySlicesAreNoRestriction", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Regions: []string{}, Classes: []string{}})
		if len(got) != 3 {
			t.Fatalf("expected 3 records, got %d", len(got))
		}
	})

	t.Run("regionSet", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Regions: []string{"R1"}})
		if !reflect.DeepEqual(ids(got), []string{"A", "B"}) {
			t.Fatalf("expected [A B], got %v", ids(got))
		}
	})

	t.Run("classSet", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Classes: []string{"Glut"}})
		if !reflect.DeepEqual(ids(got), []string{"A", "C"}) {
			t.Fatalf("expected [A C], got %v", ids(got))
		}
	})

	t.Run("conjunctive", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Regions: []string{"R1"}, Classes: []string{"Glut"}})
		if !reflect.DeepEqual(ids(got), []string{"A"}) {
			t.Fatalf("expected [A], got %v", ids(got))
		}
	})

	t.Run("geneRangeInclusive", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Ranges: []GeneRange{{Gene: "G1", Min: f64(1.0), Max: f64(3.0)}}})
		if !reflect.DeepEqual(ids(got), []string{"A", "B"}) {
			t.Fatalf("expected [A B] with inclusive bounds, got %v", ids(got))
		}
	})

	t.Run("geneRangeLowerOnly", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Ranges: []GeneRange{{Gene: "G1", Min: f64(2.0)}}})
		if !reflect.DeepEqual(ids(got), []string{"B"}) {
			t.Fatalf("expected [B], got %v", ids(got))
		}
	})

	t.Run("missingConstrainedGeneExcludes", func(t *testing.T) {
		// C has no G1 value, so it cannot satisfy a G1 constraint
		got := ApplyFilter(testRecords(), FilterSpec{Ranges: []GeneRange{{Gene: "G1", Min: f64(0.0)}}})
		if !reflect.DeepEqual(ids(got), []string{"A", "B"}) {
			t.Fatalf("expected [A B], got %v", ids(got))
		}
	})

	t.Run("emptyResultIsValid", func(t *testing.T) {
		got := ApplyFilter(testRecords(), FilterSpec{Regions: []string{"R9"}})
		if len(got) != 0 {
			t.Fatalf("expected empty result, got %v", ids(got))
		}
	})

	t.Run("inputUnmodified", func(t *testing.T) {
		records := testRecords()
		ApplyFilter(records, FilterSpec{Regions: []string{"R1"}})
		if !reflect.DeepEqual(ids(records), []string{"A", "B", "C"}) {
			t.Fatal("ApplyFilter modified its input")
		}
	})
}

func TestFilterSpecHash(t *testing.T) {
	spec1 := FilterSpec{Regions: []string{"R1", "R2"}, Ranges: []GeneRange{{Gene: "G1", Min: f64(1)}}}
	spec2 := FilterSpec{Regions: []string{"R2", "R1"}, Ranges: []GeneRange{{Gene: "G1", Min: f64(1)}}}
	if spec1.Hash() != spec2.Hash() {
		t.Error("expected hash to be insensitive to region order")
	}

	spec3 := FilterSpec{Regions: []string{"R1"}}
	if spec1.Hash() == spec3.Hash() {
		t.Error("expected different specs to hash differently")
	}

	bounded := FilterSpec{Ranges: []GeneRange{{Gene: "G1", Min: f64(1), Max: f64(2)}}}
	unbounded := FilterSpec{Ranges: []GeneRange{{Gene: "G1", Min: f64(1)}}}
	if bounded.Hash() == unbounded.Hash() {
		t.Error("expected upper bound to be part of the hash")
	}
}
