// Package tabular provides column-pruned readers for CSV and Parquet
// tables.
package tabular

import "strconv"

// Kind discriminates cell value types.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a single table cell. CSV cells arrive as strings and parse to
// numbers on demand; Parquet cells arrive typed.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
}

// Null is the zero Value.
var Null = Value{}

// String wraps a string cell. Empty strings become null.
func String(s string) Value {
	if s == "" {
		return Null
	}
	return Value{Kind: KindString, Str: s}
}

// Number wraps a numeric cell.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Float returns the cell as a float64. String cells are parsed; null and
// unparseable cells report ok=false.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Text returns the cell as a string, empty for null.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return ""
	}
}

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Table holds the pruned result of a columnar read. Columns keeps the
// order the caller requested, restricted to columns present in the file.
type Table struct {
	Columns []string
	Rows    [][]Value

	index map[string]int
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	t := &Table{Columns: columns}
	t.index = make(map[string]int, len(columns))
	for i, c := range columns {
		t.index[c] = i
	}
	return t
}

// Column returns the index of a column, or false if absent.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the table contains a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
