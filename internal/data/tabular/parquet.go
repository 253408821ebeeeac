package tabular

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

func openParquet(path string) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}

	return f, pf, nil
}

func peekParquetColumns(path string) ([]string, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
	}
	return names, nil
}

func readParquetColumns(path string, cols []string) (*Table, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	schema := pf.Schema()

	// Map requested column names to leaf column indexes, dropping
	// requests the schema doesn't know.
	kept := make([]string, 0, len(cols))
	leafIdx := make([]int, 0, len(cols))
	for _, c := range cols {
		leaf, ok := schema.Lookup(c)
		if !ok {
			continue
		}
		kept = append(kept, c)
		leafIdx = append(leafIdx, leaf.ColumnIndex)
	}

	// Invert: leaf column index -> output position
	outPos := make(map[int]int, len(leafIdx))
	for pos, idx := range leafIdx {
		outPos[idx] = pos
	}

	table := NewTable(kept)
	if len(kept) == 0 {
		return table, nil
	}

	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, pr := range buf[:n] {
				row := make([]Value, len(kept))
				for _, v := range pr {
					pos, ok := outPos[v.Column()]
					if !ok {
						continue
					}
					row[pos] = fromParquetValue(v)
				}
				table.Rows = append(table.Rows, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows from %s: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close parquet row reader for %s: %w", path, err)
		}
	}

	return table, nil
}

func fromParquetValue(v parquet.Value) Value {
	if v.IsNull() {
		return Null
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return Number(1)
		}
		return Number(0)
	case parquet.Int32:
		return Number(float64(v.Int32()))
	case parquet.Int64:
		return Number(float64(v.Int64()))
	case parquet.Float:
		return Number(float64(v.Float()))
	case parquet.Double:
		return Number(v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return String(v.String())
	default:
		return String(v.String())
	}
}
