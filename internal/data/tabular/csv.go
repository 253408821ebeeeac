package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// openCSV opens a CSV file, transparently unwrapping gzip or zstd
// compression.
func openCSV(path string, f format) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	switch f {
	case formatCSVGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read gzip stream from %s: %w", path, err)
		}
		return &wrappedReadCloser{Reader: gz, closers: []io.Closer{gz, file}}, nil
	case formatCSVZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read zstd stream from %s: %w", path, err)
		}
		return &wrappedReadCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), file}}, nil
	default:
		return file, nil
	}
}

type wrappedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (w *wrappedReadCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func peekCSVColumns(path string, f format) ([]string, error) {
	rc, err := openCSV(path, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}
	return header, nil
}

func readCSVColumns(path string, f format, cols []string) (*Table, error) {
	rc, err := openCSV(path, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}

	headerIdx := make(map[string]int, len(header))
	for i, name := range header {
		headerIdx[name] = i
	}

	// Keep only requested columns that exist, in requested order.
	kept := make([]string, 0, len(cols))
	src := make([]int, 0, len(cols))
	for _, c := range cols {
		if i, ok := headerIdx[c]; ok {
			kept = append(kept, c)
			src = append(src, i)
		}
	}

	table := NewTable(kept)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row from %s: %w", path, err)
		}

		row := make([]Value, len(kept))
		for j, i := range src {
			if i < len(record) {
				row[j] = String(record[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
