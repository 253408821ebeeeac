package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions the readers do not
// recognize. CSV (optionally gzip/zstd compressed) and Parquet are
// supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

type format int

const (
	formatCSV format = iota
	formatCSVGzip
	formatCSVZstd
	formatParquet
)

func detectFormat(path string) (format, error) {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".csv"):
		return formatCSV, nil
	case strings.HasSuffix(p, ".csv.gz"):
		return formatCSVGzip, nil
	case strings.HasSuffix(p, ".csv.zst"):
		return formatCSVZstd, nil
	case strings.HasSuffix(p, ".parquet"), strings.HasSuffix(p, ".pq"):
		return formatParquet, nil
	default:
		return 0, fmt.Errorf("%w: %s (expected CSV or Parquet)", ErrUnsupportedFormat, path)
	}
}

// PeekColumns returns the column names of a table file without reading
// its rows: the header row for CSV, the schema for Parquet.
func PeekColumns(path string) ([]string, error) {
	f, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	if f == formatParquet {
		return peekParquetColumns(path)
	}
	return peekCSVColumns(path, f)
}

// ReadColumns reads only the requested columns from a table file.
// Requested columns absent from the file are silently dropped from the
// result; callers decide whether a missing column is an error.
func ReadColumns(path string, cols []string) (*Table, error) {
	f, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	if f == formatParquet {
		return readParquetColumns(path, cols)
	}
	return readCSVColumns(path, f, cols)
}
