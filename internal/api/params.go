package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vulneromics/server/internal/dataset"
)

// parseStringList parses a query parameter holding either a JSON array
// or a comma-separated list. An absent or empty parameter yields nil,
// which downstream filtering treats as "no restriction".
func parseStringList(q url.Values, key string) []string {
	raw, present := q[key]
	if !present || len(raw) == 0 {
		return nil
	}

	value := strings.TrimSpace(raw[0])
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err == nil {
			return list
		}
		// Malformed JSON falls through to comma splitting
	}

	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

// parseRanges parses gene range constraints of the form "gene:min" or
// "gene:min:max". The parameter may repeat and entries may be
// comma-separated.
func parseRanges(raw []string) ([]dataset.GeneRange, error) {
	var ranges []dataset.GeneRange
	for _, value := range raw {
		for _, entry := range strings.Split(value, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}

			parts := strings.Split(entry, ":")
			if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
				return nil, fmt.Errorf("invalid range %q (expected gene:min or gene:min:max)", entry)
			}

			r := dataset.GeneRange{Gene: parts[0]}
			if parts[1] != "" {
				min, err := strconv.ParseFloat(parts[1], 64)
				if err != nil {
					return nil, fmt.Errorf("invalid range %q: bad lower bound: %w", entry, err)
				}
				r.Min = &min
			}
			if len(parts) == 3 && parts[2] != "" {
				max, err := strconv.ParseFloat(parts[2], 64)
				if err != nil {
					return nil, fmt.Errorf("invalid range %q: bad upper bound: %w", entry, err)
				}
				r.Max = &max
			}
			ranges = append(ranges, r)
		}
	}
	return ranges, nil
}

// parseFilterSpec builds a FilterSpec from query parameters.
func parseFilterSpec(q url.Values) (dataset.FilterSpec, error) {
	ranges, err := parseRanges(q["ranges"])
	if err != nil {
		return dataset.FilterSpec{}, err
	}
	return dataset.FilterSpec{
		Regions: parseStringList(q, "regions"),
		Classes: parseStringList(q, "classes"),
		Ranges:  ranges,
	}, nil
}

// parseIntParam parses an integer query parameter with a default.
func parseIntParam(q url.Values, key string, def int) (int, error) {
	value := strings.TrimSpace(q.Get(key))
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, value)
	}
	return n, nil
}

// parseBoolParam parses a boolean query parameter, treating "1" and
// "true" as set.
func parseBoolParam(q url.Values, key string) bool {
	v := strings.TrimSpace(q.Get(key))
	return v == "1" || strings.EqualFold(v, "true")
}
