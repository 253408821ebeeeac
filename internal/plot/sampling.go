package plot

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"github.com/vulneromics/server/internal/dataset"
)

// cellHash maps (seed, cell id) to a stable 64-bit value. The same seed
// and id always hash the same, so repeated calls sample identically.
func cellHash(seed int64, id string) uint64 {
	h := fnv.New64a()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seed))
	h.Write(b[:])
	h.Write([]byte(id))
	return h.Sum64()
}

// deterministicSample selects k records by keeping the k smallest cell
// hashes, a uniform sample without replacement that is reproducible for a
// fixed seed. Input order is preserved in the result.
func deterministicSample(records []dataset.CellRecord, k int, seed int64) []dataset.CellRecord {
	if k <= 0 {
		return []dataset.CellRecord{}
	}
	if k >= len(records) {
		out := make([]dataset.CellRecord, len(records))
		copy(out, records)
		return out
	}

	type hashed struct {
		index int
		hash  uint64
	}
	hashes := make([]hashed, len(records))
	for i := range records {
		hashes[i] = hashed{index: i, hash: cellHash(seed, records[i].ID)}
	}

	sort.Slice(hashes, func(i, j int) bool {
		if hashes[i].hash != hashes[j].hash {
			return hashes[i].hash < hashes[j].hash
		}
		return hashes[i].index < hashes[j].index
	})

	selected := make([]int, k)
	for i := 0; i < k; i++ {
		selected[i] = hashes[i].index
	}
	sort.Ints(selected)

	out := make([]dataset.CellRecord, k)
	for i, idx := range selected {
		out[i] = records[idx]
	}
	return out
}
